package execution

import (
	"context"
	"fmt"

	"bybit-trend-bot/internal/model"
)

// Executor 是交易执行器的通用接口，负责与交易所通信
// 所有操作都是阻塞调用，超时由底层客户端控制。
type Executor interface {
	// FetchBars 拉取最近 limit 根 K 线，升序返回（最新在末尾）
	FetchBars(ctx context.Context, limit int) ([]model.Bar, error)

	// SetLeverage 设置交易对杠杆，启动时调用一次，失败应中止启动
	SetLeverage(ctx context.Context) error

	// FetchBalance 查询可用保证金余额，每次决策前重新获取，不做缓存
	FetchBalance(ctx context.Context) (float64, error)

	// PlaceOrder 提交市价单，返回交易所回执
	PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
}

// DataError 表示行情数据格式异常（例如列数不符），本周期的拉取作废
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("malformed market data: %s", e.Reason)
}
