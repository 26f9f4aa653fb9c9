package model

import (
	"fmt"
	"time"
)

// Direction 定义了持仓或期望开仓的方向
type Direction string

const (
	DirLong  Direction = "LONG"
	DirShort Direction = "SHORT"
	DirFlat  Direction = "FLAT" // 空仓 / 无方向
)

func (d Direction) String() string {
	return string(d)
}

// Side 是交易所下单接口使用的买卖方向字面量
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// SideFor 将方向转换为下单方向（开仓用）
func SideFor(dir Direction) string {
	if dir == DirShort {
		return SideSell
	}
	return SideBuy
}

// OppositeSide 返回平仓所需的反向下单方向
func OppositeSide(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Position 定义了当前持仓信息
// 全局唯一：同一时刻最多存在一个实例，由 PositionLifecycle 独占持有。
// StopLossDistance / TakeProfitDistance 在开仓时固定，之后不再修改。
type Position struct {
	Side               string    // Buy 或 Sell
	Amount             float64   // 仓位数量（币本位）
	EntryPrice         float64   // 开仓价格
	StopLossDistance   float64   // 止损距离（USD 价格差）
	TakeProfitDistance float64   // 止盈距离（USD 价格差）
	OpenedAt           time.Time // 开仓时间
}

func (p Position) String() string {
	return fmt.Sprintf("POSITION [%s] %.4f @ %.2f | SL dist: %.2f | TP dist: %.2f",
		p.Side, p.Amount, p.EntryPrice, p.StopLossDistance, p.TakeProfitDistance)
}

// OrderRequest 是策略层向执行层发出的下单指令
type OrderRequest struct {
	Side       string  // Buy 或 Sell
	Qty        float64 // 下单数量
	OrderType  string  // Market / Limit
	ReduceOnly bool    // 平仓单必须只减仓，防止反向开仓
}

// OrderResult 是执行层返回的下单回执
type OrderResult struct {
	Accepted bool   // 交易所是否确认接收（retCode == 0）
	OrderID  string // 交易所订单 ID
}

// TradeRecord 记录一次完整的开仓和平仓交易（模拟执行器使用）
type TradeRecord struct {
	EntryTime     time.Time
	ExitTime      time.Time
	Symbol        string
	Side          string
	EntryPrice    float64
	ExitPrice     float64
	Size          float64
	RealizedPnL   float64 // 已实现盈亏
	Fee           float64 // 总手续费（开仓 + 平仓）
	TriggerReason string  // 平仓原因: "SL", "TP", "Signal"
}
