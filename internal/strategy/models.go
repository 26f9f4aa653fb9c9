package strategy

import (
	"fmt"
	"time"

	"bybit-trend-bot/internal/model"
)

// ActionType 定义了信号类型
type ActionType string

const (
	ActionNone ActionType = "NONE" // 无操作
	ActionOpen ActionType = "OPEN" // 开仓
)

// Signal 结构体定义了策略层向执行层发出的具体指令
type Signal struct {
	Timestamp          time.Time       // 信号生成时间
	Action             ActionType      // 操作类型
	Direction          model.Direction // 期望方向
	Price              float64         // 信号价格（最新收盘价）
	Qty                float64         // 期望的开仓数量（币本位）
	StopLossDistance   float64         // 止损距离（USD 价格差）
	TakeProfitDistance float64         // 止盈距离（USD 价格差）
	Reason             string          // 信号生成的文字描述
}

func (s Signal) String() string {
	return fmt.Sprintf("SIGNAL [%s | %s] @ %.2f | Qty: %.4f | SL dist: %.2f | TP dist: %.2f | %s",
		s.Action, s.Direction, s.Price, s.Qty, s.StopLossDistance, s.TakeProfitDistance, s.Reason)
}
