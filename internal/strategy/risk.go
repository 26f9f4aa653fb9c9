package strategy

import (
	"math"

	"bybit-trend-bot/internal/service"

	"go.uber.org/zap"
)

// 止损/止盈的波动区间倍数，非对称设计给出约 1.67:1 的盈亏比
const (
	stopLossRangeFactor   = 1.5
	takeProfitRangeFactor = 2.5
)

// RiskManager 负责把余额、方向和波动率换算成下单数量与退出距离
type RiskManager struct {
	cfg    *service.RiskConfig
	logger *zap.Logger
}

// NewRiskManager 初始化风控
func NewRiskManager(cfg *service.RiskConfig, logger *zap.Logger) *RiskManager {
	return &RiskManager{cfg: cfg, logger: logger}
}

// SizeOrder 计算下单数量 = |balance * riskFraction / price|
// riskFraction 历史配置里可能是负数，统一取绝对值，保证数量恒为正。
// 低于最小下单数量时向上取整到最小值，而不是拒单。
func (rm *RiskManager) SizeOrder(balance, price float64) float64 {
	if price <= 0 {
		rm.logger.Warn("Invalid price for sizing, using minimum order size", zap.Float64("price", price))
		return rm.cfg.MinOrderSize
	}

	qty := math.Abs(balance * rm.cfg.RiskFraction / price)
	if qty < rm.cfg.MinOrderSize {
		rm.logger.Info("Calculated amount below minimum order size, adjusting",
			zap.Float64("raw", qty), zap.Float64("min", rm.cfg.MinOrderSize))
		qty = rm.cfg.MinOrderSize
	}
	return qty
}

// ExitDistances 根据波动区间计算止损/止盈距离，开仓时固定，之后不再调整
func (rm *RiskManager) ExitDistances(volRange float64) (stopLoss, takeProfit float64) {
	stopLoss = volRange * stopLossRangeFactor
	takeProfit = volRange * takeProfitRangeFactor
	rm.logger.Debug("Calculated exit distances",
		zap.Float64("stop_loss", stopLoss), zap.Float64("take_profit", takeProfit))
	return stopLoss, takeProfit
}
