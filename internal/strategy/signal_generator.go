package strategy

import (
	"math"

	"bybit-trend-bot/internal/model"
	"bybit-trend-bot/pkg/ta"

	"go.uber.org/zap"
)

// 入场阈值
const (
	rsiLongMax      = 40.0 // 多头超卖阈值
	rsiShortMin     = 60.0 // 空头超买阈值
	volGateFraction = 0.1  // 均线差小于该比例的波动区间视为噪声
)

// SignalGenerator 负责把指标快照映射为方向判断和入场条件
type SignalGenerator struct {
	logger *zap.Logger
}

// NewSignalGenerator 初始化信号生成器
func NewSignalGenerator(logger *zap.Logger) *SignalGenerator {
	return &SignalGenerator{logger: logger}
}

// DetermineBias 通过慢快均线对比确定方向倾向
// 慢线在快线之上说明近期价格走弱，做空；反之做多；相等无倾向。
// 任一均线为 NaN 时两个比较都不成立，自然落在无倾向分支。
func (sg *SignalGenerator) DetermineBias(snap *ta.Snapshot) model.Direction {
	switch {
	case snap.EMASlow > snap.EMAFast:
		sg.logger.Debug("Determined bias: short")
		return model.DirShort
	case snap.EMASlow < snap.EMAFast:
		sg.logger.Debug("Determined bias: long")
		return model.DirLong
	default:
		sg.logger.Debug("No clear bias determined")
		return model.DirFlat
	}
}

// CheckEntry 检查指定方向的入场条件
// 三个触发条件是"或"的关系，任一满足即可——这是刻意的低门槛过滤，
// 不是严格合取。NaN 指标的比较恒为 false，等价于"条件未满足"。
func (sg *SignalGenerator) CheckEntry(snap *ta.Snapshot, bias model.Direction) bool {
	var met bool
	switch bias {
	case model.DirLong:
		met = snap.RSI < rsiLongMax ||
			snap.Close < snap.BBLower ||
			snap.MACD < snap.MACDSignal
	case model.DirShort:
		met = snap.RSI > rsiShortMin ||
			snap.Close > snap.BBUpper ||
			snap.MACD > snap.MACDSignal
	default:
		met = false
	}
	sg.logger.Debug("Entry conditions checked",
		zap.String("bias", bias.String()), zap.Bool("met", met))
	return met
}

// VolatilityGate 过滤低信噪比行情
// 均线差相对波动区间过小时，趋势判断大概率是噪声，返回 false 表示禁止入场。
func (sg *SignalGenerator) VolatilityGate(snap *ta.Snapshot) bool {
	spread := math.Abs(snap.EMASlow - snap.EMAFast)
	if spread < volGateFraction*snap.Range {
		sg.logger.Info("Low volatility, skipping trade",
			zap.Float64("spread", spread), zap.Float64("range", snap.Range))
		return false
	}
	return true
}
