package ta

import (
	"math"

	"bybit-trend-bot/internal/model"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"
)

// 指标窗口参数（与策略约定一致，不可随意调整）
const (
	EMAFastSpan   = 90  // 快线
	EMASlowSpan   = 200 // 慢线
	RSIWindow     = 12
	BBWindow      = 20
	BBStdDev      = 2.0
	MACDFastSpan  = 12
	MACDSlowSpan  = 26
	MACDSignalLen = 9
	RangeWindow   = 14
)

// Snapshot 存储一次全量计算后的最新指标值
// 历史长度不足某个指标窗口时，对应字段为 NaN，调用方必须按"指标未就绪"处理，
// 不能当作零值参与比较。
type Snapshot struct {
	Close      float64 // 最新收盘价
	EMAFast    float64 // EMA90
	EMASlow    float64 // EMA200
	RSI        float64 // RSI12（窗口内涨跌幅简单均值，非 Wilder 平滑）
	BBMid      float64 // 布林中轨 SMA20
	BBUpper    float64 // 布林上轨
	BBLower    float64 // 布林下轨
	MACD       float64 // EMA12 - EMA26
	MACDSignal float64 // MACD 的 EMA9
	Range      float64 // 14 周期最高价极大值 - 最低价极小值（简化波动率，非真实 ATR）
}

// Ready 检查开仓决策所需的全部指标是否就绪
func (s *Snapshot) Ready() bool {
	for _, v := range []float64{s.EMAFast, s.EMASlow, s.RSI, s.BBUpper, s.BBLower, s.MACD, s.MACDSignal, s.Range} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Calculator 负责把 K 线序列转换为指标快照
// 每次调用都在整个可用窗口上全量重算，不在周期之间保留增量状态。
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator 初始化技术指标计算器
func NewCalculator(logger *zap.Logger) *Calculator {
	return &Calculator{logger: logger}
}

// Compute 在 bars（升序，最新在末尾）上计算全部指标
func (c *Calculator) Compute(bars []model.Bar) *Snapshot {
	n := len(bars)
	snap := &Snapshot{
		Close:      math.NaN(),
		EMAFast:    math.NaN(),
		EMASlow:    math.NaN(),
		RSI:        math.NaN(),
		BBMid:      math.NaN(),
		BBUpper:    math.NaN(),
		BBLower:    math.NaN(),
		MACD:       math.NaN(),
		MACDSignal: math.NaN(),
		Range:      math.NaN(),
	}
	if n == 0 {
		return snap
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}
	snap.Close = closes[n-1]

	snap.EMAFast = lastEMA(closes, EMAFastSpan)
	snap.EMASlow = lastEMA(closes, EMASlowSpan)
	snap.RSI = rsi(closes, RSIWindow)
	snap.MACD, snap.MACDSignal = macd(closes)

	if n >= BBWindow {
		// talib 布林带使用总体标准差，本项目统一采用该口径
		upper, mid, lower := talib.BBands(closes, BBWindow, BBStdDev, BBStdDev, talib.SMA)
		snap.BBUpper = upper[n-1]
		snap.BBMid = mid[n-1]
		snap.BBLower = lower[n-1]
	}

	if n >= RangeWindow {
		maxHigh := talib.Max(highs, RangeWindow)
		minLow := talib.Min(lows, RangeWindow)
		snap.Range = maxHigh[n-1] - minLow[n-1]
	}

	if !snap.Ready() {
		c.logger.Debug("Not enough history, some indicators unavailable", zap.Int("bars", n))
	}
	return snap
}

// lastEMA 返回序列最新一点的 EMA
// 种子约定：前 span 个值的简单均值，之后按 ema[t] = α*x[t] + (1-α)*ema[t-1] 递推，
// α = 2/(span+1)，与 talib.Ema 一致。
func lastEMA(values []float64, span int) float64 {
	if len(values) < span {
		return math.NaN()
	}
	out := talib.Ema(values, span)
	return out[len(out)-1]
}

// rsi 计算窗口内涨跌幅简单均值版的 RSI
// 跌幅均值为零时定义为 100，避免除零。
func rsi(closes []float64, window int) float64 {
	if len(closes) < window+1 {
		return math.NaN()
	}
	var gain, loss float64
	for i := len(closes) - window; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(window)
	avgLoss := loss / float64(window)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macd 计算 MACD 线及其信号线
// MACD = EMA12 - EMA26，信号线是 MACD 序列的 EMA9（对 MACD 序列用同样的种子约定）。
func macd(closes []float64) (line float64, signal float64) {
	n := len(closes)
	if n < MACDSlowSpan {
		return math.NaN(), math.NaN()
	}
	fast := talib.Ema(closes, MACDFastSpan)
	slow := talib.Ema(closes, MACDSlowSpan)

	// 慢线就绪后才有有效的 MACD 点
	series := make([]float64, 0, n-MACDSlowSpan+1)
	for i := MACDSlowSpan - 1; i < n; i++ {
		series = append(series, fast[i]-slow[i])
	}
	line = series[len(series)-1]
	signal = lastEMA(series, MACDSignalLen)
	return line, signal
}
