package ta

import (
	"math"
	"testing"

	"bybit-trend-bot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// barsFromCloses builds flat bars (high = low = close) for indicator tests.
func barsFromCloses(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Timestamp: int64(i) * 60,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return bars
}

// waveCloses generates a deterministic non-trivial price series.
func waveCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7) + float64(i%5)
	}
	return closes
}

func TestEMARecursiveIdentity(t *testing.T) {
	closes := waveCloses(300)
	span := 12
	alpha := 2.0 / float64(span+1)

	// Reference: SMA seed over the first span values, then the recursion
	// ema[t] = alpha*x[t] + (1-alpha)*ema[t-1].
	var seed float64
	for i := 0; i < span; i++ {
		seed += closes[i]
	}
	seed /= float64(span)
	ema := seed
	for i := span; i < len(closes); i++ {
		ema = alpha*closes[i] + (1-alpha)*ema
	}

	got := lastEMA(closes, span)
	assert.InDelta(t, ema, got, 1e-6)
}

func TestEMAInsufficientHistory(t *testing.T) {
	closes := waveCloses(50)
	assert.True(t, math.IsNaN(lastEMA(closes, 90)))
	assert.False(t, math.IsNaN(lastEMA(closes, 50)))
}

func TestRSIBounds(t *testing.T) {
	closes := waveCloses(100)
	v := rsi(closes, RSIWindow)
	require.False(t, math.IsNaN(v))
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, rsi(closes, RSIWindow))
}

func TestRSIAllLossesIsZero(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 1000 - float64(i)
	}
	assert.InDelta(t, 0.0, rsi(closes, RSIWindow), 1e-9)
}

func TestComputeDegradedInput(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	snap := calc.Compute(barsFromCloses(waveCloses(10)))
	assert.True(t, math.IsNaN(snap.EMASlow), "EMA200 must be unavailable with 10 bars")
	assert.True(t, math.IsNaN(snap.EMAFast))
	assert.True(t, math.IsNaN(snap.BBUpper), "BB needs 20 bars")
	assert.True(t, math.IsNaN(snap.MACD), "MACD needs 26 bars")
	assert.False(t, snap.Ready())

	// Close is always present
	assert.False(t, math.IsNaN(snap.Close))
}

func TestComputeEmptyInput(t *testing.T) {
	calc := NewCalculator(zap.NewNop())
	snap := calc.Compute(nil)
	assert.True(t, math.IsNaN(snap.Close))
	assert.False(t, snap.Ready())
}

func TestComputeFullWindow(t *testing.T) {
	calc := NewCalculator(zap.NewNop())
	snap := calc.Compute(barsFromCloses(waveCloses(250)))
	assert.True(t, snap.Ready())
	assert.Equal(t, waveCloses(250)[249], snap.Close)
}

func TestBollingerConstantSeries(t *testing.T) {
	calc := NewCalculator(zap.NewNop())
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	snap := calc.Compute(barsFromCloses(closes))
	// Zero deviation collapses the bands onto the middle line.
	assert.InDelta(t, 100, snap.BBMid, 1e-9)
	assert.InDelta(t, 100, snap.BBUpper, 1e-9)
	assert.InDelta(t, 100, snap.BBLower, 1e-9)
}

func TestVolatilityRangeProxy(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	n := 40
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		bars[i] = model.Bar{Timestamp: int64(i) * 60, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	snap := calc.Compute(bars)

	// Window covers the last 14 bars: max high = close[n-1]+1, min low = close[n-14]-1.
	// Linear closes with step 1 give 13 + 2 = 15.
	assert.InDelta(t, 15, snap.Range, 1e-9)
}

func TestMACDSignalRelation(t *testing.T) {
	calc := NewCalculator(zap.NewNop())

	// Steady uptrend keeps the MACD line positive.
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	snap := calc.Compute(barsFromCloses(closes))
	require.True(t, snap.Ready())
	assert.Greater(t, snap.MACD, 0.0)
	assert.Greater(t, snap.MACDSignal, 0.0)
}
