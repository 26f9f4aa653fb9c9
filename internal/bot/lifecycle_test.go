package bot

import (
	"testing"
	"time"

	"bybit-trend-bot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openPosition() model.Position {
	return model.Position{
		Side:               model.SideBuy,
		Amount:             0.01,
		EntryPrice:         100,
		StopLossDistance:   3,
		TakeProfitDistance: 5,
		OpenedAt:           time.Now(),
	}
}

func TestLifecycleStartsIdleWithoutCooldown(t *testing.T) {
	pl := NewPositionLifecycle(15*time.Minute, zap.NewNop())
	assert.Equal(t, StateIdle, pl.State())
	assert.False(t, pl.HasOpenPosition())
	assert.False(t, pl.InCooldown(time.Now()), "fresh start must not block the first entry")
}

func TestSingleOpenPositionInvariant(t *testing.T) {
	pl := NewPositionLifecycle(15*time.Minute, zap.NewNop())

	pl.MarkSubmitted()
	require.NoError(t, pl.OpenConfirmed(openPosition()))
	assert.Equal(t, StateOpen, pl.State())

	// A second confirmed open without an intervening close must be rejected.
	second := openPosition()
	second.EntryPrice = 200
	assert.Error(t, pl.OpenConfirmed(second))

	pos, ok := pl.Position()
	require.True(t, ok)
	assert.Equal(t, 100.0, pos.EntryPrice)
}

func TestOpenFailedCreatesNoPositionAndNoCooldown(t *testing.T) {
	pl := NewPositionLifecycle(15*time.Minute, zap.NewNop())

	pl.MarkSubmitted()
	pl.OpenFailed()

	assert.Equal(t, StateAwaitingEntry, pl.State())
	assert.False(t, pl.HasOpenPosition())
	assert.False(t, pl.InCooldown(time.Now()))
}

func TestShouldExitThresholds(t *testing.T) {
	pl := NewPositionLifecycle(15*time.Minute, zap.NewNop())
	require.NoError(t, pl.OpenConfirmed(openPosition()))

	// entry 100, SL distance 3, TP distance 5
	assert.True(t, pl.ShouldExit(96), "96 <= 97 breaches the stop")
	assert.True(t, pl.ShouldExit(97), "boundary counts as breached")
	assert.False(t, pl.ShouldExit(98))
	assert.False(t, pl.ShouldExit(104.9))
	assert.True(t, pl.ShouldExit(105), "take profit boundary")
	assert.True(t, pl.ShouldExit(110))
}

func TestCloseConfirmedStartsCooldown(t *testing.T) {
	cooldown := 15 * time.Minute
	pl := NewPositionLifecycle(cooldown, zap.NewNop())
	require.NoError(t, pl.OpenConfirmed(openPosition()))

	closeTime := time.Now()
	pl.MarkClosing()
	pl.CloseConfirmed(closeTime)

	assert.False(t, pl.HasOpenPosition())
	assert.Equal(t, StateCooldown, pl.State())

	eps := time.Second
	assert.True(t, pl.InCooldown(closeTime.Add(cooldown-eps)), "just before expiry stays blocked")
	assert.False(t, pl.InCooldown(closeTime.Add(cooldown+eps)), "just after expiry is permitted")

	// Step returns the machine to IDLE once the window has elapsed.
	pl.Step(closeTime.Add(cooldown + eps))
	assert.Equal(t, StateIdle, pl.State())
}

func TestCloseFailedKeepsPositionAndCooldownUntouched(t *testing.T) {
	pl := NewPositionLifecycle(15*time.Minute, zap.NewNop())
	require.NoError(t, pl.OpenConfirmed(openPosition()))

	pl.MarkClosing()
	pl.CloseFailed()

	assert.Equal(t, StateOpen, pl.State())
	assert.True(t, pl.HasOpenPosition(), "position is not closed until acknowledged")
	assert.False(t, pl.InCooldown(time.Now()), "a failed close attempt never restarts the cooldown")
}
