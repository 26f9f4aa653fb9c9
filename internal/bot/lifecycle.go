package bot

import (
	"fmt"
	"sync"
	"time"

	"bybit-trend-bot/internal/model"

	"go.uber.org/zap"
)

// PositionState 定义了持仓生命周期状态
type PositionState string

const (
	StateIdle           PositionState = "IDLE"            // 空仓，等待下一周期评估
	StateAwaitingEntry  PositionState = "AWAITING_ENTRY"  // 入场条件满足过但下单失败，下一周期重试
	StateOrderSubmitted PositionState = "ORDER_SUBMITTED" // 订单已发出，等待回执
	StateOpen           PositionState = "OPEN"            // 持仓中，每周期检查退出阈值
	StateClosing        PositionState = "CLOSING"         // 平仓单已发出，等待回执
	StateCooldown       PositionState = "COOLDOWN"        // 平仓确认后的冷却期
)

// PositionLifecycle 是管理唯一持仓的状态机
// 不变量：
//   - 任意时刻最多存在一个 Position，且只有本状态机可以写它
//   - Position 只在收到交易所确认回执后创建，也只在平仓确认后清除
//   - 冷却期只在确认平仓时重启，失败的平仓尝试不会触发
type PositionLifecycle struct {
	mu            sync.RWMutex
	state         PositionState
	position      *model.Position
	lastCloseTime time.Time
	cooldown      time.Duration
	logger        *zap.Logger
}

// NewPositionLifecycle 初始化状态机，初始为空仓且不在冷却期
func NewPositionLifecycle(cooldown time.Duration, logger *zap.Logger) *PositionLifecycle {
	return &PositionLifecycle{
		state:    StateIdle,
		cooldown: cooldown,
		logger:   logger,
	}
}

// State 返回当前状态
func (pl *PositionLifecycle) State() PositionState {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.state
}

// HasOpenPosition 是否存在已确认的持仓
func (pl *PositionLifecycle) HasOpenPosition() bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.position != nil
}

// Position 返回持仓的副本，空仓时 ok 为 false
func (pl *PositionLifecycle) Position() (model.Position, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	if pl.position == nil {
		return model.Position{}, false
	}
	return *pl.position, true
}

// InCooldown 判断当前时刻是否处于冷却期
func (pl *PositionLifecycle) InCooldown(now time.Time) bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	if pl.lastCloseTime.IsZero() {
		return false
	}
	return now.Sub(pl.lastCloseTime) < pl.cooldown
}

// Step 推进与时间相关的状态：冷却期结束后回到 IDLE
func (pl *PositionLifecycle) Step(now time.Time) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.state == StateCooldown && now.Sub(pl.lastCloseTime) >= pl.cooldown {
		pl.transition(StateIdle)
	}
}

// MarkSubmitted 记录开仓订单已发出
func (pl *PositionLifecycle) MarkSubmitted() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.transition(StateOrderSubmitted)
}

// OpenConfirmed 在收到交易所确认后建立持仓
// 已有持仓时拒绝，保证全局唯一。
func (pl *PositionLifecycle) OpenConfirmed(pos model.Position) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.position != nil {
		return fmt.Errorf("position already open: %s", pl.position)
	}
	pl.position = &pos
	pl.transition(StateOpen)
	pl.logger.Info("Position opened", zap.String("position", pos.String()))
	return nil
}

// OpenFailed 下单失败：不建仓、不进入冷却，下一周期自然重试
func (pl *PositionLifecycle) OpenFailed() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.transition(StateAwaitingEntry)
}

// ShouldExit 判断当前价格是否触发止损或止盈
// 阈值在开仓时固定：entry - slDistance 或 entry + tpDistance。
func (pl *PositionLifecycle) ShouldExit(price float64) bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	if pl.position == nil {
		return false
	}
	return price <= pl.position.EntryPrice-pl.position.StopLossDistance ||
		price >= pl.position.EntryPrice+pl.position.TakeProfitDistance
}

// MarkClosing 记录平仓订单已发出
func (pl *PositionLifecycle) MarkClosing() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.transition(StateClosing)
}

// CloseConfirmed 平仓确认：清除持仓，从平仓时刻重启冷却期
func (pl *PositionLifecycle) CloseConfirmed(now time.Time) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.position = nil
	pl.lastCloseTime = now
	pl.transition(StateCooldown)
	pl.logger.Info("Position closed, cooldown started", zap.Time("until", now.Add(pl.cooldown)))
}

// CloseFailed 平仓失败：持仓保持不变，冷却期不启动，下一周期重试
func (pl *PositionLifecycle) CloseFailed() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.transition(StateOpen)
}

// transition 切换状态并记录日志，调用方需持有写锁
func (pl *PositionLifecycle) transition(to PositionState) {
	if to == pl.state {
		return
	}
	pl.logger.Info("State transition",
		zap.String("from", string(pl.state)),
		zap.String("to", string(to)))
	pl.state = to
}
