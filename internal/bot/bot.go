package bot

import (
	"context"
	"errors"
	"time"

	"bybit-trend-bot/internal/api"
	"bybit-trend-bot/internal/execution"
	"bybit-trend-bot/internal/model"
	"bybit-trend-bot/internal/strategy"
	"bybit-trend-bot/pkg/ta"

	"go.uber.org/zap"
)

// PriceStream 提供两次 K 线之间的实时价格，用于持仓监控
// 为 nil 或暂无数据时退回到最新收盘价。
type PriceStream interface {
	LastPrice() (price float64, ok bool)
}

// Options 聚合了交易循环的运行参数
type Options struct {
	KlineLimit   int
	PollInterval time.Duration
}

// Bot 是单交易对的决策循环
// 每个周期顺序执行：拉取 K 线 → 计算指标 → 方向判断 → 入场评估/下单 →
// 持仓监控 → 等待下一周期。全程单线程，每个错误路径都只跳过本周期。
type Bot struct {
	opts      Options
	exec      execution.Executor
	calc      *ta.Calculator
	signals   *strategy.SignalGenerator
	risk      *strategy.RiskManager
	lifecycle *PositionLifecycle
	stream    PriceStream // 可选
	logger    *zap.Logger
}

// New 组装交易循环
func New(
	opts Options,
	exec execution.Executor,
	calc *ta.Calculator,
	signals *strategy.SignalGenerator,
	risk *strategy.RiskManager,
	lifecycle *PositionLifecycle,
	stream PriceStream,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		opts:      opts,
		exec:      exec,
		calc:      calc,
		signals:   signals,
		risk:      risk,
		lifecycle: lifecycle,
		stream:    stream,
		logger:    logger,
	}
}

// Init 执行启动期初始化：设置杠杆
// 这是唯一不可恢复的失败——杠杆未知时不允许继续运行。
func (b *Bot) Init(ctx context.Context) error {
	return b.exec.SetLeverage(ctx)
}

// Run 运行决策循环，直到 ctx 被取消
// 周期之间等待固定间隔；取消信号在周期之间检查，正在进行的网络调用
// 会先完成再退出。
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("Trading loop started", zap.Duration("interval", b.opts.PollInterval))
	for {
		b.RunCycle(ctx, time.Now())

		select {
		case <-ctx.Done():
			b.logger.Info("Stop requested, trading loop exiting")
			return
		case <-time.After(b.opts.PollInterval):
		}
	}
}

// RunCycle 执行一个完整的决策周期
// 任何失败都只记录日志并结束本周期，循环永不因单个坏周期而终止。
func (b *Bot) RunCycle(ctx context.Context, now time.Time) {
	b.lifecycle.Step(now)

	// 冷却期内不评估新的入场（冷却期内必然空仓，直接跳过拉取）
	if b.lifecycle.InCooldown(now) {
		b.logger.Info("Waiting due to cooldown")
		return
	}

	bars, err := b.exec.FetchBars(ctx, b.opts.KlineLimit)
	if err != nil {
		b.logFetchError(err)
		return
	}

	snap := b.calc.Compute(bars)

	if !b.lifecycle.HasOpenPosition() {
		b.tryEnter(ctx, now, snap)
	} else {
		b.monitorExit(ctx, now, snap)
	}

	b.logger.Info("Cycle indicators",
		zap.Float64("EMA200", snap.EMASlow),
		zap.Float64("EMA90", snap.EMAFast),
		zap.Float64("RSI", snap.RSI),
		zap.Float64("close", snap.Close))
}

// tryEnter 评估入场条件，全部满足时下单开仓
func (b *Bot) tryEnter(ctx context.Context, now time.Time, snap *ta.Snapshot) {
	if !snap.Ready() {
		b.logger.Info("Indicators not ready yet, skipping entry evaluation")
		return
	}

	bias := b.signals.DetermineBias(snap)
	if bias == model.DirFlat {
		return
	}
	if !b.signals.VolatilityGate(snap) {
		return
	}
	if !b.signals.CheckEntry(snap, bias) {
		return
	}

	// 余额每次决策前重新获取，绝不跨周期缓存
	balance, err := b.exec.FetchBalance(ctx)
	if err != nil {
		b.logFetchError(err)
		return
	}
	if balance <= 0 {
		b.logger.Info("No available balance, skipping trade")
		return
	}

	qty := b.risk.SizeOrder(balance, snap.Close)
	slDistance, tpDistance := b.risk.ExitDistances(snap.Range)

	signal := strategy.Signal{
		Timestamp:          now,
		Action:             strategy.ActionOpen,
		Direction:          bias,
		Price:              snap.Close,
		Qty:                qty,
		StopLossDistance:   slDistance,
		TakeProfitDistance: tpDistance,
		Reason:             "bias + entry conditions met",
	}
	b.logger.Info("!!! NEW TRADING SIGNAL !!!", zap.String("signal", signal.String()))

	side := model.SideFor(bias)
	b.lifecycle.MarkSubmitted()
	result, err := b.exec.PlaceOrder(ctx, model.OrderRequest{
		Side:      side,
		Qty:       qty,
		OrderType: "Market",
	})
	if err != nil || !result.Accepted {
		// 不建仓、不冷却，下一周期自然重试
		b.lifecycle.OpenFailed()
		b.logger.Error("Order placement failed, retrying on next cycle", zap.Error(err))
		return
	}

	if err := b.lifecycle.OpenConfirmed(model.Position{
		Side:               side,
		Amount:             qty,
		EntryPrice:         snap.Close,
		StopLossDistance:   slDistance,
		TakeProfitDistance: tpDistance,
		OpenedAt:           now,
	}); err != nil {
		b.logger.Error("Position bookkeeping failed", zap.Error(err))
	}
}

// monitorExit 检查止损/止盈阈值，触发时提交反向平仓单
func (b *Bot) monitorExit(ctx context.Context, now time.Time, snap *ta.Snapshot) {
	// 有实时价格流时优先使用，否则退回收盘价
	price := snap.Close
	if b.stream != nil {
		if p, ok := b.stream.LastPrice(); ok {
			price = p
		}
	}

	if !b.lifecycle.ShouldExit(price) {
		return
	}

	pos, ok := b.lifecycle.Position()
	if !ok {
		return
	}

	b.lifecycle.MarkClosing()
	result, err := b.exec.PlaceOrder(ctx, model.OrderRequest{
		Side:       model.OppositeSide(pos.Side),
		Qty:        pos.Amount,
		OrderType:  "Market",
		ReduceOnly: true, // 平仓单只减仓，防止反向开仓
	})
	if err != nil || !result.Accepted {
		// 持仓保持，下一周期重试平仓；未确认前不算已平仓
		b.lifecycle.CloseFailed()
		b.logger.Error("Close order failed, position remains open", zap.Error(err))
		return
	}

	b.lifecycle.CloseConfirmed(now)
	b.logger.Info("Position closed", zap.Float64("price", price))
}

// logFetchError 按错误类别选择日志口径
func (b *Bot) logFetchError(err error) {
	var dataErr *execution.DataError
	switch {
	case api.IsKind(err, api.KindApplication):
		b.logger.Error("Exchange rejected request, skipping cycle", zap.Error(err))
	case api.IsKind(err, api.KindNetwork):
		b.logger.Error("Network error, skipping cycle", zap.Error(err))
	case errors.As(err, &dataErr):
		b.logger.Error("Data format error, discarding fetch", zap.Error(err))
	default:
		b.logger.Error("Request failed, skipping cycle", zap.Error(err))
	}
}
