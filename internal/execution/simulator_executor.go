package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bybit-trend-bot/internal/model"

	"go.uber.org/zap"
)

// SimulatorConfig 模拟执行器配置
type SimulatorConfig struct {
	Symbol         string
	InitialCapital float64 // 初始资金
	FeeRate        float64 // 交易手续费率（例如 0.0005）
}

// simPosition 模拟交易所侧的持仓账本
type simPosition struct {
	Side      string
	Size      float64
	AvgPrice  float64
	EntryTime time.Time
	EntryFee  float64
}

// SimulatorExecutor 实现了 Executor 接口，用于 dry-run 模式
// 行情仍走真实网关（委托给 market），下单、余额、杠杆全部在本地模拟：
// 按最近一次收盘价成交，扣手续费，记录已实现盈亏。
type SimulatorExecutor struct {
	cfg    *SimulatorConfig
	market Executor // 行情数据源
	logger *zap.Logger

	mu sync.Mutex

	balance      float64
	lastPrice    float64 // 最近一次拉取到的收盘价，作为模拟成交价
	position     *simPosition
	tradeHistory []*model.TradeRecord
	orderSeq     int
}

// NewSimulatorExecutor 构造函数
func NewSimulatorExecutor(cfg *SimulatorConfig, market Executor, logger *zap.Logger) *SimulatorExecutor {
	return &SimulatorExecutor{
		cfg:     cfg,
		market:  market,
		logger:  logger.With(zap.String("executor", "Simulator")),
		balance: cfg.InitialCapital,
	}
}

// FetchBars 委托给真实网关，同时记录最新收盘价作为成交基准
func (e *SimulatorExecutor) FetchBars(ctx context.Context, limit int) ([]model.Bar, error) {
	bars, err := e.market.FetchBars(ctx, limit)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.lastPrice = bars[len(bars)-1].Close
	e.mu.Unlock()
	return bars, nil
}

// SetLeverage 模拟模式下只记日志
func (e *SimulatorExecutor) SetLeverage(ctx context.Context) error {
	e.logger.Info("Sim leverage set (no-op)")
	return nil
}

// FetchBalance 返回模拟账户余额
func (e *SimulatorExecutor) FetchBalance(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

// PlaceOrder 模拟下单：开仓建账本，reduceOnly 平仓结算盈亏
func (e *SimulatorExecutor) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastPrice <= 0 {
		return nil, fmt.Errorf("no market price yet, fetch bars first")
	}
	price := e.lastPrice
	fee := req.Qty * price * e.cfg.FeeRate

	if req.ReduceOnly && e.position != nil {
		// 平仓：结算已实现盈亏
		pnl := e.closedPnL(price)
		e.balance += pnl - fee

		e.tradeHistory = append(e.tradeHistory, &model.TradeRecord{
			EntryTime:     e.position.EntryTime,
			ExitTime:      time.Now(),
			Symbol:        e.cfg.Symbol,
			Side:          e.position.Side,
			EntryPrice:    e.position.AvgPrice,
			ExitPrice:     price,
			Size:          e.position.Size,
			RealizedPnL:   pnl,
			Fee:           e.position.EntryFee + fee,
			TriggerReason: "Signal",
		})

		e.logger.Info("Sim POSITION CLOSED",
			zap.String("side", e.position.Side),
			zap.Float64("exit", price),
			zap.Float64("pnl", pnl),
			zap.Float64("balance", e.balance))
		e.position = nil
	} else {
		if e.position != nil {
			return nil, fmt.Errorf("already holding a position")
		}
		e.balance -= fee
		e.position = &simPosition{
			Side:      req.Side,
			Size:      req.Qty,
			AvgPrice:  price,
			EntryTime: time.Now(),
			EntryFee:  fee,
		}
		e.logger.Info("Sim ORDER FILLED (OPEN)",
			zap.String("side", req.Side),
			zap.Float64("qty", req.Qty),
			zap.Float64("price", price),
			zap.Float64("fee", fee))
	}

	e.orderSeq++
	return &model.OrderResult{Accepted: true, OrderID: fmt.Sprintf("sim-%d", e.orderSeq)}, nil
}

// closedPnL 计算按当前价平仓的已实现盈亏
func (e *SimulatorExecutor) closedPnL(exitPrice float64) float64 {
	if e.position.Side == model.SideBuy {
		return (exitPrice - e.position.AvgPrice) * e.position.Size
	}
	return (e.position.AvgPrice - exitPrice) * e.position.Size
}

// TradeHistory 返回所有已平仓的交易记录
func (e *SimulatorExecutor) TradeHistory() []*model.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.TradeRecord, len(e.tradeHistory))
	copy(out, e.tradeHistory)
	return out
}
