package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"bybit-trend-bot/internal/api"
	"bybit-trend-bot/internal/model"
	"bybit-trend-bot/internal/service"

	"go.uber.org/zap"
)

// Bybit V5 接口路径
const (
	endpointKline       = "/v5/market/kline"
	endpointSetLeverage = "/v5/position/set-leverage"
	endpointBalance     = "/v5/account/wallet-balance"
	endpointCreateOrder = "/v5/order/create"

	categoryLinear = "linear"
)

// BybitConfig 定义 Bybit 执行器所需的全部配置
type BybitConfig struct {
	Symbol       string
	Interval     string // 分钟字符串，例如 "15"
	Leverage     int
	PositionMode string // "hedge" 时下单携带 positionIdx
	QuoteCoin    string // 保证金币种，例如 USDT
}

// BybitExecutor 实现了 Executor 接口，走签名 REST 网关
type BybitExecutor struct {
	cfg    *BybitConfig
	client *api.Client
	logger *zap.Logger
}

// NewBybitExecutor 初始化 Bybit 执行器
func NewBybitExecutor(cfg *BybitConfig, client *api.Client, logger *zap.Logger) *BybitExecutor {
	return &BybitExecutor{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("executor", "Bybit")),
	}
}

// klineResult 是 kline 接口 result 字段的结构
// list 的每行是字符串数组: [startTime, open, high, low, close, volume, turnover]
type klineResult struct {
	List [][]string `json:"list"`
}

// FetchBars 拉取历史 K 线
// 交易所按时间降序返回，毫秒时间戳；这里统一转成升序、秒级。
func (e *BybitExecutor) FetchBars(ctx context.Context, limit int) ([]model.Bar, error) {
	params := map[string]string{
		"category": categoryLinear,
		"symbol":   e.cfg.Symbol,
		"interval": e.cfg.Interval,
		"limit":    strconv.Itoa(limit),
	}
	raw, err := e.client.Send(ctx, "GET", endpointKline, params)
	if err != nil {
		return nil, err
	}

	var result klineResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &DataError{Reason: fmt.Sprintf("kline result decode: %v", err)}
	}
	if len(result.List) == 0 {
		return nil, &DataError{Reason: "empty kline list"}
	}

	bars := make([]model.Bar, 0, len(result.List))
	for _, row := range result.List {
		// 标准行为 7 列（含成交额），少于 OHLCV 的 6 列视为格式异常，整次拉取作废
		if len(row) < 6 {
			return nil, &DataError{Reason: fmt.Sprintf("unexpected column count %d", len(row))}
		}
		bar, err := parseBarRow(row)
		if err != nil {
			return nil, &DataError{Reason: err.Error()}
		}
		bars = append(bars, bar)
	}

	// 升序排列，最新在末尾
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })

	e.logger.Debug("Historical data fetched", zap.Int("bars", len(bars)))
	return bars, nil
}

func parseBarRow(row []string) (model.Bar, error) {
	ts, err := service.StringToFloat(row[0])
	if err != nil {
		return model.Bar{}, fmt.Errorf("timestamp %q: %v", row[0], err)
	}
	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := service.StringToFloat(row[i+1])
		if err != nil {
			return model.Bar{}, fmt.Errorf("field %d %q: %v", i+1, row[i+1], err)
		}
		fields[i] = v
	}
	return model.Bar{
		Timestamp: int64(ts / 1000), // 毫秒转秒
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// SetLeverage 设置买卖双向杠杆
func (e *BybitExecutor) SetLeverage(ctx context.Context) error {
	e.logger.Info("Setting leverage",
		zap.Int("leverage", e.cfg.Leverage),
		zap.String("symbol", e.cfg.Symbol))

	params := map[string]string{
		"category":     categoryLinear,
		"symbol":       e.cfg.Symbol,
		"buyLeverage":  strconv.Itoa(e.cfg.Leverage),
		"sellLeverage": strconv.Itoa(e.cfg.Leverage),
	}
	if _, err := e.client.Send(ctx, "POST", endpointSetLeverage, params); err != nil {
		return err
	}
	e.logger.Info("Leverage set", zap.Int("leverage", e.cfg.Leverage))
	return nil
}

// balanceResult 是 wallet-balance 接口 result 字段的结构
type balanceResult struct {
	List []struct {
		Coin []struct {
			Coin          string `json:"coin"`
			WalletBalance string `json:"walletBalance"`
		} `json:"coin"`
	} `json:"list"`
}

// FetchBalance 查询统一账户下保证金币种的可用余额
// 结构里找不到目标币种不算错误，按 0 返回，上层会跳过交易。
func (e *BybitExecutor) FetchBalance(ctx context.Context) (float64, error) {
	params := map[string]string{"accountType": "UNIFIED"}
	raw, err := e.client.Send(ctx, "GET", endpointBalance, params)
	if err != nil {
		return 0, err
	}

	var result balanceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, &DataError{Reason: fmt.Sprintf("balance result decode: %v", err)}
	}
	if len(result.List) == 0 {
		e.logger.Warn("Balance response has no account entry")
		return 0, nil
	}

	for _, coin := range result.List[0].Coin {
		if coin.Coin != e.cfg.QuoteCoin {
			continue
		}
		balance, err := service.StringToFloat(coin.WalletBalance)
		if err != nil {
			return 0, &DataError{Reason: fmt.Sprintf("walletBalance %q: %v", coin.WalletBalance, err)}
		}
		e.logger.Info("Current balance", zap.Float64("balance", balance), zap.String("coin", coin.Coin))
		return balance, nil
	}

	e.logger.Warn("Quote coin balance not found", zap.String("coin", e.cfg.QuoteCoin))
	return 0, nil
}

// orderResult 是 order/create 接口 result 字段的结构
type orderResult struct {
	OrderID string `json:"orderId"`
}

// PlaceOrder 提交市价单
// hedge 模式下必须携带 positionIdx（买 1 卖 2），one_way 模式不带。
func (e *BybitExecutor) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	orderType := req.OrderType
	if orderType == "" {
		orderType = "Market"
	}

	params := map[string]string{
		"category":  categoryLinear,
		"symbol":    e.cfg.Symbol,
		"side":      req.Side,
		"orderType": orderType,
		"qty":       service.FloatToString(req.Qty),
	}
	if req.ReduceOnly {
		params["reduceOnly"] = api.BoolParam(true)
	}
	if e.cfg.PositionMode == "hedge" {
		positionIdx := "1"
		if req.Side == model.SideSell {
			positionIdx = "2"
		}
		params["positionIdx"] = positionIdx
	}

	e.logger.Info("Placing order",
		zap.String("side", req.Side),
		zap.Float64("qty", req.Qty),
		zap.Bool("reduceOnly", req.ReduceOnly))

	raw, err := e.client.Send(ctx, "POST", endpointCreateOrder, params)
	if err != nil {
		return nil, err
	}

	var result orderResult
	// 回执体解析失败不影响订单已被接受的事实
	_ = json.Unmarshal(raw, &result)

	e.logger.Info("Order placed", zap.String("orderId", result.OrderID))
	return &model.OrderResult{Accepted: true, OrderID: result.OrderID}, nil
}
