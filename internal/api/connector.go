package api

import (
	"encoding/json"
	"sync"
	"time"

	"bybit-trend-bot/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsMessage 适用于 Bybit V5 公共频道的通用响应结构
type wsMessage struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"` // 延迟解析，不同 topic 结构不同
	Op    string          `json:"op"`
}

// tickerData 适配 tickers 频道数据结构
// delta 推送可能省略未变化的字段，lastPrice 为空串时跳过
type tickerData struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// Connector 订阅公共 tickers 频道，维护最新成交价快照
// 决策循环本身走 REST 轮询，这里的实时价只用于持仓监控时的退出判断，
// 让止损/止盈在两次 K 线之间也能被触发。
type Connector struct {
	wsURL  string
	symbol string

	mu         sync.RWMutex
	lastPrice  float64
	lastUpdate time.Time
}

// NewConnector 初始化行情连接器
func NewConnector(wsURL, symbol string) *Connector {
	service.Logger.Info("Connector initialized", zap.String("Symbol", symbol))
	return &Connector{
		wsURL:  wsURL,
		symbol: symbol,
	}
}

// Start 启动 WebSocket 连接和接收循环，断线后退避重连
// 在独立的 Goroutine 中运行。
func (c *Connector) Start() {
	for {
		if err := c.connectAndRead(); err != nil {
			service.Logger.Error("WS connection lost, reconnecting...", zap.Error(err))
		}
		time.Sleep(5 * time.Second)
	}
}

func (c *Connector) connectAndRead() error {
	service.Logger.Info("Starting Bybit WS connection...", zap.String("URL", c.wsURL))

	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subscribeMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"tickers." + c.symbol},
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		return err
	}
	service.Logger.Info("Subscribed to tickers stream", zap.String("Symbol", c.symbol))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Op != "" || msg.Topic == "" || len(msg.Data) == 0 {
			continue // 订阅回执、心跳等
		}

		var ticker tickerData
		if err := json.Unmarshal(msg.Data, &ticker); err != nil {
			service.Logger.Error("Ticker data unmarshal error", zap.Error(err))
			continue
		}
		if ticker.LastPrice == "" {
			continue
		}

		price, err := service.StringToFloat(ticker.LastPrice)
		if err != nil {
			continue
		}

		c.mu.Lock()
		c.lastPrice = price
		c.lastUpdate = time.Now()
		c.mu.Unlock()
	}
}

// LastPrice 返回最近一次推送的成交价
// 还没有收到任何推送时 ok 为 false，调用方应退回到 K 线收盘价。
func (c *Connector) LastPrice() (price float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastUpdate.IsZero() {
		return 0, false
	}
	return c.lastPrice, true
}
