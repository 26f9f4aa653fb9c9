package model

// Bar 代表一根已完成的 K 线（OHLCV）
// 序列约定：按时间升序排列，最新的一根在末尾
type Bar struct {
	Timestamp int64   // 秒级时间戳（网关负责毫秒转秒）
	Open      float64 // 开盘价
	High      float64 // 最高价
	Low       float64 // 最低价
	Close     float64 // 收盘价
	Volume    float64 // 交易量
}

// Ticker 代表最小粒度的市场数据（实时价格快照）
type Ticker struct {
	Symbol    string  // 所属交易对，例如 "BTCUSDT"
	Timestamp int64   // 毫秒时间戳
	Price     float64 // 最新成交价
}
