package service

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ExchangeConfig 定义了交易所的连接信息
// APIKey / APISecret 可通过环境变量 BYBIT_API_KEY / BYBIT_API_SECRET 覆盖
type ExchangeConfig struct {
	APIKey         string
	APISecret      string
	BaseURL        string // REST 基础地址，例如 https://api-demo.bybit.com
	WSURL          string // 公共行情 WS 地址，为空则不启用实时价格流
	TimeoutSeconds int    // 单次请求超时（秒）
}

// BotConfig 定义了交易循环参数
type BotConfig struct {
	Symbol          string // 交易对，例如 BTCUSDT
	Interval        string // K 线周期（Bybit 分钟字符串，例如 "15"）
	Leverage        int    // 杠杆倍数
	PollSeconds     int    // 轮询间隔（秒）
	CooldownMinutes int    // 平仓后的冷却时间（分钟）
	PositionMode    string // "hedge" 或 "one_way"，影响下单是否携带 positionIdx
	KlineLimit      int    // 每次拉取的 K 线数量
	DryRun          bool   // true 时使用模拟执行器，不发真实订单
}

// RiskConfig 定义了风控和仓位参数
type RiskConfig struct {
	RiskFraction   float64 // 单次开仓动用余额的比例（历史配置可能为负，计算时取绝对值）
	MinOrderSize   float64 // 交易所最小下单数量，向上取整到该值
	QuoteCoin      string  // 保证金币种，例如 USDT
	InitialCapital float64 // 模拟执行器的初始资金
	FeeRate        float64 // 模拟执行器的手续费率
}

// LogConfig 定义了日志输出参数
type LogConfig struct {
	Level      string
	Output     string // console / file / both
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type Config struct {
	Exchange ExchangeConfig `mapstructure:"Exchange"`
	Bot      BotConfig      `mapstructure:"Bot"`
	Risk     RiskConfig     `mapstructure:"Risk"`
	Log      LogConfig      `mapstructure:"Log"`
}

// Timeout 返回请求超时时长
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Exchange.TimeoutSeconds) * time.Second
}

// Cooldown 返回平仓冷却时长
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Bot.CooldownMinutes) * time.Minute
}

// PollInterval 返回轮询间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bot.PollSeconds) * time.Second
}

// GlobalConfig 存储加载后的全局配置
var GlobalConfig Config

// LoadConfig 读取并解析配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)

	// 未显式配置时的缺省值
	viper.SetDefault("Exchange.TimeoutSeconds", 10)
	viper.SetDefault("Bot.Symbol", "BTCUSDT")
	viper.SetDefault("Bot.Interval", "15")
	viper.SetDefault("Bot.Leverage", 10)
	viper.SetDefault("Bot.PollSeconds", 10)
	viper.SetDefault("Bot.CooldownMinutes", 15)
	viper.SetDefault("Bot.PositionMode", "one_way")
	viper.SetDefault("Bot.KlineLimit", 200)
	viper.SetDefault("Risk.RiskFraction", 0.02)
	viper.SetDefault("Risk.MinOrderSize", 0.001)
	viper.SetDefault("Risk.QuoteCoin", "USDT")
	viper.SetDefault("Risk.InitialCapital", 10000)
	viper.SetDefault("Risk.FeeRate", 0.0005)
	viper.SetDefault("Log.Level", "info")
	viper.SetDefault("Log.Output", "console")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Fatalf("Config file not found: %s", err)
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode config into struct: %s", err)
	}

	// 密钥优先取环境变量（通常由 .env 提供），避免写进配置文件
	if key := os.Getenv("BYBIT_API_KEY"); key != "" {
		GlobalConfig.Exchange.APIKey = key
	}
	if secret := os.Getenv("BYBIT_API_SECRET"); secret != "" {
		GlobalConfig.Exchange.APISecret = secret
	}

	return &GlobalConfig
}
