package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bybit-trend-bot/internal/api"
	"bybit-trend-bot/internal/bot"
	"bybit-trend-bot/internal/execution"
	"bybit-trend-bot/internal/service"
	"bybit-trend-bot/internal/strategy"
	"bybit-trend-bot/pkg/ta"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env 提供 BYBIT_API_KEY / BYBIT_API_SECRET，不存在也不报错
	_ = godotenv.Load()

	configPath := "config"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatal("Configuration directory 'config/' not found. Please create it.")
	}
	cfg := service.LoadConfig(configPath)

	service.InitLogger(cfg.Log)
	defer service.Logger.Sync()

	logger := service.Logger.With(zap.String("Symbol", cfg.Bot.Symbol))
	logger.Info("Starting trading pipeline...",
		zap.String("interval", cfg.Bot.Interval),
		zap.Bool("dry_run", cfg.Bot.DryRun))

	// 签名网关与执行器
	client := api.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.BaseURL, cfg.Timeout(), service.Logger)
	bybitExec := execution.NewBybitExecutor(&execution.BybitConfig{
		Symbol:       cfg.Bot.Symbol,
		Interval:     cfg.Bot.Interval,
		Leverage:     cfg.Bot.Leverage,
		PositionMode: cfg.Bot.PositionMode,
		QuoteCoin:    cfg.Risk.QuoteCoin,
	}, client, logger)

	var exec execution.Executor = bybitExec
	if cfg.Bot.DryRun {
		exec = execution.NewSimulatorExecutor(&execution.SimulatorConfig{
			Symbol:         cfg.Bot.Symbol,
			InitialCapital: cfg.Risk.InitialCapital,
			FeeRate:        cfg.Risk.FeeRate,
		}, bybitExec, logger)
	}

	// 可选的实时价格流
	var stream bot.PriceStream
	if cfg.Exchange.WSURL != "" {
		connector := api.NewConnector(cfg.Exchange.WSURL, cfg.Bot.Symbol)
		go connector.Start()
		stream = connector
	}

	calc := ta.NewCalculator(logger)
	signals := strategy.NewSignalGenerator(logger)
	risk := strategy.NewRiskManager(&cfg.Risk, logger)
	lifecycle := bot.NewPositionLifecycle(cfg.Cooldown(), logger)

	b := bot.New(bot.Options{
		KlineLimit:   cfg.Bot.KlineLimit,
		PollInterval: cfg.PollInterval(),
	}, exec, calc, signals, risk, lifecycle, stream, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 杠杆初始化失败是唯一不可恢复的启动错误
	if err := b.Init(ctx); err != nil {
		logger.Fatal("Leverage initialization failed, aborting startup", zap.Error(err))
	}

	b.Run(ctx)
	logger.Info("Bot stopped")
}
