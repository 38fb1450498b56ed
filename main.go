package main

import (
	"context"
	"log" // standard log only for fatal errors before the logger is ready

	"quantPilot/config"
	"quantPilot/internal/adapters/binanceclient"
	"quantPilot/internal/adapters/logger"
	"quantPilot/internal/adapters/mockvenue"
	"quantPilot/internal/adapters/notifier"
	"quantPilot/internal/adapters/sqlite"
	"quantPilot/internal/app"
	"quantPilot/internal/executor"
	"quantPilot/internal/feed"
	"quantPilot/internal/portfolio"
	"quantPilot/internal/ports"
	"quantPilot/internal/risk"
	"quantPilot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Venue Client
	var venue ports.VenueClient
	switch cfg.VenueMode {
	case config.VenueBinance:
		venue, err = binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			Symbol:     cfg.BinanceSymbol,
			UseTestnet: cfg.BinanceTestnet,
			Logger:     appLogger,
		})
	default:
		venue, err = mockvenue.New(mockvenue.Config{
			Logger:          appLogger,
			InitialPrice:    cfg.InitialPrice,
			FeeRate:         cfg.PaperFeeRate,
			MaxSlippagePct:  cfg.PaperSlippagePct,
			FailureRate:     cfg.PaperFailureRate,
			PartialFillRate: cfg.PaperPartialRate,
		})
	}
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize venue client")
		log.Fatalf("FATAL: Failed to initialize venue client: %v", err)
	}
	appLogger.Info(ctx, "Venue client initialized", map[string]interface{}{"mode": cfg.VenueMode})

	// 5. Initialize Notifier
	var sender notifier.TextSender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sender = notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	notif, err := notifier.New(appLogger, sender)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize notifier")
		log.Fatalf("FATAL: Failed to initialize notifier: %v", err)
	}

	// 6. Initialize Price Feed
	priceFeed, err := feed.New(feed.Config{
		Logger:            appLogger,
		Mode:              feed.Mode(cfg.FeedMode),
		Interval:          cfg.TickInterval,
		InitialPrice:      cfg.InitialPrice,
		TargetPrice:       cfg.TargetPrice,
		NoiseBand:         cfg.NoiseBand,
		ReversionStrength: cfg.ReversionStrength,
		HistorySize:       cfg.FeedHistorySize,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize price feed")
		log.Fatalf("FATAL: Failed to initialize price feed: %v", err)
	}

	// 7. Initialize Strategies
	smaStrat, err := strategy.NewSMACrossover(strategy.SMACrossoverConfig{
		ShortWindow: cfg.SMAShortWindow,
		LongWindow:  cfg.SMALongWindow,
		BaseSize:    cfg.SMABaseSize,
		MinSize:     cfg.SMAMinSize,
		Cooldown:    cfg.SMACooldown,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize SMA crossover strategy")
		log.Fatalf("FATAL: Failed to initialize SMA crossover strategy: %v", err)
	}
	meanRevStrat, err := strategy.NewMeanReversion(strategy.MeanReversionConfig{
		Window:    cfg.MeanRevWindow,
		Threshold: cfg.MeanRevThreshold,
		BaseSize:  cfg.MeanRevBaseSize,
		MinSize:   cfg.MeanRevMinSize,
		Cooldown:  cfg.MeanRevCooldown,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize mean reversion strategy")
		log.Fatalf("FATAL: Failed to initialize mean reversion strategy: %v", err)
	}

	// 8. Initialize Risk Manager
	riskMgr, err := risk.NewManager(risk.Config{
		MaxLeverage:       cfg.MaxLeverage,
		MaxOpenPositions:  cfg.MaxOpenPositions,
		RiskPerTrade:      cfg.RiskPerTrade,
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk manager")
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	// 9. Initialize Portfolio Ledger
	ledger, err := portfolio.New(portfolio.Config{
		Logger:         appLogger,
		InitialBalance: cfg.InitialBalance,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize portfolio")
		log.Fatalf("FATAL: Failed to initialize portfolio: %v", err)
	}

	// 10. Initialize Trade Executor
	exec, err := executor.New(executor.Config{
		Logger:       appLogger,
		Venue:        venue,
		Portfolio:    ledger,
		Risk:         riskMgr,
		Trades:       repo,
		Positions:    repo,
		Notifier:     notif,
		MaxLeverage:  cfg.MaxLeverage,
		VenueTimeout: cfg.VenueTimeout,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trade executor")
		log.Fatalf("FATAL: Failed to initialize trade executor: %v", err)
	}

	// 11. Initialize Application Service
	service, err := app.NewService(
		appLogger,
		priceFeed,
		[]ports.Strategy{smaStrat, meanRevStrat},
		riskMgr,
		exec,
		ledger,
		repo,
		repo,
		notif,
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 12. Start the Service
	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
