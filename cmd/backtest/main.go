package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"quantPilot/config"
	"quantPilot/internal/adapters/logger"
	"quantPilot/internal/adapters/sqlite"
	"quantPilot/internal/backtest"
	"quantPilot/internal/domain"
	"quantPilot/internal/feed"
	"quantPilot/internal/ports"
	"quantPilot/internal/risk"
	"quantPilot/internal/strategy"
	"quantPilot/internal/utils"
)

func main() {
	ticksFile := flag.String("ticks", "", "CSV file of recorded ticks")
	fromDB := flag.Bool("from-db", false, "replay the tick archive from the configured database")
	from := flag.String("from", "", "archive range start (RFC3339), used with -from-db")
	to := flag.String("to", "", "archive range end (RFC3339), used with -from-db")
	tickCount := flag.Int("n", 10000, "number of synthetic ticks to generate when no source is given")
	seed := flag.Int64("seed", 42, "seed for synthetic tick generation")
	saveTicks := flag.String("save-ticks", "", "optional CSV path to save the replayed ticks")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	// 2. Load or generate ticks
	var ticks []*domain.PriceTick
	if *fromDB {
		ticks, err = loadArchivedTicks(ctx, appLogger, cfg.DBPath, *from, *to)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to load tick archive", map[string]interface{}{"db": cfg.DBPath})
			log.Fatalf("FATAL: Failed to load tick archive: %v", err)
		}
		appLogger.Info(ctx, "Loaded ticks from archive", map[string]interface{}{"db": cfg.DBPath, "count": len(ticks)})
	} else if *ticksFile != "" {
		ticks, err = utils.ReadTicksFromCSV(*ticksFile)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to read ticks from CSV", map[string]interface{}{"file": *ticksFile})
			log.Fatalf("FATAL: Failed to read ticks from CSV: %v", err)
		}
		appLogger.Info(ctx, "Loaded ticks from CSV", map[string]interface{}{"file": *ticksFile, "count": len(ticks)})
	} else {
		ticks, err = generateTicks(cfg, *tickCount, *seed)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to generate ticks")
			log.Fatalf("FATAL: Failed to generate ticks: %v", err)
		}
		appLogger.Info(ctx, "Generated synthetic ticks", map[string]interface{}{
			"mode": cfg.FeedMode, "count": len(ticks), "seed": *seed,
		})
	}

	if *saveTicks != "" {
		if err := utils.WriteTicksToCSV(ticks, *saveTicks); err != nil {
			appLogger.Error(ctx, err, "Failed to save ticks", map[string]interface{}{"file": *saveTicks})
		}
	}

	// 3. Build strategies and risk manager from the same configuration the
	// live bot uses.
	smaStrat, err := strategy.NewSMACrossover(strategy.SMACrossoverConfig{
		ShortWindow: cfg.SMAShortWindow,
		LongWindow:  cfg.SMALongWindow,
		BaseSize:    cfg.SMABaseSize,
		MinSize:     cfg.SMAMinSize,
		Cooldown:    cfg.SMACooldown,
	}, appLogger)
	if err != nil {
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
		log.Fatalf("FATAL: Failed to initialize mean reversion strategy: %v", err)
	}
	riskMgr, err := risk.NewManager(risk.Config{
		MaxLeverage:       cfg.MaxLeverage,
		MaxOpenPositions:  cfg.MaxOpenPositions,
		RiskPerTrade:      cfg.RiskPerTrade,
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	// 4. Run the backtest
	result, err := backtest.Run(ctx, backtest.Config{
		Logger:         appLogger,
		Strategies:     []ports.Strategy{smaStrat, meanRevStrat},
		Risk:           riskMgr,
		InitialBalance: cfg.InitialBalance,
		MaxLeverage:    cfg.MaxLeverage,
		FeeRate:        cfg.PaperFeeRate,
	}, ticks)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest failed")
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	printResult(cfg, result)
}

// loadArchivedTicks replays the trading bot's own tick archive. Empty range
// bounds default to all of recorded history.
func loadArchivedTicks(ctx context.Context, appLogger ports.Logger, dbPath, fromStr, toStr string) ([]*domain.PriceTick, error) {
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: appLogger})
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	fromTime := time.Time{}
	if fromStr != "" {
		if fromTime, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return nil, fmt.Errorf("invalid -from value %q: %w", fromStr, err)
		}
	}
	toTime := time.Now().UTC()
	if toStr != "" {
		if toTime, err = time.Parse(time.RFC3339, toStr); err != nil {
			return nil, fmt.Errorf("invalid -to value %q: %w", toStr, err)
		}
	}
	return repo.ListTicks(ctx, fromTime, toTime)
}

// generateTicks produces a deterministic synthetic tick series using the same
// feed the live bot runs on, with a short interval so generation is fast.
func generateTicks(cfg *config.Config, count int, seed int64) ([]*domain.PriceTick, error) {
	priceFeed, err := feed.New(feed.Config{
		Logger:            noopLogger{},
		Mode:              feed.Mode(cfg.FeedMode),
		Interval:          time.Millisecond,
		InitialPrice:      cfg.InitialPrice,
		TargetPrice:       cfg.TargetPrice,
		NoiseBand:         cfg.NoiseBand,
		ReversionStrength: cfg.ReversionStrength,
		HistorySize:       cfg.FeedHistorySize,
		Seed:              seed,
	})
	if err != nil {
		return nil, err
	}

	ticks := make([]*domain.PriceTick, 0, count)
	done := make(chan struct{})
	if err := priceFeed.Start(context.Background(), func(tick *domain.PriceTick) {
		ticks = append(ticks, tick)
		if len(ticks) >= count {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	}); err != nil {
		return nil, err
	}
	<-done
	priceFeed.Stop()
	if len(ticks) > count {
		ticks = ticks[:count]
	}
	return ticks, nil
}

func printResult(cfg *config.Config, result *backtest.Result) {
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Ticks replayed:     %d\n", result.Ticks)
	fmt.Printf("Signals emitted:    %d (rejected: %d)\n", result.SignalsEmitted, result.SignalsRejected)
	fmt.Printf("Positions opened:   %d\n", result.PositionsOpened)
	fmt.Printf("Closed positions:   %d (wins: %d, losses: %d)\n",
		result.Metrics.ClosedPositions, result.Metrics.WinningPositions, result.Metrics.LosingPositions)
	fmt.Printf("Win rate:           %.2f%%\n", result.Metrics.WinRate*100)
	fmt.Printf("Realized PnL:       %.4f\n", result.Metrics.RealizedPnl)
	fmt.Printf("Avg return:         %.2f%%\n", result.Metrics.AverageReturnPct)
	fmt.Printf("Max drawdown:       %.4f\n", result.Metrics.MaxDrawdown)
	fmt.Printf("Sharpe ratio:       %.4f\n", result.Metrics.SharpeRatio)
	fmt.Printf("Final balance:      %.4f (start: %.4f)\n", result.FinalBalance, cfg.InitialBalance)
}

// noopLogger keeps tick generation quiet.
type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}
