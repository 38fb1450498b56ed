package backtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"quantPilot/internal/domain"
	"quantPilot/internal/portfolio"
	"quantPilot/internal/ports"
	"quantPilot/internal/risk"
)

// Config holds parameters for a backtest run. The same strategies and risk
// manager used live are replayed against recorded ticks; fills are instant
// at the tick price with a proportional fee.
type Config struct {
	Logger         ports.Logger
	Strategies     []ports.Strategy
	Risk           *risk.Manager
	InitialBalance float64
	MaxLeverage    float64
	FeeRate        float64 // proportional fee on filled notional
}

// Result summarizes a backtest run.
type Result struct {
	Ticks           int
	SignalsEmitted  int
	SignalsRejected int
	PositionsOpened int
	FinalBalance    float64
	Metrics         portfolio.Metrics
}

// Run replays ticks through the strategy/risk/portfolio pipeline. Positions
// still open after the last tick are closed at that tick's price.
func Run(ctx context.Context, cfg Config, ticks []*domain.PriceTick) (*Result, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for backtest")
	}
	if len(cfg.Strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	if cfg.Risk == nil {
		return nil, fmt.Errorf("risk manager is required")
	}
	if cfg.MaxLeverage <= 0 {
		return nil, fmt.Errorf("max leverage must be positive")
	}
	if cfg.FeeRate < 0 {
		return nil, fmt.Errorf("fee rate must not be negative")
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no ticks to replay")
	}

	ledger, err := portfolio.New(portfolio.Config{
		Logger:         cfg.Logger,
		AccountID:      "backtest",
		InitialBalance: cfg.InitialBalance,
	})
	if err != nil {
		return nil, err
	}
	for _, s := range cfg.Strategies {
		s.Reset()
	}

	result := &Result{}
	for _, tick := range ticks {
		result.Ticks++
		ledger.UpdateMarkPrice(tick.Price)

		// Close triggers first, exactly like the live loop.
		for _, pos := range ledger.OpenPositions() {
			assessment := cfg.Risk.EvaluatePosition(ctx, pos, tick.Price)
			if !assessment.ShouldClose {
				continue
			}
			closePosition(ctx, ledger, cfg, pos, tick, assessment.Reason)
		}

		for _, strat := range cfg.Strategies {
			signal := strat.OnTick(ctx, tick)
			if signal == nil {
				continue
			}
			result.SignalsEmitted++

			account := ledger.Account()
			assessment := cfg.Risk.CanOpenPosition(ctx, &account, signal.Size, tick.Price)
			if !assessment.Allowed {
				result.SignalsRejected++
				cfg.Logger.Debug(ctx, "Backtest signal rejected", map[string]interface{}{
					"strategy": signal.Strategy,
					"reason":   assessment.Reason,
				})
				continue
			}

			notional := signal.Size * tick.Price
			pos := &domain.Position{
				ID:         uuid.NewString(),
				Side:       signal.Side,
				Size:       signal.Size,
				EntryPrice: tick.Price,
				MarkPrice:  tick.Price,
				Leverage:   notional / account.Balance,
				Margin:     notional / cfg.MaxLeverage,
				Status:     domain.StatusOpen,
				OpenedAt:   tick.Timestamp,
				Strategy:   signal.Strategy,
			}
			if err := ledger.AddPosition(ctx, pos); err != nil {
				return nil, fmt.Errorf("failed to add backtest position: %w", err)
			}
			ledger.DebitFees(notional * cfg.FeeRate)
			result.PositionsOpened++
		}
	}

	// Force-close whatever is still open at the final tick.
	last := ticks[len(ticks)-1]
	for _, pos := range ledger.OpenPositions() {
		closePosition(ctx, ledger, cfg, pos, last, domain.CloseReasonManual)
	}

	result.FinalBalance = ledger.Account().Balance
	result.Metrics = ledger.Metrics()
	return result, nil
}

func closePosition(ctx context.Context, ledger *portfolio.Portfolio, cfg Config, pos *domain.Position, tick *domain.PriceTick, reason domain.CloseReason) {
	if _, err := ledger.ClosePosition(ctx, pos.ID, tick.Price, tick.Timestamp, reason); err != nil {
		cfg.Logger.Warn(ctx, "Backtest close failed", map[string]interface{}{
			"positionID": pos.ID,
			"error":      err.Error(),
		})
		return
	}
	ledger.DebitFees(pos.Size * tick.Price * cfg.FeeRate)
}
