package ports

import (
	"context"

	"quantPilot/internal/domain"
)

// Strategy defines the interface for signal-generating trading strategies.
// Strategies are stateful (rolling windows, cooldowns) and are driven one
// tick at a time by the orchestrator.
type Strategy interface {
	// Name returns the strategy's identifier, recorded on signals and positions.
	Name() string

	// OnTick feeds one price observation into the strategy's state and
	// returns a signal, or nil when no action is recommended.
	OnTick(ctx context.Context, tick *domain.PriceTick) *domain.TradingSignal

	// Reset clears all rolling state and the signal cooldown, e.g. between
	// backtest runs.
	Reset()
}
