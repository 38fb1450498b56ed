package ports

import (
	"context"

	"quantPilot/internal/domain"
)

// Notifier receives fire-and-forget notifications about pipeline events.
// Implementations must never block the trading pipeline; failures to deliver
// are logged by the implementation and otherwise ignored.
type Notifier interface {
	// TradeExecuted reports a finalized trade record.
	TradeExecuted(ctx context.Context, trade *domain.Trade)
	// PositionOpened reports a newly opened position.
	PositionOpened(ctx context.Context, pos *domain.Position)
	// PositionClosed reports a position that transitioned to closed.
	PositionClosed(ctx context.Context, pos *domain.Position)
	// RiskAlert reports a risk trigger (liquidation, margin call, ...).
	RiskAlert(ctx context.Context, pos *domain.Position, reason string)
}
