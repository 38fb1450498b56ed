package ports

import (
	"context"
	"time"

	"quantPilot/internal/domain"
)

// TradeFilter narrows trade/position listings. Zero values mean "no filter".
type TradeFilter struct {
	Status   domain.OrderStatus
	Side     domain.Side
	Strategy string
	From     time.Time
	To       time.Time
}

// PositionFilter narrows position listings. Zero values mean "no filter".
type PositionFilter struct {
	Status   domain.PositionStatus
	Side     domain.Side
	Strategy string
	From     time.Time
	To       time.Time
}

// TradeRepository defines the interface for storing and retrieving trade records.
type TradeRepository interface {
	// InsertTrade saves a new trade record.
	InsertTrade(ctx context.Context, trade *domain.Trade) error
	// UpdateTrade modifies an existing trade record by id.
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	// ListTrades retrieves trades matching the filter, most recent first.
	ListTrades(ctx context.Context, filter TradeFilter) ([]*domain.Trade, error)
}

// PositionRepository defines the interface for storing and retrieving positions.
type PositionRepository interface {
	// InsertPosition saves a new position.
	InsertPosition(ctx context.Context, pos *domain.Position) error
	// UpdatePosition modifies an existing position by id.
	UpdatePosition(ctx context.Context, pos *domain.Position) error
	// FindPositionByID retrieves a position by id. Returns nil, nil if not found.
	FindPositionByID(ctx context.Context, id string) (*domain.Position, error)
	// ListPositions retrieves positions matching the filter, most recent first.
	ListPositions(ctx context.Context, filter PositionFilter) ([]*domain.Position, error)
}

// TickRepository defines the interface for durable tick archival.
type TickRepository interface {
	// InsertTick archives a price tick.
	InsertTick(ctx context.Context, tick *domain.PriceTick) error
	// ListTicks retrieves archived ticks within [from, to], oldest first.
	ListTicks(ctx context.Context, from, to time.Time) ([]*domain.PriceTick, error)
}
