package ports

import (
	"context"

	"quantPilot/internal/domain"
)

// OrderType represents the execution style requested from the venue.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderResult represents the essential details returned after placing an order.
// A nil result or a failed status means no effect occurred at the venue; there
// is no partial state to roll back.
type OrderResult struct {
	VenueOrderID string             // Venue-assigned order id
	FilledSize   float64            // Quantity actually filled
	AvgPrice     float64            // Average fill price
	Fees         float64            // Fees charged for the fill
	Status       domain.OrderStatus // filled, partial or failed
}

// VenueClient defines the interface for interacting with a trading venue.
// This abstraction decouples the core from concrete venue implementations,
// so the randomized paper venue and a live connector are interchangeable.
type VenueClient interface {
	// PlaceOrder submits an order to the venue. A nil result without error
	// means the venue rejected the order with no effect.
	PlaceOrder(ctx context.Context, side domain.Side, size, price float64, orderType OrderType) (*OrderResult, error)

	// CancelOrder cancels an open order by its venue id.
	// Returns false if the order was not found or could not be cancelled.
	CancelOrder(ctx context.Context, venueOrderID string) (bool, error)

	// GetMarketPrice retrieves the venue's current market price.
	GetMarketPrice(ctx context.Context) (float64, error)
}
