package mockvenue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
)

// Venue is a randomized paper-trading venue. It fills orders immediately at
// the requested price plus slippage, charges a proportional fee and fails or
// partially fills a configurable fraction of orders. It implements
// ports.VenueClient so the trading core cannot tell it from a live connector.
type Venue struct {
	logger ports.Logger
	cfg    Config

	mu        sync.Mutex
	rng       *rand.Rand
	lastPrice float64
	orders    map[string]bool // venue order id -> open
}

// Config holds behaviour knobs for the paper venue. Probabilities are in
// [0,1]; rates are fractions of notional.
type Config struct {
	Logger          ports.Logger
	InitialPrice    float64
	FeeRate         float64 // proportional fee on filled notional
	MaxSlippagePct  float64 // symmetric slippage band around the requested price
	FailureRate     float64 // probability an order is rejected outright
	PartialFillRate float64 // probability a fill is partial
	Seed            int64   // 0 means nondeterministic
}

// New creates a paper venue.
func New(cfg Config) (*Venue, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for mock venue: %w", ports.ErrConfigurationError)
	}
	if cfg.InitialPrice <= 0 {
		return nil, fmt.Errorf("initial price must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.FeeRate < 0 || cfg.FailureRate < 0 || cfg.FailureRate > 1 ||
		cfg.PartialFillRate < 0 || cfg.PartialFillRate > 1 {
		return nil, fmt.Errorf("invalid venue rates: %w", ports.ErrConfigurationError)
	}
	src := rand.NewSource(cfg.Seed)
	if cfg.Seed == 0 {
		src = rand.NewSource(rand.Int63())
	}
	return &Venue{
		logger:    cfg.Logger,
		cfg:       cfg,
		rng:       rand.New(src),
		lastPrice: cfg.InitialPrice,
		orders:    make(map[string]bool),
	}, nil
}

// PlaceOrder simulates submitting an order. Rejections return an error
// wrapping ports.ErrOrderPlacementFailed so the caller's recovery path is
// exercised the same way a live venue outage would exercise it.
func (v *Venue) PlaceOrder(ctx context.Context, side domain.Side, size, price float64, orderType ports.OrderType) (*ports.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 || price <= 0 {
		return nil, fmt.Errorf("size and price must be positive: %w", ports.ErrInvalidRequest)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rng.Float64() < v.cfg.FailureRate {
		v.logger.Warn(ctx, "Paper venue rejected order", map[string]interface{}{
			"side": side, "size": size, "price": price,
		})
		return nil, fmt.Errorf("paper venue rejection: %w", ports.ErrOrderPlacementFailed)
	}

	// Slippage moves the fill against the taker.
	slip := v.rng.Float64() * v.cfg.MaxSlippagePct
	avgPrice := price * (1 + slip*side.Direction())

	filled := size
	status := domain.OrderFilled
	if v.rng.Float64() < v.cfg.PartialFillRate {
		// Between 10% and 90% of the requested size.
		filled = size * (0.1 + 0.8*v.rng.Float64())
		status = domain.OrderPartial
	}

	orderID := uuid.NewString()
	v.orders[orderID] = false // immediate execution, nothing left open
	v.lastPrice = avgPrice

	result := &ports.OrderResult{
		VenueOrderID: orderID,
		FilledSize:   filled,
		AvgPrice:     avgPrice,
		Fees:         filled * avgPrice * v.cfg.FeeRate,
		Status:       status,
	}
	v.logger.Debug(ctx, "Paper venue filled order", map[string]interface{}{
		"orderID": orderID, "side": side, "filled": filled, "avgPrice": avgPrice, "status": status,
	})
	return result, nil
}

// CancelOrder cancels an order by venue id. Orders execute immediately on
// the paper venue, so a known id is never cancellable.
func (v *Venue) CancelOrder(ctx context.Context, venueOrderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	open, ok := v.orders[venueOrderID]
	if !ok {
		return false, fmt.Errorf("order %s: %w", venueOrderID, ports.ErrOrderNotFound)
	}
	return open, nil
}

// GetMarketPrice returns the last traded price on the paper venue.
func (v *Venue) GetMarketPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastPrice, nil
}
