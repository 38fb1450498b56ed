package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantPilot/internal/domain"
	"quantPilot/internal/portfolio"
	"quantPilot/internal/ports"
	"quantPilot/internal/risk"
)

// TradeRequest describes an opening trade the executor should attempt.
type TradeRequest struct {
	Side     domain.Side
	Size     float64
	Price    float64 // Reference price for the risk check and the order
	Strategy string
}

// Config holds the executor's collaborators.
type Config struct {
	Logger       ports.Logger
	Venue        ports.VenueClient
	Portfolio    *portfolio.Portfolio
	Risk         *risk.Manager
	Trades       ports.TradeRepository
	Positions    ports.PositionRepository
	Notifier     ports.Notifier
	MaxLeverage  float64       // Used to size the margin committed per position
	VenueTimeout time.Duration // Bound on a single venue call
}

// Executor orchestrates risk-checked order submission and records outcomes
// into the portfolio and the persistence collaborators.
type Executor struct {
	cfg Config

	// Serializes trade execution per account so two overlapping opens cannot
	// race past the position-count and margin checks.
	mu sync.Mutex
}

// New creates a trade executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Logger == nil || cfg.Venue == nil || cfg.Portfolio == nil || cfg.Risk == nil ||
		cfg.Trades == nil || cfg.Positions == nil || cfg.Notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for executor")
	}
	if cfg.MaxLeverage <= 0 {
		return nil, fmt.Errorf("max leverage must be positive")
	}
	if cfg.VenueTimeout <= 0 {
		cfg.VenueTimeout = 5 * time.Second
	}
	return &Executor{cfg: cfg}, nil
}

// ExecuteTrade validates the request against the risk manager and, if
// allowed, submits it to the venue. A risk denial or a venue failure yields
// a nil trade with no error: nothing happened, the caller logs and moves on.
// A fully filled order opens a new position in the portfolio.
func (e *Executor) ExecuteTrade(ctx context.Context, req TradeRequest) (*domain.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.cfg.Portfolio.Account()
	assessment := e.cfg.Risk.CanOpenPosition(ctx, &account, req.Size, req.Price)
	if !assessment.Allowed {
		e.cfg.Logger.Info(ctx, "Trade denied by risk manager", map[string]interface{}{
			"strategy": req.Strategy,
			"side":     req.Side,
			"size":     req.Size,
			"price":    req.Price,
			"reason":   assessment.Reason,
			"maxSize":  assessment.MaxSize,
		})
		return nil, nil
	}

	trade, result, err := e.submitOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if result.Status == domain.OrderFilled {
		if err := e.openPosition(ctx, req, account, result); err != nil {
			// The fill happened; the ledger entry failing to persist is
			// reported but the trade record stands.
			e.cfg.Logger.Error(ctx, err, "Failed to record opened position", map[string]interface{}{
				"tradeID": trade.ID,
			})
			return trade, err
		}
	}
	return trade, nil
}

// submitOrder persists a pending trade record, places the order at the venue
// under the configured timeout, and finalizes the record with the venue's
// response. A nil OrderResult means the venue reported no effect.
func (e *Executor) submitOrder(ctx context.Context, req TradeRequest) (*domain.Trade, *ports.OrderResult, error) {
	trade := &domain.Trade{
		ID:        uuid.NewString(),
		Side:      req.Side,
		Size:      req.Size,
		Price:     req.Price,
		Status:    domain.OrderPending,
		Timestamp: time.Now().UTC(),
		Strategy:  req.Strategy,
	}
	if err := e.cfg.Trades.InsertTrade(ctx, trade); err != nil {
		return nil, nil, fmt.Errorf("failed to persist pending trade: %w", err)
	}

	venueCtx, cancel := context.WithTimeout(ctx, e.cfg.VenueTimeout)
	defer cancel()
	result, err := e.cfg.Venue.PlaceOrder(venueCtx, req.Side, req.Size, req.Price, ports.OrderTypeMarket)
	if err != nil || result == nil || result.Status == domain.OrderFailed {
		trade.Status = domain.OrderFailed
		if updErr := e.cfg.Trades.UpdateTrade(ctx, trade); updErr != nil {
			e.cfg.Logger.Error(ctx, updErr, "Failed to record failed trade", map[string]interface{}{"tradeID": trade.ID})
		}
		e.cfg.Logger.Warn(ctx, "Venue rejected order, trade dropped", map[string]interface{}{
			"tradeID":  trade.ID,
			"strategy": req.Strategy,
			"error":    fmt.Sprintf("%v", err),
		})
		// Venue failures are recovered locally; no retry from the core.
		return trade, nil, nil
	}

	trade.Status = result.Status
	trade.Price = result.AvgPrice
	trade.Fees = result.Fees
	trade.VenueOrderID = result.VenueOrderID
	if err := e.cfg.Trades.UpdateTrade(ctx, trade); err != nil {
		e.cfg.Logger.Error(ctx, err, "Failed to finalize trade record", map[string]interface{}{"tradeID": trade.ID})
	}

	e.cfg.Portfolio.DebitFees(result.Fees)
	e.cfg.Notifier.TradeExecuted(ctx, trade)
	return trade, result, nil
}

// openPosition creates the ledger position for a fully filled opening trade.
func (e *Executor) openPosition(ctx context.Context, req TradeRequest, account domain.Account, result *ports.OrderResult) error {
	notional := result.FilledSize * result.AvgPrice
	leverage := notional / account.Balance
	pos := &domain.Position{
		ID:         uuid.NewString(),
		Side:       req.Side,
		Size:       result.FilledSize,
		EntryPrice: result.AvgPrice,
		MarkPrice:  result.AvgPrice,
		Leverage:   leverage,
		Margin:     notional / e.cfg.MaxLeverage,
		Status:     domain.StatusOpen,
		OpenedAt:   time.Now().UTC(),
		Strategy:   req.Strategy,
	}
	if err := e.cfg.Portfolio.AddPosition(ctx, pos); err != nil {
		return fmt.Errorf("failed to add position to ledger: %w", err)
	}
	if err := e.cfg.Positions.InsertPosition(ctx, pos); err != nil {
		return fmt.Errorf("failed to persist position: %w", err)
	}
	e.cfg.Notifier.PositionOpened(ctx, pos)
	e.cfg.Logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"side":       pos.Side,
		"size":       pos.Size,
		"entryPrice": pos.EntryPrice,
		"leverage":   pos.Leverage,
		"margin":     pos.Margin,
		"strategy":   pos.Strategy,
	})
	return nil
}

// ClosePosition closes an open position by executing an opposite-side market
// order for the full size at the current mark price. On any failure the
// position is left open and false is returned; retrying is the caller's
// responsibility. The closing order bypasses the opening risk gate: reducing
// exposure must not be blocked by position-count or margin caps.
func (e *Executor) ClosePosition(ctx context.Context, id string, reason domain.CloseReason) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.cfg.Portfolio.Position(id)
	if pos == nil {
		e.cfg.Logger.Warn(ctx, "Close requested for unknown position", map[string]interface{}{"positionID": id})
		return false
	}

	req := TradeRequest{
		Side:     pos.Side.Opposite(),
		Size:     pos.Size,
		Price:    pos.MarkPrice,
		Strategy: pos.Strategy,
	}
	_, result, err := e.submitOrder(ctx, req)
	if err != nil || result == nil {
		e.cfg.Logger.Warn(ctx, "Closing order failed, position stays open", map[string]interface{}{
			"positionID": id,
			"reason":     reason,
		})
		return false
	}

	closed, err := e.cfg.Portfolio.ClosePosition(ctx, id, result.AvgPrice, time.Now().UTC(), reason)
	if err != nil {
		e.cfg.Logger.Error(ctx, err, "Failed to close position in ledger", map[string]interface{}{"positionID": id})
		return false
	}
	if err := e.cfg.Positions.UpdatePosition(ctx, closed); err != nil {
		e.cfg.Logger.Error(ctx, err, "Failed to persist closed position", map[string]interface{}{"positionID": id})
	}
	e.cfg.Notifier.PositionClosed(ctx, closed)
	e.cfg.Logger.Info(ctx, "Position closed", map[string]interface{}{
		"positionID":  id,
		"closePrice":  closed.ClosePrice,
		"reason":      reason,
		"realizedPnl": closed.RealizedPnl,
	})
	return true
}
