package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
)

// Portfolio owns the authoritative in-memory ledger: the account and all
// open/closed positions. Every other component reads snapshots or mutates
// through its methods; nothing else holds a reference to the internal maps.
type Portfolio struct {
	logger ports.Logger

	mu      sync.RWMutex
	account domain.Account
	open    map[string]*domain.Position
	closed  []*domain.Position
}

// Config holds parameters for the portfolio ledger.
type Config struct {
	Logger         ports.Logger
	AccountID      string
	InitialBalance float64
}

// New creates an empty portfolio with the configured starting balance.
func New(cfg Config) (*Portfolio, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for portfolio")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive")
	}
	accountID := cfg.AccountID
	if accountID == "" {
		accountID = "default"
	}
	return &Portfolio{
		logger: cfg.Logger,
		account: domain.Account{
			ID:      accountID,
			Balance: cfg.InitialBalance,
		},
		open: make(map[string]*domain.Position),
	}, nil
}

// Load seeds the ledger from persisted positions, typically at startup.
// Open positions rejoin the open set; closed ones feed the metrics.
func (p *Portfolio) Load(ctx context.Context, positions []*domain.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range positions {
		cp := *pos
		if cp.Status == domain.StatusOpen {
			p.open[cp.ID] = &cp
			p.account.OpenPositionsCount++
			p.account.Balance -= cp.Margin
		} else {
			p.closed = append(p.closed, &cp)
			p.account.Balance += cp.RealizedPnl
		}
	}
	p.refreshMarginLocked()
	p.logger.Info(ctx, "Portfolio loaded from persistence", map[string]interface{}{
		"open":    len(p.open),
		"closed":  len(p.closed),
		"balance": p.account.Balance,
	})
}

// Account returns a snapshot of the account state.
func (p *Portfolio) Account() domain.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.account
}

// DebitFees subtracts venue fees from the free balance.
func (p *Portfolio) DebitFees(fees float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account.Balance -= fees
}

// AddPosition records a newly opened position, locking its margin out of the
// free balance. The position's id must be unique.
func (p *Portfolio) AddPosition(ctx context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" {
		return fmt.Errorf("position with id is required: %w", ports.ErrInvalidRequest)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.open[pos.ID]; exists {
		return fmt.Errorf("position %s already open: %w", pos.ID, ports.ErrDuplicateEntry)
	}
	cp := *pos
	p.open[cp.ID] = &cp
	p.account.OpenPositionsCount++
	p.account.Balance -= cp.Margin
	p.refreshMarginLocked()

	p.logger.Info(ctx, "Position added to ledger", map[string]interface{}{
		"positionID": cp.ID,
		"side":       cp.Side,
		"size":       cp.Size,
		"entryPrice": cp.EntryPrice,
		"openCount":  p.account.OpenPositionsCount,
	})
	return nil
}

// ClosePosition transitions an open position to closed exactly once, fixing
// its realized PnL and releasing its margin back to the free balance.
// Returns ports.ErrNotFound if no open position has the id.
func (p *Portfolio) ClosePosition(ctx context.Context, id string, closePrice float64, closedAt time.Time, reason domain.CloseReason) (*domain.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.open[id]
	if !ok {
		return nil, fmt.Errorf("open position %s: %w", id, ports.ErrNotFound)
	}

	pos.Status = domain.StatusClosed
	pos.MarkPrice = closePrice
	pos.ClosePrice = closePrice
	pos.ClosedAt = closedAt
	pos.CloseReason = reason
	pos.RealizedPnl = pos.PnlAt(closePrice)
	pos.UnrealizedPnl = 0

	delete(p.open, id)
	p.closed = append(p.closed, pos)
	p.account.OpenPositionsCount--
	p.account.Balance += pos.Margin + pos.RealizedPnl
	p.refreshMarginLocked()

	p.logger.Info(ctx, "Position closed in ledger", map[string]interface{}{
		"positionID":  id,
		"closePrice":  closePrice,
		"reason":      reason,
		"realizedPnl": pos.RealizedPnl,
		"openCount":   p.account.OpenPositionsCount,
	})
	snapshot := *pos
	return &snapshot, nil
}

// UpdateMarkPrice revalues every open position at the given price,
// recomputing unrealized PnL and the account's aggregate locked margin.
func (p *Portfolio) UpdateMarkPrice(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range p.open {
		pos.MarkPrice = price
		pos.UnrealizedPnl = pos.PnlAt(price)
	}
	p.refreshMarginLocked()
}

// refreshMarginLocked recomputes Account.Margin as the committed margin of
// all open positions marked to market. Callers must hold p.mu.
func (p *Portfolio) refreshMarginLocked() {
	total := 0.0
	for _, pos := range p.open {
		total += pos.Margin + pos.UnrealizedPnl
	}
	p.account.Margin = total
}

// OpenPositions returns snapshots of all open positions.
func (p *Portfolio) OpenPositions() []*domain.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*domain.Position, 0, len(p.open))
	for _, pos := range p.open {
		cp := *pos
		out = append(out, &cp)
	}
	return out
}

// Position returns a snapshot of the open position with the given id.
// Returns nil when no open position has the id.
func (p *Portfolio) Position(id string) *domain.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.open[id]
	if !ok {
		return nil
	}
	cp := *pos
	return &cp
}

// Metrics recomputes the aggregate performance figures over the closed
// ledger. Exposed read-only.
func (p *Portfolio) Metrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return computeMetrics(p.closed)
}
