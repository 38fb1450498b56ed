package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newPortfolio(t *testing.T, balance float64) *Portfolio {
	t.Helper()
	p, err := New(Config{Logger: nopLogger{}, AccountID: "test", InitialBalance: balance})
	require.NoError(t, err)
	return p
}

func position(id string, side domain.Side, entry, size, margin float64) *domain.Position {
	return &domain.Position{
		ID:         id,
		Side:       side,
		Size:       size,
		EntryPrice: entry,
		MarkPrice:  entry,
		Leverage:   size * entry / margin,
		Margin:     margin,
		Status:     domain.StatusOpen,
		OpenedAt:   time.Now().UTC(),
		Strategy:   "sma_crossover",
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{InitialBalance: 100})
	require.Error(t, err)
	_, err = New(Config{Logger: nopLogger{}, InitialBalance: 0})
	require.Error(t, err)
}

func TestAddPositionLocksMarginAndCounts(t *testing.T) {
	p := newPortfolio(t, 1000)
	ctx := context.Background()

	require.NoError(t, p.AddPosition(ctx, position("a", domain.Long, 100, 1, 10)))
	acct := p.Account()
	assert.Equal(t, 1, acct.OpenPositionsCount)
	assert.InDelta(t, 990, acct.Balance, 1e-9)
	assert.InDelta(t, 10, acct.Margin, 1e-9)

	// Duplicate ids are rejected.
	err := p.AddPosition(ctx, position("a", domain.Long, 100, 1, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateEntry))
}

func TestOpenPositionsCountInvariant(t *testing.T) {
	p := newPortfolio(t, 1000)
	ctx := context.Background()

	require.NoError(t, p.AddPosition(ctx, position("a", domain.Long, 100, 1, 10)))
	require.NoError(t, p.AddPosition(ctx, position("b", domain.Short, 100, 2, 20)))
	assert.Equal(t, 2, p.Account().OpenPositionsCount)
	assert.Len(t, p.OpenPositions(), 2)

	_, err := p.ClosePosition(ctx, "a", 105, time.Now().UTC(), domain.CloseReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Account().OpenPositionsCount)
	assert.Len(t, p.OpenPositions(), 1)
}

func TestUpdateMarkPriceRecomputesUnrealizedPnl(t *testing.T) {
	p := newPortfolio(t, 1000)
	ctx := context.Background()

	require.NoError(t, p.AddPosition(ctx, position("long", domain.Long, 100, 2, 40)))
	require.NoError(t, p.AddPosition(ctx, position("short", domain.Short, 100, 1, 20)))

	p.UpdateMarkPrice(110)

	long := p.Position("long")
	require.NotNil(t, long)
	assert.InDelta(t, 110, long.MarkPrice, 1e-9)
	assert.InDelta(t, 20, long.UnrealizedPnl, 1e-9) // 2 * (110-100)

	short := p.Position("short")
	require.NotNil(t, short)
	assert.InDelta(t, -10, short.UnrealizedPnl, 1e-9) // 1 * (110-100) * -1

	// Aggregate margin is committed margin marked to market.
	assert.InDelta(t, 40+20+20-10, p.Account().Margin, 1e-9)
}

func TestClosePositionFixesRealizedPnl(t *testing.T) {
	p := newPortfolio(t, 1000)
	ctx := context.Background()

	require.NoError(t, p.AddPosition(ctx, position("a", domain.Long, 100, 1, 10)))
	closedAt := time.Now().UTC()

	closed, err := p.ClosePosition(ctx, "a", 120, closedAt, domain.CloseReasonTakeProfit)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.InDelta(t, 20, closed.RealizedPnl, 1e-9)
	assert.InDelta(t, 120, closed.ClosePrice, 1e-9)
	assert.Equal(t, closedAt, closed.ClosedAt)
	assert.Equal(t, domain.CloseReasonTakeProfit, closed.CloseReason)
	assert.Zero(t, closed.UnrealizedPnl)

	// Margin plus profit flow back to the free balance.
	assert.InDelta(t, 1020, p.Account().Balance, 1e-9)
	assert.Zero(t, p.Account().Margin)

	// Closing twice must fail: the position is no longer in the open set.
	_, err = p.ClosePosition(ctx, "a", 120, closedAt, domain.CloseReasonManual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestPositionReturnsSnapshot(t *testing.T) {
	p := newPortfolio(t, 1000)
	ctx := context.Background()
	require.NoError(t, p.AddPosition(ctx, position("a", domain.Long, 100, 1, 10)))

	snap := p.Position("a")
	require.NotNil(t, snap)
	snap.Size = 999 // mutating the snapshot must not touch the ledger

	assert.InDelta(t, 1, p.Position("a").Size, 1e-9)
	assert.Nil(t, p.Position("missing"))
}

func TestLoadSeedsLedger(t *testing.T) {
	p := newPortfolio(t, 1000)
	ctx := context.Background()

	open := position("open-1", domain.Long, 100, 1, 10)
	closed := position("closed-1", domain.Long, 100, 1, 10)
	closed.Status = domain.StatusClosed
	closed.RealizedPnl = 50
	closed.ClosedAt = time.Now().UTC()

	p.Load(ctx, []*domain.Position{open, closed})

	acct := p.Account()
	assert.Equal(t, 1, acct.OpenPositionsCount)
	assert.InDelta(t, 1000-10+50, acct.Balance, 1e-9)
	require.NotNil(t, p.Position("open-1"))

	m := p.Metrics()
	assert.Equal(t, 1, m.ClosedPositions)
	assert.InDelta(t, 50, m.RealizedPnl, 1e-9)
}

func TestMetrics(t *testing.T) {
	p := newPortfolio(t, 10000)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Three round trips: +20, -10, +30 on margin 100 each.
	outcomes := []struct {
		id    string
		close float64
	}{
		{"p1", 120}, {"p2", 90}, {"p3", 130},
	}
	for i, o := range outcomes {
		require.NoError(t, p.AddPosition(ctx, position(o.id, domain.Long, 100, 1, 100)))
		_, err := p.ClosePosition(ctx, o.id, o.close, base.Add(time.Duration(i)*time.Hour), domain.CloseReasonManual)
		require.NoError(t, err)
	}

	m := p.Metrics()
	assert.Equal(t, 3, m.ClosedPositions)
	assert.Equal(t, 2, m.WinningPositions)
	assert.Equal(t, 1, m.LosingPositions)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)
	assert.InDelta(t, 40, m.RealizedPnl, 1e-9)
	// Returns on margin: +20%, -10%, +30% -> mean 13.33%.
	assert.InDelta(t, 13.333333, m.AverageReturnPct, 1e-4)
	// Cumulative PnL path: 20 -> 10 -> 40; peak-to-trough drawdown is 10.
	assert.InDelta(t, 10, m.MaxDrawdown, 1e-9)
	assert.Greater(t, m.SharpeRatio, 0.0)
}

func TestMetricsEmpty(t *testing.T) {
	p := newPortfolio(t, 1000)
	m := p.Metrics()
	assert.Zero(t, m.ClosedPositions)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.MaxDrawdown)
}
