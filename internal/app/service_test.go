package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantPilot/internal/domain"
	"quantPilot/internal/executor"
	"quantPilot/internal/feed"
	"quantPilot/internal/portfolio"
	"quantPilot/internal/ports"
	"quantPilot/internal/risk"
)

// --- Mock implementations ---

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockVenue struct {
	result *ports.OrderResult
	err    error
}

func (m *mockVenue) PlaceOrder(ctx context.Context, side domain.Side, size, price float64, orderType ports.OrderType) (*ports.OrderResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	// Echo fills at the requested price by default.
	return &ports.OrderResult{
		VenueOrderID: "venue-1",
		FilledSize:   size,
		AvgPrice:     price,
		Fees:         0,
		Status:       domain.OrderFilled,
	}, nil
}

func (m *mockVenue) CancelOrder(ctx context.Context, venueOrderID string) (bool, error) {
	return true, nil
}

func (m *mockVenue) GetMarketPrice(ctx context.Context) (float64, error) {
	return 100, nil
}

type memRepo struct {
	trades    []*domain.Trade
	positions []*domain.Position
	ticks     []*domain.PriceTick
	listErr   error
}

func (m *memRepo) InsertTrade(ctx context.Context, trade *domain.Trade) error {
	cp := *trade
	m.trades = append(m.trades, &cp)
	return nil
}

func (m *memRepo) UpdateTrade(ctx context.Context, trade *domain.Trade) error { return nil }

func (m *memRepo) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	return m.trades, nil
}

func (m *memRepo) InsertPosition(ctx context.Context, pos *domain.Position) error {
	cp := *pos
	m.positions = append(m.positions, &cp)
	return nil
}

func (m *memRepo) UpdatePosition(ctx context.Context, pos *domain.Position) error { return nil }

func (m *memRepo) FindPositionByID(ctx context.Context, id string) (*domain.Position, error) {
	return nil, nil
}

func (m *memRepo) ListPositions(ctx context.Context, filter ports.PositionFilter) ([]*domain.Position, error) {
	return m.positions, m.listErr
}

func (m *memRepo) InsertTick(ctx context.Context, tick *domain.PriceTick) error {
	cp := *tick
	m.ticks = append(m.ticks, &cp)
	return nil
}

func (m *memRepo) ListTicks(ctx context.Context, from, to time.Time) ([]*domain.PriceTick, error) {
	return m.ticks, nil
}

type mockNotifier struct {
	alerts []string
	opened int
	closed int
}

func (m *mockNotifier) TradeExecuted(ctx context.Context, trade *domain.Trade)   {}
func (m *mockNotifier) PositionOpened(ctx context.Context, pos *domain.Position) { m.opened++ }
func (m *mockNotifier) PositionClosed(ctx context.Context, pos *domain.Position) { m.closed++ }
func (m *mockNotifier) RiskAlert(ctx context.Context, pos *domain.Position, reason string) {
	m.alerts = append(m.alerts, reason)
}

// stubStrategy emits a fixed signal once, then stays silent.
type stubStrategy struct {
	signal  *domain.TradingSignal
	emitted bool
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) OnTick(ctx context.Context, tick *domain.PriceTick) *domain.TradingSignal {
	if s.emitted || s.signal == nil {
		return nil
	}
	s.emitted = true
	return s.signal
}

func (s *stubStrategy) Reset() { s.emitted = false }

// --- Fixture ---

type fixture struct {
	svc      *Service
	venue    *mockVenue
	repo     *memRepo
	notifier *mockNotifier
	ledger   *portfolio.Portfolio
}

func newFixture(t *testing.T, strat ports.Strategy) *fixture {
	t.Helper()

	venue := &mockVenue{}
	repo := &memRepo{}
	notifier := &mockNotifier{}

	ledger, err := portfolio.New(portfolio.Config{Logger: nopLogger{}, InitialBalance: 10000})
	require.NoError(t, err)

	// Leverage 2 keeps the liquidation level well below the stop loss so
	// the two triggers can be told apart in tests.
	riskMgr, err := risk.NewManager(risk.Config{
		MaxLeverage:       2,
		MaxOpenPositions:  3,
		RiskPerTrade:      0.02,
		StopLossPercent:   0.05,
		TakeProfitPercent: 0.10,
	}, nopLogger{})
	require.NoError(t, err)

	exec, err := executor.New(executor.Config{
		Logger:       nopLogger{},
		Venue:        venue,
		Portfolio:    ledger,
		Risk:         riskMgr,
		Trades:       repo,
		Positions:    repo,
		Notifier:     notifier,
		MaxLeverage:  2,
		VenueTimeout: time.Second,
	})
	require.NoError(t, err)

	priceFeed, err := feed.New(feed.Config{
		Logger:       nopLogger{},
		Mode:         feed.ModeRandomWalk,
		Interval:     time.Hour, // never fires in tests; ticks are injected
		InitialPrice: 100,
		Seed:         1,
	})
	require.NoError(t, err)

	svc, err := NewService(nopLogger{}, priceFeed, []ports.Strategy{strat}, riskMgr, exec, ledger, repo, repo, notifier)
	require.NoError(t, err)

	return &fixture{svc: svc, venue: venue, repo: repo, notifier: notifier, ledger: ledger}
}

func tick(price float64) *domain.PriceTick {
	return &domain.PriceTick{Timestamp: time.Now().UTC(), Price: price, Volume: 100}
}

// --- Tests ---

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestTickOpensPositionFromSignal(t *testing.T) {
	strat := &stubStrategy{signal: &domain.TradingSignal{
		Side: domain.Long, Size: 0.1, Confidence: 0.8, Strategy: "stub", Timestamp: time.Now().UTC(),
	}}
	f := newFixture(t, strat)

	f.svc.handleTick(tick(100))

	positions := f.ledger.OpenPositions()
	require.Len(t, positions, 1)
	assert.Equal(t, domain.Long, positions[0].Side)
	assert.InDelta(t, 100, positions[0].EntryPrice, 1e-9)
	assert.Equal(t, 1, f.notifier.opened)

	// The tick itself was archived.
	require.Len(t, f.repo.ticks, 1)
	assert.InDelta(t, 100, f.repo.ticks[0].Price, 1e-9)
}

func TestTickClosesPositionOnStopLoss(t *testing.T) {
	strat := &stubStrategy{signal: &domain.TradingSignal{
		Side: domain.Long, Size: 0.1, Confidence: 0.8, Strategy: "stub", Timestamp: time.Now().UTC(),
	}}
	f := newFixture(t, strat)

	f.svc.handleTick(tick(100))
	require.Len(t, f.ledger.OpenPositions(), 1)

	// A 6% adverse move trips the 5% stop loss on the next tick.
	f.svc.handleTick(tick(94))

	assert.Empty(t, f.ledger.OpenPositions())
	assert.Equal(t, 1, f.notifier.closed)
	assert.Empty(t, f.notifier.alerts, "stop loss is not a risk alert")
}

func TestTickLiquidationRaisesRiskAlert(t *testing.T) {
	strat := &stubStrategy{signal: &domain.TradingSignal{
		Side: domain.Long, Size: 0.1, Confidence: 0.9, Strategy: "stub", Timestamp: time.Now().UTC(),
	}}
	f := newFixture(t, strat)

	f.svc.handleTick(tick(100))
	require.Len(t, f.ledger.OpenPositions(), 1)

	// A crash to half the entry price is far past the liquidation level.
	f.svc.handleTick(tick(50))

	assert.Empty(t, f.ledger.OpenPositions())
	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, string(domain.CloseReasonLiquidation), f.notifier.alerts[0])
}

func TestTickRetriesCloseAfterVenueFailure(t *testing.T) {
	strat := &stubStrategy{signal: &domain.TradingSignal{
		Side: domain.Long, Size: 0.1, Confidence: 0.8, Strategy: "stub", Timestamp: time.Now().UTC(),
	}}
	f := newFixture(t, strat)

	f.svc.handleTick(tick(100))
	require.Len(t, f.ledger.OpenPositions(), 1)

	// The venue is down: the triggered close fails and the position stays.
	f.venue.err = fmt.Errorf("venue down")
	f.svc.handleTick(tick(94))
	require.Len(t, f.ledger.OpenPositions(), 1)

	// Next tick the venue is back and the close goes through.
	f.venue.err = nil
	f.svc.handleTick(tick(94))
	assert.Empty(t, f.ledger.OpenPositions())
}

func TestStartFailsWhenPersistenceUnavailable(t *testing.T) {
	strat := &stubStrategy{}
	f := newFixture(t, strat)
	f.repo.listErr = fmt.Errorf("db unreachable")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := f.svc.Start(ctx)
	require.Error(t, err)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	strat := &stubStrategy{}
	f := newFixture(t, strat)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after context cancellation")
	}
}
