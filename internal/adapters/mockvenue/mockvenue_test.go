package mockvenue

import (
	"context"
	"testing"

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

func newTestVenue(t *testing.T, cfg Config) *Venue {
	t.Helper()
	cfg.Logger = nopLogger{}
	if cfg.InitialPrice == 0 {
		cfg.InitialPrice = 100
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	v, err := New(cfg)
	require.NoError(t, err)
	return v
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{InitialPrice: 100})
	require.Error(t, err, "missing logger")

	_, err = New(Config{Logger: nopLogger{}})
	require.Error(t, err, "missing initial price")

	_, err = New(Config{Logger: nopLogger{}, InitialPrice: 100, FailureRate: 1.5})
	require.Error(t, err, "failure rate out of range")
}

func TestPlaceOrderFillsAtRequestedPriceWithoutSlippage(t *testing.T) {
	v := newTestVenue(t, Config{})

	result, err := v.PlaceOrder(context.Background(), domain.Long, 2, 100, ports.OrderTypeMarket)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.OrderFilled, result.Status)
	assert.InDelta(t, 2, result.FilledSize, 1e-9)
	assert.InDelta(t, 100, result.AvgPrice, 1e-9)
	assert.Zero(t, result.Fees)
	assert.NotEmpty(t, result.VenueOrderID)
}

func TestPlaceOrderAppliesFeesAndAdverseSlippage(t *testing.T) {
	v := newTestVenue(t, Config{FeeRate: 0.001, MaxSlippagePct: 0.01})

	buy, err := v.PlaceOrder(context.Background(), domain.Long, 1, 100, ports.OrderTypeMarket)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, buy.AvgPrice, 100.0, "buys slip upward")
	assert.LessOrEqual(t, buy.AvgPrice, 101.0)
	assert.InDelta(t, buy.FilledSize*buy.AvgPrice*0.001, buy.Fees, 1e-9)

	sell, err := v.PlaceOrder(context.Background(), domain.Short, 1, 100, ports.OrderTypeMarket)
	require.NoError(t, err)
	assert.LessOrEqual(t, sell.AvgPrice, 100.0, "sells slip downward")
	assert.GreaterOrEqual(t, sell.AvgPrice, 99.0)
}

func TestPlaceOrderFailureRate(t *testing.T) {
	// Every order is rejected.
	v := newTestVenue(t, Config{FailureRate: 1})

	result, err := v.PlaceOrder(context.Background(), domain.Long, 1, 100, ports.OrderTypeMarket)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ports.ErrOrderPlacementFailed)
}

func TestPlaceOrderPartialFills(t *testing.T) {
	v := newTestVenue(t, Config{PartialFillRate: 1})

	result, err := v.PlaceOrder(context.Background(), domain.Long, 10, 100, ports.OrderTypeMarket)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPartial, result.Status)
	assert.Greater(t, result.FilledSize, 0.0)
	assert.Less(t, result.FilledSize, 10.0)
}

func TestPlaceOrderRejectsInvalidInput(t *testing.T) {
	v := newTestVenue(t, Config{})

	_, err := v.PlaceOrder(context.Background(), domain.Long, 0, 100, ports.OrderTypeMarket)
	require.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = v.PlaceOrder(context.Background(), domain.Long, 1, -5, ports.OrderTypeMarket)
	require.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestCancelOrder(t *testing.T) {
	v := newTestVenue(t, Config{})

	result, err := v.PlaceOrder(context.Background(), domain.Long, 1, 100, ports.OrderTypeMarket)
	require.NoError(t, err)

	// Orders fill immediately; nothing is left to cancel.
	cancelled, err := v.CancelOrder(context.Background(), result.VenueOrderID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	_, err = v.CancelOrder(context.Background(), "unknown")
	require.ErrorIs(t, err, ports.ErrOrderNotFound)
}

func TestGetMarketPriceTracksLastFill(t *testing.T) {
	v := newTestVenue(t, Config{})

	price, err := v.GetMarketPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100, price, 1e-9)

	_, err = v.PlaceOrder(context.Background(), domain.Long, 1, 250, ports.OrderTypeMarket)
	require.NoError(t, err)

	price, err = v.GetMarketPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 250, price, 1e-9)
}

func TestContextCancellation(t *testing.T) {
	v := newTestVenue(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.PlaceOrder(ctx, domain.Long, 1, 100, ports.OrderTypeMarket)
	require.Error(t, err)
	_, err = v.GetMarketPrice(ctx)
	require.Error(t, err)
}
