package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantPilot/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func testConfig(mode Mode) Config {
	return Config{
		Logger:            nopLogger{},
		Mode:              mode,
		Interval:          time.Millisecond,
		InitialPrice:      100,
		TargetPrice:       100,
		NoiseBand:         0.002,
		ReversionStrength: 0.05,
		HistorySize:       50,
		Seed:              42,
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	cfg := testConfig(ModeRandomWalk)
	cfg.Mode = "bogus"
	_, err = New(cfg)
	require.Error(t, err)

	cfg = testConfig(ModeRandomWalk)
	cfg.InitialPrice = 0
	_, err = New(cfg)
	require.Error(t, err)
}

func TestFeedProducesPositivePrices(t *testing.T) {
	for _, mode := range []Mode{ModeRandomWalk, ModeTrendWalk} {
		f, err := New(testConfig(mode))
		require.NoError(t, err)

		// Drive the generator directly; cadence is covered separately.
		for i := 0; i < 2000; i++ {
			tick := f.nextTick()
			require.Greater(t, tick.Price, 0.0, "mode %s produced non-positive price", mode)
			require.GreaterOrEqual(t, tick.Volume, 0.0)
		}
	}
}

func TestFeedFloorsPriceAtEpsilon(t *testing.T) {
	cfg := testConfig(ModeRandomWalk)
	// A violent downward pull cannot push the price to zero or below.
	cfg.TargetPrice = 1
	cfg.InitialPrice = 1
	cfg.NoiseBand = 5
	f, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		tick := f.nextTick()
		assert.GreaterOrEqual(t, tick.Price, priceEpsilon)
	}
}

func TestLatestReturnsSnapshot(t *testing.T) {
	f, err := New(testConfig(ModeTrendWalk))
	require.NoError(t, err)

	first := f.Latest()
	assert.Equal(t, 100.0, first.Price)

	produced := f.nextTick()
	assert.Equal(t, produced, f.Latest())
}

func TestStopHaltsEmission(t *testing.T) {
	f, err := New(testConfig(ModeRandomWalk))
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	handler := func(tick *domain.PriceTick) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	require.NoError(t, f.Start(context.Background(), handler))
	assert.Error(t, f.Start(context.Background(), handler), "double start must fail")

	time.Sleep(20 * time.Millisecond)
	f.Stop()

	mu.Lock()
	after := count
	mu.Unlock()
	assert.Greater(t, after, 0)

	// No ticks may be emitted once Stop has returned.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, count)
	mu.Unlock()

	// Stopping twice is harmless, and the feed can be restarted.
	f.Stop()
	require.NoError(t, f.Start(context.Background(), handler))
	f.Stop()
}

func TestMeanReversionPullsTowardTarget(t *testing.T) {
	cfg := testConfig(ModeRandomWalk)
	cfg.InitialPrice = 50
	cfg.TargetPrice = 100
	cfg.NoiseBand = 0 // Isolate the reversion term.
	f, err := New(cfg)
	require.NoError(t, err)

	prev := f.Latest().Price
	for i := 0; i < 20; i++ {
		tick := f.nextTick()
		assert.Greater(t, tick.Price, prev, "price should climb toward the target")
		prev = tick.Price
	}
}
