package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantPilot/internal/domain"
)

func meanRevConfig() MeanReversionConfig {
	return MeanReversionConfig{
		Window:    10,
		Threshold: 2.0,
		BaseSize:  0.1,
		MinSize:   0.01,
		Cooldown:  time.Minute,
	}
}

func TestMeanReversionValidation(t *testing.T) {
	_, err := NewMeanReversion(meanRevConfig(), nil)
	require.Error(t, err)

	cfg := meanRevConfig()
	cfg.Window = 1
	_, err = NewMeanReversion(cfg, nopLogger{})
	require.Error(t, err)

	cfg = meanRevConfig()
	cfg.Threshold = 0
	_, err = NewMeanReversion(cfg, nopLogger{})
	require.Error(t, err)
}

// fill drives the strategy with gently alternating prices until the returns
// window is full, without ever triggering the threshold.
func fillMeanRev(t *testing.T, s *MeanReversion, start time.Time) (price float64, next int) {
	t.Helper()
	price = 100.0
	for i := 0; i < meanRevConfig().Window+1; i++ {
		if i%2 == 0 {
			price += 0.01
		} else {
			price -= 0.01
		}
		sig := s.OnTick(context.Background(), tickAt(price, start.Add(time.Duration(i)*time.Second)))
		assert.Nil(t, sig, "warm-up ticks must not signal")
	}
	return price, meanRevConfig().Window + 1
}

func TestMeanReversionFadesDrop(t *testing.T) {
	s, err := NewMeanReversion(meanRevConfig(), nopLogger{})
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price, i := fillMeanRev(t, s, start)

	// An outsized drop versus the window's tiny returns is a deep negative
	// z-score: the strategy fades it by going long.
	sig := s.OnTick(context.Background(), tickAt(price*0.95, start.Add(time.Duration(i)*time.Second)))
	require.NotNil(t, sig)
	assert.Equal(t, domain.Long, sig.Side)
	assert.Equal(t, "mean_reversion", sig.Strategy)
	assert.Greater(t, sig.Size, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
	assert.Greater(t, sig.Confidence, 0.0)
}

func TestMeanReversionFadesSpike(t *testing.T) {
	s, err := NewMeanReversion(meanRevConfig(), nopLogger{})
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price, i := fillMeanRev(t, s, start)

	sig := s.OnTick(context.Background(), tickAt(price*1.05, start.Add(time.Duration(i)*time.Second)))
	require.NotNil(t, sig)
	assert.Equal(t, domain.Short, sig.Side)
}

func TestMeanReversionFlatMarketIsSilent(t *testing.T) {
	s, err := NewMeanReversion(meanRevConfig(), nopLogger{})
	require.NoError(t, err)

	// Identical prices give zero stddev; the z-score is undefined and no
	// signal may be emitted.
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		sig := s.OnTick(context.Background(), tickAt(100, start.Add(time.Duration(i)*time.Second)))
		assert.Nil(t, sig)
	}
}

func TestMeanReversionCooldown(t *testing.T) {
	s, err := NewMeanReversion(meanRevConfig(), nopLogger{})
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price, i := fillMeanRev(t, s, start)

	sig := s.OnTick(context.Background(), tickAt(price*0.95, start.Add(time.Duration(i)*time.Second)))
	require.NotNil(t, sig)

	// A second outsized move inside the cooldown stays silent.
	sig = s.OnTick(context.Background(), tickAt(price*0.90, start.Add(time.Duration(i+1)*time.Second)))
	assert.Nil(t, sig)
}

func TestMeanReversionUsesTrueLastPrice(t *testing.T) {
	s, err := NewMeanReversion(meanRevConfig(), nopLogger{})
	require.NoError(t, err)

	// The first tick only establishes the last observed price; a return can
	// only be computed from the second tick onward.
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, s.OnTick(context.Background(), tickAt(250, start)))
	assert.Equal(t, 0, s.returns.Len())

	s.OnTick(context.Background(), tickAt(275, start.Add(time.Second)))
	require.Equal(t, 1, s.returns.Len())
	// Return is computed against 250, the actual previous observation.
	assert.InDelta(t, 0.10, s.returns.Last(), 1e-9)
}

func TestMeanReversionReset(t *testing.T) {
	s, err := NewMeanReversion(meanRevConfig(), nopLogger{})
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fillMeanRev(t, s, start)

	s.Reset()
	assert.Equal(t, 0, s.returns.Len())
	assert.False(t, s.hasLast)

	// The window must refill before any signal.
	sig := s.OnTick(context.Background(), tickAt(50, start.Add(time.Hour)))
	assert.Nil(t, sig)
}
