package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
	"quantPilot/internal/strategy/indicators"
)

const (
	// Returns considered when judging sustained directional pressure.
	pressureSpan = 5

	// Caps on the confidence amplification factors.
	maxVolatilityBoost = 0.5
	maxMomentumBoost   = 0.5

	// Realized volatility at which the volatility boost saturates.
	volatilityBoostScale = 10
)

// MeanReversionConfig holds parameters for the mean-reversion strategy.
type MeanReversionConfig struct {
	Window    int           // Length of the rolling returns window (W)
	Threshold float64       // z-score magnitude that triggers a signal
	BaseSize  float64       // Base position size before z scaling
	MinSize   float64       // Floor applied to the computed size
	Cooldown  time.Duration // Minimum gap between emitted signals
}

// MeanReversion fades outsized per-tick returns: a strongly negative z-score
// of the latest return signals long, a strongly positive one signals short.
type MeanReversion struct {
	cfg    MeanReversionConfig
	logger ports.Logger

	returns    *indicators.Window
	lastPrice  float64
	hasLast    bool
	lastSignal time.Time
}

// NewMeanReversion creates the strategy instance.
func NewMeanReversion(cfg MeanReversionConfig, logger ports.Logger) (*MeanReversion, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for mean reversion strategy")
	}
	if cfg.Window <= 1 {
		return nil, fmt.Errorf("returns window must be greater than 1")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("z-score threshold must be positive")
	}
	if cfg.BaseSize <= 0 || cfg.MinSize <= 0 {
		return nil, fmt.Errorf("base and minimum sizes must be positive")
	}
	return &MeanReversion{
		cfg:     cfg,
		logger:  logger,
		returns: indicators.NewWindow(cfg.Window),
	}, nil
}

// Name returns the strategy's identifier.
func (s *MeanReversion) Name() string {
	return "mean_reversion"
}

// OnTick computes the return against the true last observed price, pushes it
// into the window and evaluates the z-score of the latest return.
func (s *MeanReversion) OnTick(ctx context.Context, tick *domain.PriceTick) *domain.TradingSignal {
	if !s.hasLast {
		s.lastPrice = tick.Price
		s.hasLast = true
		return nil
	}

	ret := (tick.Price - s.lastPrice) / s.lastPrice
	s.lastPrice = tick.Price
	s.returns.Push(ret)

	if !s.returns.Full() {
		return nil
	}
	if !s.lastSignal.IsZero() && tick.Timestamp.Sub(s.lastSignal) < s.cfg.Cooldown {
		return nil
	}

	mean := s.returns.Mean()
	stddev := s.returns.StdDev()
	if stddev == 0 {
		return nil
	}
	z := (ret - mean) / stddev

	var side domain.Side
	switch {
	case z < -s.cfg.Threshold:
		side = domain.Long // outsized drop, fade it
	case z > s.cfg.Threshold:
		side = domain.Short // outsized spike, fade it
	default:
		return nil
	}

	size := s.cfg.BaseSize * math.Min(math.Abs(z)/s.cfg.Threshold, 2)
	if size < s.cfg.MinSize {
		size = s.cfg.MinSize
	}

	confidence := math.Min(math.Abs(z)/s.cfg.Threshold, 1)
	confidence *= s.volatilityFactor(stddev)
	confidence *= s.momentumFactor(stddev)
	if confidence > 1 {
		confidence = 1
	}

	s.lastSignal = tick.Timestamp
	s.logger.Info(ctx, "Mean reversion signal", map[string]interface{}{
		"side":       side,
		"zScore":     z,
		"return":     ret,
		"stddev":     stddev,
		"size":       size,
		"confidence": confidence,
	})

	return &domain.TradingSignal{
		Side:       side,
		Size:       size,
		Confidence: confidence,
		Strategy:   s.Name(),
		Timestamp:  tick.Timestamp,
	}
}

// volatilityFactor amplifies confidence when recent realized volatility is
// high, capped at 1+maxVolatilityBoost.
func (s *MeanReversion) volatilityFactor(stddev float64) float64 {
	return 1 + math.Min(stddev*volatilityBoostScale, maxVolatilityBoost)
}

// momentumFactor amplifies confidence when the most recent returns show
// sustained directional pressure relative to the window's volatility.
func (s *MeanReversion) momentumFactor(stddev float64) float64 {
	values := s.returns.Values()
	if len(values) < pressureSpan {
		return 1
	}
	pressure := indicators.Mean(values[len(values)-pressureSpan:])
	return 1 + math.Min(math.Abs(pressure)/stddev, maxMomentumBoost)
}

// Reset clears the returns window, the last-price tracking and the cooldown.
func (s *MeanReversion) Reset() {
	s.returns.Reset()
	s.lastPrice = 0
	s.hasLast = false
	s.lastSignal = time.Time{}
}
