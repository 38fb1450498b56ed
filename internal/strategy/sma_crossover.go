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
	// Crossover threshold in percent: the short mean must diverge from the
	// long mean by more than this before a signal is emitted.
	crossoverThresholdPct = 0.5

	// Number of short-window samples on each side of the momentum comparison.
	momentumSpan = 5
)

// SMACrossoverConfig holds parameters for the SMA crossover strategy.
type SMACrossoverConfig struct {
	ShortWindow int           // Length of the short rolling window (S)
	LongWindow  int           // Length of the long rolling window (L), > S
	BaseSize    float64       // Base position size before divergence scaling
	MinSize     float64       // Floor applied to the computed size
	Cooldown    time.Duration // Minimum gap between emitted signals
}

// SMACrossover emits long signals on a golden cross (short mean above long
// mean) and short signals on a death cross, sized by the divergence.
type SMACrossover struct {
	cfg    SMACrossoverConfig
	logger ports.Logger

	short      *indicators.Window
	long       *indicators.Window
	lastSignal time.Time
}

// NewSMACrossover creates the strategy instance.
func NewSMACrossover(cfg SMACrossoverConfig, logger ports.Logger) (*SMACrossover, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for SMA crossover strategy")
	}
	if cfg.ShortWindow <= 0 || cfg.LongWindow <= 0 {
		return nil, fmt.Errorf("window lengths must be positive")
	}
	if cfg.ShortWindow >= cfg.LongWindow {
		return nil, fmt.Errorf("short window (%d) must be less than long window (%d)", cfg.ShortWindow, cfg.LongWindow)
	}
	if cfg.BaseSize <= 0 || cfg.MinSize <= 0 {
		return nil, fmt.Errorf("base and minimum sizes must be positive")
	}
	return &SMACrossover{
		cfg:    cfg,
		logger: logger,
		short:  indicators.NewWindow(cfg.ShortWindow),
		long:   indicators.NewWindow(cfg.LongWindow),
	}, nil
}

// Name returns the strategy's identifier.
func (s *SMACrossover) Name() string {
	return "sma_crossover"
}

// OnTick pushes the price into both windows and evaluates the crossover.
func (s *SMACrossover) OnTick(ctx context.Context, tick *domain.PriceTick) *domain.TradingSignal {
	s.short.Push(tick.Price)
	s.long.Push(tick.Price)

	if !s.short.Full() || !s.long.Full() {
		return nil
	}
	if !s.lastSignal.IsZero() && tick.Timestamp.Sub(s.lastSignal) < s.cfg.Cooldown {
		return nil
	}

	shortMean := s.short.Mean()
	longMean := s.long.Mean()
	deltaPct := (shortMean - longMean) / longMean * 100

	var side domain.Side
	switch {
	case deltaPct > crossoverThresholdPct:
		side = domain.Long // golden cross
	case deltaPct < -crossoverThresholdPct:
		side = domain.Short // death cross
	default:
		return nil
	}

	size := s.cfg.BaseSize * math.Min(math.Abs(deltaPct)/2, 2)
	if size < s.cfg.MinSize {
		size = s.cfg.MinSize
	}
	confidence := math.Min((math.Abs(deltaPct)+s.momentumPct())/10, 1)

	s.lastSignal = tick.Timestamp
	s.logger.Info(ctx, "SMA crossover signal", map[string]interface{}{
		"side":       side,
		"deltaPct":   deltaPct,
		"shortMean":  shortMean,
		"longMean":   longMean,
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

// momentumPct compares the mean of the most recent momentumSpan short-window
// prices against the mean of the preceding momentumSpan, in percent.
func (s *SMACrossover) momentumPct() float64 {
	values := s.short.Values()
	if len(values) < 2*momentumSpan {
		return 0
	}
	recent := indicators.Mean(values[len(values)-momentumSpan:])
	previous := indicators.Mean(values[len(values)-2*momentumSpan : len(values)-momentumSpan])
	if previous == 0 {
		return 0
	}
	return math.Abs((recent - previous) / previous * 100)
}

// Reset clears both windows and the cooldown timer.
func (s *SMACrossover) Reset() {
	s.short.Reset()
	s.long.Reset()
	s.lastSignal = time.Time{}
}
