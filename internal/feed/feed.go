package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
	"quantPilot/internal/strategy/indicators"
)

// priceEpsilon is the floor below which a generated price is clamped.
// A tick price must never reach zero or go negative.
const priceEpsilon = 1e-6

const (
	momentumFactor  = 0.3 // Weight of the trend term in trend-aware mode
	volatilityScale = 10  // Amplification of noise by realized volatility
	baseVolume      = 100 // Nominal per-tick volume before volatility scaling
)

// Mode selects the tick generation mode.
type Mode string

const (
	ModeRandomWalk Mode = "random_walk"
	ModeTrendWalk  Mode = "trend_walk"
)

// Config holds parameters for the price feed.
type Config struct {
	Logger            ports.Logger
	Mode              Mode
	Interval          time.Duration
	InitialPrice      float64
	TargetPrice       float64 // Anchor for the mean-reversion pull
	NoiseBand         float64 // Symmetric uniform noise band per tick
	ReversionStrength float64 // Pull factor toward TargetPrice
	HistorySize       int     // Bounded price history for trend/volatility terms
	Seed              int64   // 0 seeds from the clock
}

// Handler receives each produced tick. It is invoked synchronously from the
// feed's producer goroutine, so one tick is fully handled before the next.
type Handler func(tick *domain.PriceTick)

// Feed produces price/volume observations on a fixed cadence.
type Feed struct {
	cfg    Config
	logger ports.Logger
	rng    *rand.Rand

	mu      sync.Mutex
	last    domain.PriceTick
	history *indicators.Window // recent prices, FIFO evicted
	returns *indicators.Window // recent per-tick returns
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a price feed. Construction failures are fatal to the caller;
// no tick is ever emitted for a partially-formed feed.
func New(cfg Config) (*Feed, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for price feed: %w", ports.ErrConfigurationError)
	}
	if cfg.Mode != ModeRandomWalk && cfg.Mode != ModeTrendWalk {
		return nil, fmt.Errorf("unknown feed mode %q: %w", cfg.Mode, ports.ErrConfigurationError)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("feed interval must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.InitialPrice <= 0 {
		return nil, fmt.Errorf("initial price must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.TargetPrice <= 0 {
		cfg.TargetPrice = cfg.InitialPrice
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Feed{
		cfg:     cfg,
		logger:  cfg.Logger,
		rng:     rand.New(rand.NewSource(seed)),
		history: indicators.NewWindow(cfg.HistorySize),
		returns: indicators.NewWindow(cfg.HistorySize),
	}
	f.last = domain.PriceTick{Timestamp: time.Now().UTC(), Price: cfg.InitialPrice, Volume: baseVolume}
	f.history.Push(cfg.InitialPrice)
	return f, nil
}

// Start begins producing ticks at the configured interval, invoking handler
// for each one. It returns an error if the feed is already running.
func (f *Feed) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("tick handler is required: %w", ports.ErrConfigurationError)
	}
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("price feed already started")
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	stopCh, doneCh := f.stopCh, f.doneCh
	f.mu.Unlock()

	f.logger.Info(ctx, "Price feed started", map[string]interface{}{
		"mode":     f.cfg.Mode,
		"interval": f.cfg.Interval.String(),
		"price":    f.cfg.InitialPrice,
	})

	go f.run(ctx, handler, stopCh, doneCh)
	return nil
}

// Stop halts tick production. When it returns, no further handler
// invocations will occur.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	stopCh, doneCh := f.stopCh, f.doneCh
	f.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Latest returns a snapshot of the most recent tick without blocking.
func (f *Feed) Latest() domain.PriceTick {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Feed) run(ctx context.Context, handler Handler, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := f.nextTick()
			handler(&tick)
		}
	}
}

// nextTick generates the next observation and records it as the latest.
func (f *Feed) nextTick() domain.PriceTick {
	f.mu.Lock()
	defer f.mu.Unlock()

	lastPrice := f.last.Price
	var price, volume float64
	switch f.cfg.Mode {
	case ModeTrendWalk:
		price, volume = f.trendWalk(lastPrice)
	default:
		price, volume = f.randomWalk(lastPrice)
	}
	if price < priceEpsilon {
		price = priceEpsilon
	}

	f.returns.Push((price - lastPrice) / lastPrice)
	f.history.Push(price)
	f.last = domain.PriceTick{Timestamp: time.Now().UTC(), Price: price, Volume: volume}
	return f.last
}

// randomWalk applies symmetric uniform noise plus a pull toward TargetPrice
// proportional to the current distance from it.
func (f *Feed) randomWalk(last float64) (price, volume float64) {
	noise := f.uniform() * f.cfg.NoiseBand
	pull := f.cfg.ReversionStrength * (f.cfg.TargetPrice - last) / f.cfg.TargetPrice
	price = last * (1 + noise + pull)
	volume = baseVolume * (0.5 + f.rng.Float64())
	return price, volume
}

// trendWalk adds a momentum term comparing two trailing windows of recent
// prices and scales the noise by the realized volatility of recent returns.
func (f *Feed) trendWalk(last float64) (price, volume float64) {
	momentum := f.momentum()
	vol := f.returns.StdDev()

	noise := f.uniform() * f.cfg.NoiseBand * (1 + vol*volatilityScale)
	pull := f.cfg.ReversionStrength * (f.cfg.TargetPrice - last) / f.cfg.TargetPrice
	price = last * (1 + noise + pull + momentum*momentumFactor)
	volume = baseVolume * (1 + vol*volatilityScale) * (0.5 + f.rng.Float64())
	return price, volume
}

// momentum compares the mean of the most recent half of the price history
// against the mean of the preceding half, as a fractional difference.
func (f *Feed) momentum() float64 {
	values := f.history.Values()
	if len(values) < 4 {
		return 0
	}
	mid := len(values) / 2
	older := indicators.Mean(values[:mid])
	recent := indicators.Mean(values[mid:])
	if older == 0 {
		return 0
	}
	return (recent - older) / older
}

// uniform returns a sample in [-1, 1).
func (f *Feed) uniform() float64 {
	return f.rng.Float64()*2 - 1
}
