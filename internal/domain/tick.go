package domain

import "time"

// PriceTick represents a single timestamped price/volume observation.
// Ticks are immutable once produced.
type PriceTick struct {
	Timestamp time.Time // Time the observation was produced
	Price     float64   // Observed price, always > 0
	Volume    float64   // Observed volume, >= 0
}

// TradingSignal is a strategy's recommendation to open a position.
// It is consumed once by the orchestrator and never persisted.
type TradingSignal struct {
	Side       Side      // Direction to open (long/short)
	Size       float64   // Suggested position size, always > 0
	Confidence float64   // Strategy confidence in [0,1]
	Strategy   string    // Name of the emitting strategy
	Timestamp  time.Time // Time the signal was generated
}
