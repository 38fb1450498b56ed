package domain

import "time"

// Position represents a position held by the bot.
// EntryPrice, Size, Leverage and Margin are immutable after creation.
// A position transitions to closed exactly once; RealizedPnl is fixed at
// that instant and never recomputed.
type Position struct {
	ID            string         // Unique identifier (uuid)
	Side          Side           // long or short
	Size          float64        // Size of the position, > 0, never reduced partially
	EntryPrice    float64        // Price at which the position was entered
	MarkPrice     float64        // Current reference price, updated every tick while open
	Leverage      float64        // Notional value divided by committed capital
	Margin        float64        // Capital committed to the position
	UnrealizedPnl float64        // Defined only while Status == open
	RealizedPnl   float64        // Fixed on close
	Status        PositionStatus // open or closed
	OpenedAt      time.Time      // Timestamp when the position was opened
	ClosedAt      time.Time      // Zero value while open
	ClosePrice    float64        // 0 while open
	CloseReason   CloseReason    // Empty while open
	Strategy      string         // Strategy that originated the position
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Notional returns the nominal exposure of the position at entry.
func (p *Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// PnlAt computes the unrealized profit/loss of the position valued at price.
func (p *Position) PnlAt(price float64) float64 {
	return p.Size * (price - p.EntryPrice) * p.Side.Direction()
}
