package portfolio

import (
	"sort"

	"quantPilot/internal/domain"
	"quantPilot/internal/strategy/indicators"
)

// Metrics holds aggregate performance figures over closed positions.
// All figures derive from realized PnL only; open positions do not
// contribute.
type Metrics struct {
	ClosedPositions  int
	WinningPositions int
	LosingPositions  int
	WinRate          float64 // Winning / closed
	RealizedPnl      float64 // Sum of realized PnL
	AverageReturnPct float64 // Mean per-position return on committed margin
	MaxDrawdown      float64 // Peak-to-trough on cumulative realized PnL
	SharpeRatio      float64 // Mean / stddev of per-position return percentages
}

// computeMetrics recomputes all aggregate figures from the closed ledger.
func computeMetrics(closed []*domain.Position) Metrics {
	var m Metrics
	if len(closed) == 0 {
		return m
	}

	ordered := make([]*domain.Position, len(closed))
	copy(ordered, closed)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ClosedAt.Before(ordered[j].ClosedAt)
	})

	returns := make([]float64, 0, len(ordered))
	cumulative := 0.0
	peak := 0.0
	for _, pos := range ordered {
		m.ClosedPositions++
		if pos.RealizedPnl > 0 {
			m.WinningPositions++
		} else {
			m.LosingPositions++
		}
		m.RealizedPnl += pos.RealizedPnl
		if pos.Margin > 0 {
			returns = append(returns, pos.RealizedPnl/pos.Margin*100)
		}

		cumulative += pos.RealizedPnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	m.WinRate = float64(m.WinningPositions) / float64(m.ClosedPositions)
	m.AverageReturnPct = indicators.Mean(returns)
	if stddev := indicators.StdDev(returns); stddev > 0 {
		m.SharpeRatio = m.AverageReturnPct / stddev
	}
	return m
}
