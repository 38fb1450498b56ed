package risk

import (
	"context"
	"fmt"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
)

// maintenanceMarginRatio is the fraction of notional that must remain as
// equity before a position is force-closed.
const maintenanceMarginRatio = 0.05

// marginCallRatio is the margin ratio below which a margin call triggers.
const marginCallRatio = 0.10

// balanceRiskCap caps the riskPerTrade-weighted notional at this fraction of
// the free balance.
const balanceRiskCap = 0.10

// Config holds configuration for risk management.
type Config struct {
	MaxLeverage       float64 // Hard cap on implied leverage
	MaxOpenPositions  int     // Hard cap on concurrently open positions
	RiskPerTrade      float64 // Fraction of notional counted against the balance cap
	StopLossPercent   float64 // Adverse move that closes a position (e.g. 0.05)
	TakeProfitPercent float64 // Favorable move that closes a position (e.g. 0.10)
}

// Assessment is the result of a pre-trade risk check.
type Assessment struct {
	Allowed           bool
	Reason            string  // Set when denied; the first failing check wins
	MaxSize           float64 // Suggested maximum affordable size, when applicable
	SuggestedLeverage float64 // Suggested leverage cap, when applicable
}

// PositionAssessment is the result of evaluating an open position against its
// close triggers. Recomputed on every tick for every open position.
type PositionAssessment struct {
	ShouldClose      bool
	Reason           domain.CloseReason
	LiquidationPrice float64
	MarginCall       bool
}

// Manager implements pre-trade and per-tick position risk checks.
type Manager struct {
	cfg    Config
	logger ports.Logger
}

// NewManager creates a risk manager instance.
func NewManager(cfg Config, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if cfg.MaxLeverage <= 0 {
		return nil, fmt.Errorf("max leverage must be positive")
	}
	if cfg.MaxOpenPositions <= 0 {
		return nil, fmt.Errorf("max open positions must be positive")
	}
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1 {
		return nil, fmt.Errorf("risk per trade must be between 0 and 1 (exclusive)")
	}
	if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1 {
		return nil, fmt.Errorf("stop loss percent must be between 0 and 1 (exclusive)")
	}
	if cfg.TakeProfitPercent <= 0 {
		return nil, fmt.Errorf("take profit percent must be positive")
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// CanOpenPosition decides whether a new position of the requested size may be
// opened at the given price. Checks run in a fixed order and the first
// failure wins; reasons are never aggregated.
func (m *Manager) CanOpenPosition(ctx context.Context, account *domain.Account, size, price float64) Assessment {
	if size <= 0 || price <= 0 {
		return Assessment{Allowed: false, Reason: "size and price must be positive"}
	}

	notional := size * price

	// 1. Margin affordability at maximum leverage. Note this threshold is the
	// implied-leverage cap restated: balance < notional/maxLev is the same as
	// notional/balance > maxLev, so the reason names the leverage cap.
	requiredMargin := notional / m.cfg.MaxLeverage
	if account.Balance < requiredMargin {
		return Assessment{
			Allowed: false,
			Reason: fmt.Sprintf("required margin %.4f at max leverage %.1fx exceeds balance %.4f",
				requiredMargin, m.cfg.MaxLeverage, account.Balance),
			MaxSize:           account.Balance * m.cfg.MaxLeverage / price,
			SuggestedLeverage: m.cfg.MaxLeverage,
		}
	}

	// 2. Implied leverage cap.
	impliedLeverage := notional / account.Balance
	if impliedLeverage > m.cfg.MaxLeverage {
		return Assessment{
			Allowed: false,
			Reason: fmt.Sprintf("implied leverage %.2fx exceeds maximum %.2fx",
				impliedLeverage, m.cfg.MaxLeverage),
			SuggestedLeverage: m.cfg.MaxLeverage,
		}
	}

	// 3. Open-position count cap.
	if account.OpenPositionsCount >= m.cfg.MaxOpenPositions {
		return Assessment{
			Allowed: false,
			Reason: fmt.Sprintf("open positions (%d) at maximum (%d)",
				account.OpenPositionsCount, m.cfg.MaxOpenPositions),
		}
	}

	// 4. Per-trade risk budget against the free balance.
	if notional*m.cfg.RiskPerTrade > balanceRiskCap*account.Balance {
		return Assessment{
			Allowed: false,
			Reason: fmt.Sprintf("trade risk %.4f exceeds %.0f%% of balance",
				notional*m.cfg.RiskPerTrade, balanceRiskCap*100),
			MaxSize: balanceRiskCap * account.Balance / (price * m.cfg.RiskPerTrade),
		}
	}

	return Assessment{Allowed: true}
}

// LiquidationPrice returns the mark price at which the position's committed
// margin is eroded down to the maintenance margin.
func (m *Manager) LiquidationPrice(pos *domain.Position) float64 {
	notional := pos.Notional()
	maintenance := notional * maintenanceMarginRatio
	buffer := (pos.Margin - maintenance) / pos.Size
	if pos.Side == domain.Long {
		return pos.EntryPrice - buffer
	}
	return pos.EntryPrice + buffer
}

// EvaluatePosition checks an open position against its close triggers at the
// given mark price. Triggers are checked in a fixed order; the first match
// wins. An invalid position or mark price yields a forced close rather than
// a silent pass (fail-safe).
func (m *Manager) EvaluatePosition(ctx context.Context, pos *domain.Position, markPrice float64) PositionAssessment {
	if pos == nil || pos.Size <= 0 || pos.EntryPrice <= 0 || markPrice <= 0 {
		m.logger.Error(ctx, fmt.Errorf("invalid position or mark price"), "Risk evaluation failed, forcing close")
		return PositionAssessment{ShouldClose: true, Reason: domain.CloseReasonRiskError}
	}

	liq := m.LiquidationPrice(pos)
	assessment := PositionAssessment{LiquidationPrice: liq}

	// 1. Liquidation: mark price has crossed past the liquidation level in
	// the adverse direction.
	if (pos.Side == domain.Long && markPrice <= liq) ||
		(pos.Side == domain.Short && markPrice >= liq) {
		assessment.ShouldClose = true
		assessment.Reason = domain.CloseReasonLiquidation
		return assessment
	}

	// 2. Margin call: equity ratio against current notional below threshold.
	marginRatio := (pos.Margin + pos.PnlAt(markPrice)) / (pos.Size * markPrice)
	if marginRatio < marginCallRatio {
		assessment.ShouldClose = true
		assessment.Reason = domain.CloseReasonMarginCall
		assessment.MarginCall = true
		return assessment
	}

	// 3. Stop loss: adverse move beyond the configured percentage.
	adverseMove := (markPrice - pos.EntryPrice) / pos.EntryPrice * -pos.Side.Direction()
	if adverseMove >= m.cfg.StopLossPercent {
		assessment.ShouldClose = true
		assessment.Reason = domain.CloseReasonStopLoss
		return assessment
	}

	// 4. Take profit: favorable move beyond the configured percentage.
	favorableMove := (markPrice - pos.EntryPrice) / pos.EntryPrice * pos.Side.Direction()
	if favorableMove >= m.cfg.TakeProfitPercent {
		assessment.ShouldClose = true
		assessment.Reason = domain.CloseReasonTakeProfit
		return assessment
	}

	return assessment
}
