package notifier

import (
	"context"
	"fmt"
	"strings"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
)

// Notifier implements ports.Notifier. Events are logged and, when a sender is
// configured, delivered asynchronously so delivery latency never reaches the
// trading pipeline. Delivery failures are logged and dropped.
type Notifier struct {
	logger ports.Logger
	sender TextSender // nil means log-only
}

// New creates a notifier. sender may be nil for a log-only notifier.
func New(logger ports.Logger, sender TextSender) (*Notifier, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for notifier")
	}
	return &Notifier{logger: logger, sender: sender}, nil
}

func (n *Notifier) deliver(ctx context.Context, text string) {
	if n.sender == nil {
		return
	}
	go func() {
		if err := n.sender.SendText(text); err != nil {
			n.logger.Warn(ctx, "Notification delivery failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// TradeExecuted reports a finalized trade record.
func (n *Notifier) TradeExecuted(ctx context.Context, trade *domain.Trade) {
	n.logger.Info(ctx, "Trade executed", map[string]interface{}{
		"tradeID":  trade.ID,
		"side":     trade.Side,
		"size":     trade.Size,
		"price":    trade.Price,
		"fees":     trade.Fees,
		"status":   trade.Status,
		"strategy": trade.Strategy,
	})
	n.deliver(ctx, formatTrade(trade))
}

// PositionOpened reports a newly opened position.
func (n *Notifier) PositionOpened(ctx context.Context, pos *domain.Position) {
	n.logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"side":       pos.Side,
		"size":       pos.Size,
		"entryPrice": pos.EntryPrice,
		"margin":     pos.Margin,
		"strategy":   pos.Strategy,
	})
	n.deliver(ctx, formatPositionOpened(pos))
}

// PositionClosed reports a position that transitioned to closed.
func (n *Notifier) PositionClosed(ctx context.Context, pos *domain.Position) {
	n.logger.Info(ctx, "Position closed", map[string]interface{}{
		"positionID":  pos.ID,
		"side":        pos.Side,
		"closePrice":  pos.ClosePrice,
		"realizedPnl": pos.RealizedPnl,
		"reason":      pos.CloseReason,
	})
	n.deliver(ctx, formatPositionClosed(pos))
}

// RiskAlert reports a risk trigger such as a liquidation or margin call.
func (n *Notifier) RiskAlert(ctx context.Context, pos *domain.Position, reason string) {
	n.logger.Warn(ctx, "Risk alert", map[string]interface{}{
		"positionID": pos.ID,
		"side":       pos.Side,
		"markPrice":  pos.MarkPrice,
		"reason":     reason,
	})
	n.deliver(ctx, formatRiskAlert(pos, reason))
}

// --- Message formatting ---

func formatTrade(trade *domain.Trade) string {
	return fmt.Sprintf("*Trade %s* %s %.4f @ %.4f (fees %.4f) [%s]",
		strings.ToUpper(string(trade.Status)), trade.Side, trade.Size, trade.Price, trade.Fees, trade.Strategy)
}

func formatPositionOpened(pos *domain.Position) string {
	return fmt.Sprintf("*Opened* %s %.4f @ %.4f, margin %.4f [%s]",
		pos.Side, pos.Size, pos.EntryPrice, pos.Margin, pos.Strategy)
}

func formatPositionClosed(pos *domain.Position) string {
	return fmt.Sprintf("*Closed* %s %.4f @ %.4f, PnL %.4f (%s)",
		pos.Side, pos.Size, pos.ClosePrice, pos.RealizedPnl, pos.CloseReason)
}

func formatRiskAlert(pos *domain.Position, reason string) string {
	return fmt.Sprintf("*RISK ALERT* %s on %s position %.4f @ mark %.4f",
		strings.ToUpper(reason), pos.Side, pos.Size, pos.MarkPrice)
}
