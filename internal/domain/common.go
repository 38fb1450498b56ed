package domain

// Side represents the direction of a signal, trade or position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Direction returns +1 for long and -1 for short, used in PnL math.
func (s Side) Direction() float64 {
	if s == Long {
		return 1
	}
	return -1
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// OrderStatus represents the lifecycle state of an order/trade record.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderPartial   OrderStatus = "partial"
	OrderCancelled OrderStatus = "cancelled"
	OrderFailed    OrderStatus = "failed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss    CloseReason = "stop_loss"
	CloseReasonTakeProfit  CloseReason = "take_profit"
	CloseReasonLiquidation CloseReason = "liquidation"
	CloseReasonMarginCall  CloseReason = "margin_call"
	CloseReasonManual      CloseReason = "manual"
	CloseReasonRiskError   CloseReason = "risk_evaluation_error"
)
