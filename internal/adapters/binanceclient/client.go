package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Taker fee assumed when the venue response does not carry commissions.
	defaultTakerFeeRate = 0.0004
)

// Client implements ports.VenueClient against Binance USD-M futures using
// the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	symbol        string
	feeRate       float64
}

// Config holds configuration specific to the Binance venue adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	Symbol     string // e.g. "ETHUSDT"
	UseTestnet bool
	FeeRate    float64 // proportional taker fee, defaults to 0.0004
	Logger     ports.Logger
}

// New creates a new Binance venue adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("trading symbol is required: %w", ports.ErrConfigurationError)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	feeRate := cfg.FeeRate
	if feeRate <= 0 {
		feeRate = defaultTakerFeeRate
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		symbol:        cfg.Symbol,
		feeRate:       feeRate,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrVenueUnavailable
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -2010, -2022: // Order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2011: // Cancel rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2019, -3005, -3041: // Insufficient margin/balance
			mappedErr = ports.ErrInsufficientFunds
		case -4003, -4014, -4015: // Quantity/price/leverage out of range
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// PlaceOrder submits an order on the configured symbol. The response type is
// forced to RESULT so market orders come back with their fill details.
func (c *Client) PlaceOrder(ctx context.Context, side domain.Side, size, price float64, orderType ports.OrderType) (*ports.OrderResult, error) {
	op := "PlaceOrder"

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(c.symbol).
		Side(toBinanceSide(side)).
		Quantity(strconv.FormatFloat(size, 'f', -1, 64)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)

	switch orderType {
	case ports.OrderTypeLimit:
		svc = svc.Type(futures.OrderTypeLimit).
			Price(strconv.FormatFloat(price, 'f', -1, 64)).
			TimeInForce(futures.TimeInForceTypeGTC)
	default:
		svc = svc.Type(futures.OrderTypeMarket)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	result := c.translateOrder(order, price)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   c.symbol,
		"side":     side,
		"size":     size,
		"orderID":  result.VenueOrderID,
		"avgPrice": result.AvgPrice,
		"status":   result.Status,
	})
	return result, nil
}

// CancelOrder cancels an open order by its venue id.
func (c *Client) CancelOrder(ctx context.Context, venueOrderID string) (bool, error) {
	op := "CancelOrder"

	orderID, err := strconv.ParseInt(venueOrderID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid venue order id %q: %w", venueOrderID, ports.ErrInvalidRequest)
	}

	_, err = c.futuresClient.NewCancelOrderService().
		Symbol(c.symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		mapped := c.handleError(ctx, err, op)
		if errors.Is(mapped, ports.ErrOrderNotFound) {
			return false, nil
		}
		return false, mapped
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": c.symbol, "orderID": orderID})
	return true, nil
}

// GetMarketPrice retrieves the current mark price for the configured symbol.
func (c *Client) GetMarketPrice(ctx context.Context) (float64, error) {
	op := "GetMarketPrice"
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(c.symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no price data returned for symbol %s", c.symbol)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(tickers[0].MarkPrice, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].MarkPrice, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// --- Translation Helpers ---

func toBinanceSide(side domain.Side) futures.SideType {
	if side == domain.Long {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func translateStatus(status futures.OrderStatusType) domain.OrderStatus {
	switch status {
	case futures.OrderStatusTypeFilled:
		return domain.OrderFilled
	case futures.OrderStatusTypePartiallyFilled:
		return domain.OrderPartial
	case futures.OrderStatusTypeNew:
		return domain.OrderPending
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return domain.OrderCancelled
	default:
		return domain.OrderFailed
	}
}

// translateOrder converts a venue response into an OrderResult. Commissions
// are not included in the create-order response, so fees are estimated from
// the taker rate.
func (c *Client) translateOrder(order *futures.CreateOrderResponse, requestedPrice float64) *ports.OrderResult {
	if order == nil {
		return nil
	}
	avgPrice, _ := strconv.ParseFloat(order.AvgPrice, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if avgPrice == 0 {
		avgPrice = requestedPrice
	}

	return &ports.OrderResult{
		VenueOrderID: strconv.FormatInt(order.OrderID, 10),
		FilledSize:   execQty,
		AvgPrice:     avgPrice,
		Fees:         execQty * avgPrice * c.feeRate,
		Status:       translateStatus(order.Status),
	}
}
