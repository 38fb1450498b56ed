package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"quantPilot/internal/domain"
	"quantPilot/internal/executor"
	"quantPilot/internal/feed"
	"quantPilot/internal/portfolio"
	"quantPilot/internal/ports"
	"quantPilot/internal/risk"
)

// Service wires the feed, strategies, risk manager, executor and portfolio
// into the per-tick decision loop.
type Service struct {
	logger   ports.Logger
	feed     *feed.Feed
	strats   []ports.Strategy
	riskMgr  *risk.Manager
	exec     *executor.Executor
	ledger   *portfolio.Portfolio
	posRepo  ports.PositionRepository
	tickRepo ports.TickRepository
	notifier ports.Notifier

	// Guarantees one tick is processed to completion before the next.
	mu sync.Mutex
}

// NewService creates the orchestrator. Strategies are evaluated in the given
// order on every tick; earlier strategies get first claim on the risk
// manager's position budget.
func NewService(
	logger ports.Logger,
	priceFeed *feed.Feed,
	strats []ports.Strategy,
	riskMgr *risk.Manager,
	exec *executor.Executor,
	ledger *portfolio.Portfolio,
	posRepo ports.PositionRepository,
	tickRepo ports.TickRepository,
	notifier ports.Notifier,
) (*Service, error) {
	if logger == nil || priceFeed == nil || riskMgr == nil || exec == nil ||
		ledger == nil || posRepo == nil || tickRepo == nil || notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for service")
	}
	if len(strats) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	return &Service{
		logger:   logger,
		feed:     priceFeed,
		strats:   strats,
		riskMgr:  riskMgr,
		exec:     exec,
		ledger:   ledger,
		posRepo:  posRepo,
		tickRepo: tickRepo,
		notifier: notifier,
	}, nil
}

// Start loads the initial portfolio state from persistence, starts the price
// feed and blocks until the context is cancelled or a shutdown signal
// arrives.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting trading service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Persistence must be reachable before trading starts; the portfolio is
	// seeded from it.
	positions, err := s.posRepo.ListPositions(ctx, ports.PositionFilter{})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load positions from persistence")
		return fmt.Errorf("failed to load initial portfolio state: %w", err)
	}
	s.ledger.Load(ctx, positions)

	if err := s.feed.Start(ctx, s.handleTick); err != nil {
		s.logger.Error(ctx, err, "Failed to start price feed")
		return fmt.Errorf("failed to start price feed: %w", err)
	}

	<-ctx.Done()
	s.logger.Info(ctx, "Context cancelled, stopping price feed...")
	s.feed.Stop()

	metrics := s.ledger.Metrics()
	s.logger.Info(ctx, "Trading service stopped", map[string]interface{}{
		"closedPositions": metrics.ClosedPositions,
		"realizedPnl":     metrics.RealizedPnl,
		"winRate":         metrics.WinRate,
		"maxDrawdown":     metrics.MaxDrawdown,
	})
	return nil
}

// handleTick runs the full pipeline for one tick: mark-price update, then
// close-trigger checks on existing positions, then strategy signals and
// their execution. The mutex serializes ticks end to end.
func (s *Service) handleTick(tick *domain.PriceTick) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug(ctx, "Processing tick", map[string]interface{}{
		"price":  tick.Price,
		"volume": tick.Volume,
	})

	// Archival failures must not stall trading.
	if err := s.tickRepo.InsertTick(ctx, tick); err != nil {
		s.logger.Warn(ctx, "Failed to archive tick", map[string]interface{}{"error": err.Error()})
	}

	s.ledger.UpdateMarkPrice(tick.Price)
	s.checkOpenPositions(ctx, tick.Price)

	for _, strat := range s.strats {
		signal := strat.OnTick(ctx, tick)
		if signal == nil {
			continue
		}
		s.logger.Info(ctx, "Strategy emitted signal", map[string]interface{}{
			"strategy":   signal.Strategy,
			"side":       signal.Side,
			"size":       signal.Size,
			"confidence": signal.Confidence,
		})
		if _, err := s.exec.ExecuteTrade(ctx, executor.TradeRequest{
			Side:     signal.Side,
			Size:     signal.Size,
			Price:    tick.Price,
			Strategy: signal.Strategy,
		}); err != nil {
			s.logger.Error(ctx, err, "Trade execution failed", map[string]interface{}{"strategy": signal.Strategy})
		}
	}
}

// checkOpenPositions evaluates every open position against the risk
// manager's close triggers at the given mark price and closes those that
// trip one. A failed close leaves the position open; it is re-evaluated on
// the next tick.
func (s *Service) checkOpenPositions(ctx context.Context, markPrice float64) {
	for _, pos := range s.ledger.OpenPositions() {
		assessment := s.riskMgr.EvaluatePosition(ctx, pos, markPrice)
		if !assessment.ShouldClose {
			continue
		}
		s.logger.Info(ctx, "Risk trigger on open position", map[string]interface{}{
			"positionID":       pos.ID,
			"reason":           assessment.Reason,
			"markPrice":        markPrice,
			"liquidationPrice": assessment.LiquidationPrice,
			"marginCall":       assessment.MarginCall,
		})
		switch assessment.Reason {
		case domain.CloseReasonLiquidation, domain.CloseReasonMarginCall, domain.CloseReasonRiskError:
			s.notifier.RiskAlert(ctx, pos, string(assessment.Reason))
		}
		if !s.exec.ClosePosition(ctx, pos.ID, assessment.Reason) {
			s.logger.Warn(ctx, "Failed to close triggered position, will retry next tick", map[string]interface{}{
				"positionID": pos.ID,
				"reason":     assessment.Reason,
			})
		}
	}
}
