package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quantPilot/internal/domain"
	"quantPilot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository, ports.PositionRepository and
// ports.TickRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/quantpilot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the trading loop and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		side TEXT NOT NULL,
		size REAL NOT NULL,
		price REAL NOT NULL,
		fees REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		venue_order_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		strategy TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		side TEXT NOT NULL,
		size REAL NOT NULL,
		entry_price REAL NOT NULL,
		mark_price REAL NOT NULL DEFAULT 0,
		leverage REAL NOT NULL,
		margin REAL NOT NULL,
		unrealized_pnl REAL NOT NULL DEFAULT 0,
		realized_pnl REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		close_price REAL NOT NULL DEFAULT 0,
		close_reason TEXT NULL,
		strategy TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS ticks (
		ts TIMESTAMP NOT NULL,
		price REAL NOT NULL,
		volume REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades (created_at);
	CREATE INDEX IF NOT EXISTS idx_positions_status_opened_at ON positions (status, opened_at);
	CREATE INDEX IF NOT EXISTS idx_ticks_ts ON ticks (ts);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

// InsertTrade saves a new trade record.
func (r *Repository) InsertTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, side, size, price, fees, status, venue_order_id, created_at, strategy)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.Side, trade.Size, trade.Price, trade.Fees, trade.Status,
		trade.VenueOrderID, trade.Timestamp, trade.Strategy)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", trade.ID, err)
	}
	r.logger.Debug(ctx, "Trade inserted", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status})
	return nil
}

// UpdateTrade modifies an existing trade record by id.
func (r *Repository) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET side = ?, size = ?, price = ?, fees = ?, status = ?, venue_order_id = ?, strategy = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		trade.Side, trade.Size, trade.Price, trade.Fees, trade.Status,
		trade.VenueOrderID, trade.Strategy, trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w", trade.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade %s: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	return nil
}

// ListTrades retrieves trades matching the filter, most recent first.
func (r *Repository) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	query := `
	SELECT id, side, size, price, fees, status, venue_order_id, created_at, strategy
	FROM trades`

	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Side != "" {
		conds = append(conds, "side = ?")
		args = append(args, filter.Side)
	}
	if filter.Strategy != "" {
		conds = append(conds, "strategy = ?")
		args = append(args, filter.Strategy)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during ListTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- PositionRepository Implementation ---

// InsertPosition saves a new position.
func (r *Repository) InsertPosition(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (id, side, size, entry_price, mark_price, leverage, margin,
	                       unrealized_pnl, realized_pnl, status, opened_at, closed_at,
	                       close_price, close_reason, strategy)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID, pos.Side, pos.Size, pos.EntryPrice, pos.MarkPrice, pos.Leverage, pos.Margin,
		pos.UnrealizedPnl, pos.RealizedPnl, pos.Status, pos.OpenedAt, nullableTime(pos.ClosedAt),
		pos.ClosePrice, string(pos.CloseReason), pos.Strategy)
	if err != nil {
		return fmt.Errorf("failed to insert position %s: %w", pos.ID, err)
	}
	r.logger.Debug(ctx, "Position inserted", map[string]interface{}{"positionID": pos.ID, "side": pos.Side})
	return nil
}

// UpdatePosition modifies an existing position by id.
func (r *Repository) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET side = ?, size = ?, entry_price = ?, mark_price = ?, leverage = ?, margin = ?,
	    unrealized_pnl = ?, realized_pnl = ?, status = ?, opened_at = ?, closed_at = ?,
	    close_price = ?, close_reason = ?, strategy = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		pos.Side, pos.Size, pos.EntryPrice, pos.MarkPrice, pos.Leverage, pos.Margin,
		pos.UnrealizedPnl, pos.RealizedPnl, pos.Status, pos.OpenedAt, nullableTime(pos.ClosedAt),
		pos.ClosePrice, string(pos.CloseReason), pos.Strategy, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w", pos.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %s: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position %s not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
	return nil
}

// FindPositionByID retrieves a position by id. Returns nil, nil if not found.
func (r *Repository) FindPositionByID(ctx context.Context, id string) (*domain.Position, error) {
	const query = `
	SELECT id, side, size, entry_price, mark_price, leverage, margin,
	       unrealized_pnl, realized_pnl, status, opened_at, closed_at,
	       close_price, COALESCE(close_reason, ''), strategy
	FROM positions
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position %s: %w", id, err)
	}
	return pos, nil
}

// ListPositions retrieves positions matching the filter, most recent first.
func (r *Repository) ListPositions(ctx context.Context, filter ports.PositionFilter) ([]*domain.Position, error) {
	query := `
	SELECT id, side, size, entry_price, mark_price, leverage, margin,
	       unrealized_pnl, realized_pnl, status, opened_at, closed_at,
	       close_price, COALESCE(close_reason, ''), strategy
	FROM positions`

	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Side != "" {
		conds = append(conds, "side = ?")
		args = append(args, filter.Side)
	}
	if filter.Strategy != "" {
		conds = append(conds, "strategy = ?")
		args = append(args, filter.Strategy)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "opened_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "opened_at <= ?")
		args = append(args, filter.To)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY opened_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during ListPositions: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- TickRepository Implementation ---

// InsertTick archives a price tick.
func (r *Repository) InsertTick(ctx context.Context, tick *domain.PriceTick) error {
	const query = `INSERT INTO ticks (ts, price, volume) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, tick.Timestamp, tick.Price, tick.Volume)
	if err != nil {
		return fmt.Errorf("failed to insert tick: %w", err)
	}
	return nil
}

// ListTicks retrieves archived ticks within [from, to], oldest first.
func (r *Repository) ListTicks(ctx context.Context, from, to time.Time) ([]*domain.PriceTick, error) {
	const query = `SELECT ts, price, volume FROM ticks WHERE ts >= ? AND ts <= ? ORDER BY ts ASC`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	ticks := make([]*domain.PriceTick, 0)
	for rows.Next() {
		t := &domain.PriceTick{}
		if err := rows.Scan(&t.Timestamp, &t.Price, &t.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan tick during ListTicks: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tick rows: %w", err)
	}
	return ticks, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var side, status, closeReason string
	var closedAt sql.NullTime
	err := s.Scan(
		&p.ID, &side, &p.Size, &p.EntryPrice, &p.MarkPrice, &p.Leverage, &p.Margin,
		&p.UnrealizedPnl, &p.RealizedPnl, &status, &p.OpenedAt, &closedAt,
		&p.ClosePrice, &closeReason, &p.Strategy)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	p.CloseReason = domain.CloseReason(closeReason)
	return p, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, status string
	err := s.Scan(
		&t.ID, &side, &t.Size, &t.Price, &t.Fees, &status,
		&t.VenueOrderID, &t.Timestamp, &t.Strategy)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Side = domain.Side(side)
	t.Status = domain.OrderStatus(status)
	return t, nil
}
