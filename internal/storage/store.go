package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantisle/papertrader/models"
)

// Store persists backtest runs and their trade ledgers to Postgres
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// RunRecord is one persisted backtest run
type RunRecord struct {
	ID             int64
	Symbol         string
	Interval       string
	StartedAt      time.Time
	FinishedAt     time.Time
	InitialCapital float64
	FinalValue     float64
	TradeCount     int
	WinCount       int
	Metrics        models.RiskMetrics
}

// Open connects to Postgres and prepares the schema
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Check connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &Store{
		db:     db,
		logger: log.With().Str("component", "storage").Logger(),
	}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing connection, used by tests
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, logger: log.With().Str("component", "storage").Logger()}
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the necessary tables if they don't exist
func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_runs (
			id SERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			initial_capital DOUBLE PRECISION NOT NULL,
			final_value DOUBLE PRECISION NOT NULL,
			trade_count INTEGER NOT NULL,
			win_count INTEGER NOT NULL,
			sharpe_ratio DOUBLE PRECISION NOT NULL,
			sortino_ratio DOUBLE PRECISION NOT NULL,
			max_drawdown DOUBLE PRECISION NOT NULL,
			total_return DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES backtest_runs(id),
			ts TIMESTAMP NOT NULL,
			type TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			quote_amount DOUBLE PRECISION NOT NULL,
			fee DOUBLE PRECISION NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			portfolio_value DOUBLE PRECISION NOT NULL,
			reason TEXT
		)
	`)
	return err
}

// SaveRun persists one finished run and returns its assigned id
func (s *Store) SaveRun(run *RunRecord) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO backtest_runs (
			symbol, interval, started_at, finished_at,
			initial_capital, final_value, trade_count, win_count,
			sharpe_ratio, sortino_ratio, max_drawdown, total_return
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`,
		run.Symbol, run.Interval, run.StartedAt, run.FinishedAt,
		run.InitialCapital, run.FinalValue, run.TradeCount, run.WinCount,
		run.Metrics.SharpeRatio, run.Metrics.SortinoRatio,
		run.Metrics.MaxDrawdown, run.Metrics.TotalReturn,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	s.logger.Info().Int64("run_id", id).Str("symbol", run.Symbol).Msg("Saved backtest run")
	return id, nil
}

// SaveTrades persists a run's trade ledger in one transaction
func (s *Store) SaveTrades(runID int64, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trades (
			id, run_id, ts, type, price, amount,
			quote_amount, fee, pnl, portfolio_value, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		if _, err := stmt.Exec(
			trade.ID, runID, trade.Timestamp, string(trade.Type),
			trade.Price, trade.Amount, trade.QuoteAmount, trade.Fee,
			trade.PnL, trade.PortfolioValueAfter, trade.Reason,
		); err != nil {
			return fmt.Errorf("inserting trade %s: %w", trade.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trades: %w", err)
	}
	s.logger.Info().Int64("run_id", runID).Int("trades", len(trades)).Msg("Saved trades")
	return nil
}

// LatestRun returns the most recent run for a symbol, or nil when the
// symbol has never been backtested
func (s *Store) LatestRun(symbol string) (*RunRecord, error) {
	var run RunRecord
	err := s.db.QueryRow(`
		SELECT
			id, symbol, interval, started_at, finished_at,
			initial_capital, final_value, trade_count, win_count,
			sharpe_ratio, sortino_ratio, max_drawdown, total_return
		FROM backtest_runs
		WHERE symbol = $1
		ORDER BY finished_at DESC
		LIMIT 1
	`, symbol).Scan(
		&run.ID, &run.Symbol, &run.Interval, &run.StartedAt, &run.FinishedAt,
		&run.InitialCapital, &run.FinalValue, &run.TradeCount, &run.WinCount,
		&run.Metrics.SharpeRatio, &run.Metrics.SortinoRatio,
		&run.Metrics.MaxDrawdown, &run.Metrics.TotalReturn,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return &run, nil
}
