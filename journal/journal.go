// Package journal persists backtest runs and their closed trades in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/evdnx/gosig/backtest"
	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    started_at DATETIME,
    ended_at DATETIME,
    bars INTEGER NOT NULL,
    start_value REAL NOT NULL,
    end_value REAL NOT NULL,
    return_pct REAL NOT NULL,
    buy_hold_pct REAL NOT NULL,
    max_drawdown REAL NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    book TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL NOT NULL,
    opened_at DATETIME,
    closed_at DATETIME,
    gross REAL NOT NULL,
    net REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
`

var ErrUnknownRun = errors.New("unknown run")

// Journal wraps the SQL handle.
type Journal struct {
	db *sql.DB
}

// Run is one stored backtest summary.
type Run struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Bars        int       `json:"bars"`
	StartValue  float64   `json:"start_value"`
	EndValue    float64   `json:"end_value"`
	ReturnPct   float64   `json:"return_pct"`
	BuyHoldPct  float64   `json:"buy_and_hold_pct"`
	MaxDrawdown float64   `json:"max_drawdown"`
	CreatedAt   time.Time `json:"created_at"`
}

// Open opens (and creates if needed) the SQLite journal at path. ":memory:"
// gives a throwaway journal.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying DB handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// SaveRun stores res and its closed trades in one transaction and returns
// the new run id.
func (j *Journal) SaveRun(ctx context.Context, res *backtest.Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	id := uuid.NewString()
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, symbol, started_at, ended_at, bars, start_value, end_value, return_pct, buy_hold_pct, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.Symbol, res.Start.UTC(), res.End.UTC(), res.Bars,
		res.StartValue, res.EndValue, res.ReturnPct, res.BuyAndHoldPct, res.MaxDrawdown)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, book, symbol, side, qty, entry_price, exit_price, opened_at, closed_at, gross, net)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare trade insert: %w", err)
	}
	defer stmt.Close()
	for _, tr := range res.Trades {
		if _, err := stmt.ExecContext(ctx, id, tr.Book, tr.Symbol, string(tr.Side), tr.Qty,
			tr.EntryPrice, tr.ExitPrice, tr.Opened.UTC(), tr.Closed.UTC(), tr.Gross, tr.Net); err != nil {
			return "", fmt.Errorf("insert trade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetRun loads one run summary.
func (j *Journal) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := j.db.QueryRowContext(ctx, `
		SELECT id, symbol, started_at, ended_at, bars, start_value, end_value, return_pct, buy_hold_pct, max_drawdown, created_at
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Symbol, &r.Start, &r.End, &r.Bars, &r.StartValue, &r.EndValue,
			&r.ReturnPct, &r.BuyHoldPct, &r.MaxDrawdown, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// Runs lists stored runs, newest first. limit <= 0 means all.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, started_at, ended_at, bars, start_value, end_value, return_pct, buy_hold_pct, max_drawdown, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Start, &r.End, &r.Bars, &r.StartValue, &r.EndValue,
			&r.ReturnPct, &r.BuyHoldPct, &r.MaxDrawdown, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trades returns the closed trades of a run, oldest first.
func (j *Journal) Trades(ctx context.Context, runID string) ([]executor.TradeEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT book, symbol, side, qty, entry_price, exit_price, opened_at, closed_at, gross, net
		FROM trades
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []executor.TradeEvent
	for rows.Next() {
		var tr executor.TradeEvent
		var side string
		if err := rows.Scan(&tr.Book, &tr.Symbol, &side, &tr.Qty, &tr.EntryPrice, &tr.ExitPrice,
			&tr.Opened, &tr.Closed, &tr.Gross, &tr.Net); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		tr.Side = types.Side(side)
		out = append(out, tr)
	}
	return out, rows.Err()
}
