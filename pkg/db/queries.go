package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrAccountIDRequired = errors.New("account_id is required")

// Statements used by both direct inserts and the batch writer.
const (
	InsertTradeSQL = `INSERT OR IGNORE INTO trade_records
		(id, account_id, outcome, symbol, side, size, entry_price, take_profit, stop_loss,
		 tp_kind, sl_kind, order_id, order_status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	InsertProfitLockSQL = `INSERT OR IGNORE INTO profit_locks
		(id, account_id, symbol, profit_pct, new_stop, stop_order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	InsertAccountEventSQL = `INSERT INTO account_events (account_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?)`
)

// TradeArgs returns InsertTradeSQL arguments.
func TradeArgs(t TradeRecord) []any {
	return []any{t.ID, t.AccountID, t.Outcome, t.Symbol, t.Side, t.Size, t.EntryPrice, t.TakeProfit,
		t.StopLoss, t.TPKind, t.SLKind, t.OrderID, t.OrderStatus, t.Error, t.CreatedAt.UTC()}
}

// ProfitLockArgs returns InsertProfitLockSQL arguments.
func ProfitLockArgs(p ProfitLock) []any {
	return []any{p.ID, p.AccountID, p.Symbol, p.ProfitPct, p.NewStop, p.StopOrderID, p.CreatedAt.UTC()}
}

// AccountEventArgs returns InsertAccountEventSQL arguments.
func AccountEventArgs(e AccountEvent) []any {
	return []any{e.AccountID, e.Kind, e.Detail, e.CreatedAt.UTC()}
}

// InsertTrade stores a trade record; duplicates by id are ignored.
func (d *Database) InsertTrade(ctx context.Context, t TradeRecord) error {
	_, err := d.DB.ExecContext(ctx, InsertTradeSQL, TradeArgs(t)...)
	return err
}

// InsertProfitLock stores a profit lock; duplicates by id are ignored.
func (d *Database) InsertProfitLock(ctx context.Context, p ProfitLock) error {
	_, err := d.DB.ExecContext(ctx, InsertProfitLockSQL, ProfitLockArgs(p)...)
	return err
}

// InsertAccountEvent appends an account event.
func (d *Database) InsertAccountEvent(ctx context.Context, e AccountEvent) error {
	_, err := d.DB.ExecContext(ctx, InsertAccountEventSQL, AccountEventArgs(e)...)
	return err
}

// ListTrades returns the newest records of an account, optionally filtered
// by outcome. limit <= 0 means 100.
func (d *Database) ListTrades(ctx context.Context, accountID, outcome string, limit int) ([]TradeRecord, error) {
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, account_id, outcome, symbol, side, size, entry_price, take_profit, stop_loss,
		       tp_kind, sl_kind, order_id, order_status, error, created_at
		FROM trade_records
		WHERE account_id = ? AND (? = '' OR outcome = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, accountID, outcome, outcome, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Outcome, &t.Symbol, &t.Side, &t.Size, &t.EntryPrice,
			&t.TakeProfit, &t.StopLoss, &t.TPKind, &t.SLKind, &t.OrderID, &t.OrderStatus, &t.Error, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListProfitLocks returns the newest profit locks of an account.
func (d *Database) ListProfitLocks(ctx context.Context, accountID string, limit int) ([]ProfitLock, error) {
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, account_id, symbol, profit_pct, new_stop, stop_order_id, created_at
		FROM profit_locks
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query profit locks: %w", err)
	}
	defer rows.Close()

	var out []ProfitLock
	for rows.Next() {
		var p ProfitLock
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Symbol, &p.ProfitPct, &p.NewStop, &p.StopOrderID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profit lock: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListAccountEvents returns the newest events of an account.
func (d *Database) ListAccountEvents(ctx context.Context, accountID string, limit int) ([]AccountEvent, error) {
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, account_id, kind, detail, created_at
		FROM account_events
		WHERE account_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query account events: %w", err)
	}
	defer rows.Close()

	var out []AccountEvent
	for rows.Next() {
		var e AccountEvent
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
