package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Prices and sizes are stored as decimal strings to keep exchange precision.
var migrations = []string{
	`PRAGMA journal_mode=WAL;`,
	`CREATE TABLE IF NOT EXISTS trade_records (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		size TEXT NOT NULL DEFAULT '0',
		entry_price TEXT NOT NULL DEFAULT '0',
		take_profit TEXT NOT NULL DEFAULT '0',
		stop_loss TEXT NOT NULL DEFAULT '0',
		tp_kind TEXT NOT NULL DEFAULT '',
		sl_kind TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		order_status TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_trade_records_account ON trade_records(account_id, outcome, created_at);`,
	`CREATE TABLE IF NOT EXISTS profit_locks (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		profit_pct TEXT NOT NULL,
		new_stop TEXT NOT NULL DEFAULT '0',
		stop_order_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_profit_locks_account ON profit_locks(account_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS account_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
}

// ApplyMigrations creates the journal tables.
func ApplyMigrations(d *Database) error {
	for i, stmt := range migrations {
		if _, err := d.DB.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// journalTables are the tables ApplyMigrations creates.
var journalTables = []string{"trade_records", "profit_locks", "account_events"}

// VerifySchema reports the journal tables missing from d.
func VerifySchema(d *Database) ([]string, error) {
	var missing []string
	for _, name := range journalTables {
		var found string
		err := d.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", name, err)
		}
	}
	return missing, nil
}

// TableCounts returns the row count of every journal table.
func TableCounts(ctx context.Context, d *Database) (map[string]int, error) {
	counts := make(map[string]int, len(journalTables))
	for _, name := range journalTables {
		var n int
		if err := d.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}
