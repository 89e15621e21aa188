package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Monetary amounts are stored as TEXT so decimal values round-trip exactly.
const schema = `
CREATE TABLE IF NOT EXISTS raw_inputs (
    id TEXT PRIMARY KEY,
    telegram_user_id INTEGER NOT NULL,
    raw_text TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger (
    id TEXT PRIMARY KEY,
    raw_input_id TEXT NOT NULL,
    event_type TEXT NOT NULL CHECK (event_type IN ('expense', 'settlement', 'correction')),
    amount TEXT NOT NULL,
    currency TEXT NOT NULL DEFAULT 'ILS',
    category TEXT,
    payer_telegram_id INTEGER NOT NULL,
    split_payer_pct REAL NOT NULL,
    split_other_pct REAL NOT NULL,
    event_date TEXT NOT NULL,
    description TEXT,
    created_at TEXT NOT NULL,
    superseded_by TEXT,
    FOREIGN KEY (raw_input_id) REFERENCES raw_inputs(id),
    FOREIGN KEY (superseded_by) REFERENCES ledger(id)
);

CREATE TABLE IF NOT EXISTS categories (
    name TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS partnerships (
    id TEXT PRIMARY KEY,
    user_a_telegram_id INTEGER NOT NULL,
    user_b_telegram_id INTEGER NOT NULL,
    default_currency TEXT NOT NULL DEFAULT 'ILS',
    created_at TEXT NOT NULL,
    UNIQUE (user_a_telegram_id, user_b_telegram_id)
);

CREATE TABLE IF NOT EXISTS llm_calls (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    input_tokens INTEGER,
    output_tokens INTEGER,
    latency_ms INTEGER,
    is_fallback INTEGER NOT NULL DEFAULT 0,
    fallback_reason TEXT,
    cost_usd TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_payer ON ledger(payer_telegram_id);
CREATE INDEX IF NOT EXISTS idx_ledger_event_date ON ledger(event_date);
CREATE INDEX IF NOT EXISTS idx_ledger_category ON ledger(category);
CREATE INDEX IF NOT EXISTS idx_raw_inputs_user ON raw_inputs(telegram_user_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
