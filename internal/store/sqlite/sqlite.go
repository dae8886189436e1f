// Package sqlite implements internal/store's repositories against SQLite
// via database/sql + modernc.org/sqlite, for single-process deployments
// that don't need a separate PostgreSQL instance. Grounded on the same
// raw-SQL conventions as internal/store/postgres, adapted to SQLite's
// "?" placeholders and text-based timestamp/JSON storage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidinsight-tech/queryon/internal/store"
)

// Driver wraps a SQLite connection and implements every internal/store
// repository interface.
type Driver struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database file at path.
func Open(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock contention
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return &Driver{db: db}, nil
}

// NewStore builds a store.Store backed by this driver.
func (d *Driver) NewStore() *store.Store {
	return &store.Store{
		Conversations:     &conversationRepo{db: d.db},
		Messages:          &messageRepo{db: d.db},
		MessageEvents:     &messageEventRepo{db: d.db},
		Rules:             &ruleRepo{db: d.db},
		Appointments:      &appointmentRepo{db: d.db},
		Orders:            &orderRepo{db: d.db},
		CalendarResources: &calendarResourceRepo{db: d.db},
		CalendarBlocks:    &calendarBlockRepo{db: d.db},
		Config:            &configRepo{db: d.db},
	}
}

// Close releases the underlying connection.
func (d *Driver) Close() error { return d.db.Close() }

// EnsureSchema creates every table this package's repositories use, if
// they don't already exist.
func (d *Driver) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: schema migration failed: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS conversation (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		channel_id TEXT,
		name TEXT NOT NULL DEFAULT '',
		surname TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		message_count INTEGER NOT NULL DEFAULT 0,
		last_message_at TEXT NOT NULL,
		flow_state TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_channel ON conversation (platform, channel_id)`,
	`CREATE TABLE IF NOT EXISTS message (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversation(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		intent TEXT,
		confidence REAL,
		classifier_layer TEXT,
		rule_matched TEXT,
		tool_called TEXT,
		fallback_used INTEGER NOT NULL DEFAULT 0,
		fallback_from_intent TEXT,
		needs_clarification INTEGER NOT NULL DEFAULT 0,
		total_ms INTEGER,
		sources TEXT,
		extra_metadata TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_message_conversation ON message (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS message_event (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES message(id),
		event_type TEXT NOT NULL,
		data TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rule (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		trigger_patterns TEXT NOT NULL DEFAULT '[]',
		response_template TEXT NOT NULL DEFAULT '',
		variables TEXT,
		priority INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		flow_id TEXT,
		step_key TEXT,
		required_step TEXT,
		next_steps TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS appt_number_seq (
		year INTEGER PRIMARY KEY,
		counter INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS appointment (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		appt_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		service TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		event_date TEXT NOT NULL DEFAULT '',
		event_time TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		extra_fields TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "order" (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		extra_fields TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS calendar_resource (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		resource_type TEXT NOT NULL DEFAULT '',
		resource_name TEXT NOT NULL,
		calendar_type TEXT NOT NULL DEFAULT 'internal',
		working_hours TEXT,
		service_durations TEXT,
		external_cal_id TEXT NOT NULL DEFAULT '',
		credentials TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT 'UTC'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_resource_name ON calendar_resource (resource_name)`,
	`CREATE TABLE IF NOT EXISTS calendar_block (
		id TEXT PRIMARY KEY,
		calendar_resource_id TEXT NOT NULL REFERENCES calendar_resource(id),
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		block_type TEXT NOT NULL DEFAULT 'booked',
		appointment_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_block_resource_date ON calendar_block (calendar_resource_id, date)`,
	`CREATE TABLE IF NOT EXISTS orchestrator_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		rules_first INTEGER NOT NULL DEFAULT 1,
		fallback_to_direct INTEGER NOT NULL DEFAULT 1,
		default_intent TEXT NOT NULL DEFAULT 'direct',
		enabled_intents TEXT,
		min_confidence REAL NOT NULL DEFAULT 0.5,
		embedding_confidence_threshold REAL NOT NULL DEFAULT 0.75,
		low_confidence_strategy TEXT NOT NULL DEFAULT 'fallback',
		when_rag_unavailable TEXT NOT NULL DEFAULT 'direct',
		llm_timeout_seconds INTEGER NOT NULL DEFAULT 30,
		max_conversation_turns INTEGER NOT NULL DEFAULT 50,
		appointment_fields TEXT,
		order_fields TEXT,
		order_mode_enabled INTEGER NOT NULL DEFAULT 1,
		restrictions TEXT NOT NULL DEFAULT '',
		character_system_prompt TEXT NOT NULL DEFAULT '',
		appointment_webhook_url TEXT NOT NULL DEFAULT '',
		appointment_webhook_secret TEXT NOT NULL DEFAULT ''
	)`,
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
