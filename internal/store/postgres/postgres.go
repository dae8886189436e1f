// Package postgres implements internal/store's repositories against
// PostgreSQL via database/sql + github.com/lib/pq, grounded on the raw-SQL,
// $N-placeholder conventions of the teacher's (now-removed) store/db
// package and plugin/chat_apps/store/db.go.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vidinsight-tech/queryon/internal/store"
)

// Driver wraps a PostgreSQL connection and implements every
// internal/store repository interface across the files in this package.
type Driver struct {
	db *sql.DB
}

// Open connects to PostgreSQL at dsn and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Driver, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
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

// Close releases the underlying connection pool.
func (d *Driver) Close() error { return d.db.Close() }

// DB exposes the underlying connection pool for callers that need to run
// pgvector-specific queries directly, e.g. internal/rag/ragstub.
func (d *Driver) DB() *sql.DB { return d.db }

// EnsureSchema creates every table this package's repositories use, if
// they don't already exist. Safe to call on every startup.
func (d *Driver) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: schema migration failed: %w", err)
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
		last_message_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		flow_state JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_channel ON conversation (platform, channel_id)`,
	`CREATE TABLE IF NOT EXISTS message (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversation(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		intent TEXT,
		confidence DOUBLE PRECISION,
		classifier_layer TEXT,
		rule_matched TEXT,
		tool_called TEXT,
		fallback_used BOOLEAN NOT NULL DEFAULT false,
		fallback_from_intent TEXT,
		needs_clarification BOOLEAN NOT NULL DEFAULT false,
		total_ms BIGINT,
		sources JSONB,
		extra_metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_message_conversation ON message (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS message_event (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES message(id),
		event_type TEXT NOT NULL,
		data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rule (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		trigger_patterns JSONB NOT NULL DEFAULT '[]',
		response_template TEXT NOT NULL DEFAULT '',
		variables JSONB,
		priority INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT true,
		flow_id TEXT,
		step_key TEXT,
		required_step TEXT,
		next_steps JSONB
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
		extra_fields JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS "order" (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		extra_fields JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS calendar_resource (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		resource_type TEXT NOT NULL DEFAULT '',
		resource_name TEXT NOT NULL,
		calendar_type TEXT NOT NULL DEFAULT 'internal',
		working_hours JSONB,
		service_durations JSONB,
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
		id INTEGER PRIMARY KEY DEFAULT 1,
		rules_first BOOLEAN NOT NULL DEFAULT true,
		fallback_to_direct BOOLEAN NOT NULL DEFAULT true,
		default_intent TEXT NOT NULL DEFAULT 'direct',
		enabled_intents JSONB,
		min_confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		embedding_confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.75,
		low_confidence_strategy TEXT NOT NULL DEFAULT 'fallback',
		when_rag_unavailable TEXT NOT NULL DEFAULT 'direct',
		llm_timeout_seconds INTEGER NOT NULL DEFAULT 30,
		max_conversation_turns INTEGER NOT NULL DEFAULT 50,
		appointment_fields JSONB,
		order_fields JSONB,
		order_mode_enabled BOOLEAN NOT NULL DEFAULT true,
		restrictions TEXT NOT NULL DEFAULT '',
		character_system_prompt TEXT NOT NULL DEFAULT '',
		appointment_webhook_url TEXT NOT NULL DEFAULT '',
		appointment_webhook_secret TEXT NOT NULL DEFAULT '',
		CONSTRAINT orchestrator_config_singleton CHECK (id = 1)
	)`,
}
