package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type messageRepo struct {
	db *sql.DB
}

func (r *messageRepo) Create(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	sourcesJSON, err := json.Marshal(m.Sources)
	if err != nil {
		return fmt.Errorf("postgres: marshal sources: %w", err)
	}
	metaJSON, err := json.Marshal(m.ExtraMetadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal extra_metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO message
		(id, conversation_id, role, content, intent, confidence, classifier_layer, rule_matched, tool_called,
		 fallback_used, fallback_from_intent, needs_clarification, total_ms, sources, extra_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
	`, m.ID, m.ConversationID, m.Role, m.Content, m.Intent, m.Confidence, m.ClassifierLayer, m.RuleMatched,
		m.ToolCalled, m.FallbackUsed, m.FallbackFromIntent, m.NeedsClarification, m.TotalMS, sourcesJSON, metaJSON)
	if err != nil {
		return fmt.Errorf("postgres: create message: %w", err)
	}
	return nil
}

const messageColumns = `id, conversation_id, role, content, intent, confidence, classifier_layer, rule_matched, tool_called, fallback_used, fallback_from_intent, needs_clarification, total_ms, sources, extra_metadata, created_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	var m model.Message
	var sourcesJSON, metaJSON []byte
	if err := row.Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Intent, &m.Confidence, &m.ClassifierLayer,
		&m.RuleMatched, &m.ToolCalled, &m.FallbackUsed, &m.FallbackFromIntent, &m.NeedsClarification,
		&m.TotalMS, &sourcesJSON, &metaJSON, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &m.Sources); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal sources: %w", err)
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &m.ExtraMetadata); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal extra_metadata: %w", err)
		}
	}
	return &m, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM message
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *messageRepo) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message WHERE conversation_id = $1`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count messages: %w", err)
	}
	return count, nil
}

type messageEventRepo struct {
	db *sql.DB
}

func (r *messageEventRepo) Create(ctx context.Context, e *model.MessageEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("postgres: marshal event data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO message_event (id, message_id, event_type, data, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, e.ID, e.MessageID, e.EventType, dataJSON)
	if err != nil {
		return fmt.Errorf("postgres: create message event: %w", err)
	}
	return nil
}

func (r *messageEventRepo) ListByMessage(ctx context.Context, messageID string) ([]*model.MessageEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, event_type, data, created_at FROM message_event
		WHERE message_id = $1
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list message events: %w", err)
	}
	defer rows.Close()

	var out []*model.MessageEvent
	for rows.Next() {
		var e model.MessageEvent
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.MessageID, &e.EventType, &dataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message event: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal event data: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
