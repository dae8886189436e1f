package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type messageRepo struct {
	db *sql.DB
}

const messageColumns = `id, conversation_id, role, content, intent, confidence, classifier_layer, rule_matched, tool_called, fallback_used, fallback_from_intent, needs_clarification, total_ms, sources, extra_metadata, created_at`

func (r *messageRepo) Create(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	sourcesJSON, err := marshalJSON(m.Sources)
	if err != nil {
		return fmt.Errorf("sqlite: marshal sources: %w", err)
	}
	metaJSON, err := marshalJSON(m.ExtraMetadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal extra_metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO message
		(id, conversation_id, role, content, intent, confidence, classifier_layer, rule_matched, tool_called,
		 fallback_used, fallback_from_intent, needs_clarification, total_ms, sources, extra_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.Role, m.Content, m.Intent, m.Confidence, m.ClassifierLayer, m.RuleMatched,
		m.ToolCalled, m.FallbackUsed, m.FallbackFromIntent, m.NeedsClarification, m.TotalMS, sourcesJSON, metaJSON, nowRFC3339())
	if err != nil {
		return fmt.Errorf("sqlite: create message: %w", err)
	}
	return nil
}

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	var m model.Message
	var sourcesJSON, metaJSON []byte
	var createdAt string
	if err := row.Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Intent, &m.Confidence, &m.ClassifierLayer,
		&m.RuleMatched, &m.ToolCalled, &m.FallbackUsed, &m.FallbackFromIntent, &m.NeedsClarification,
		&m.TotalMS, &sourcesJSON, &metaJSON, &createdAt,
	); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTimestamp(createdAt)
	if err := unmarshalJSON(sourcesJSON, &m.Sources); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal sources: %w", err)
	}
	if err := unmarshalJSON(metaJSON, &m.ExtraMetadata); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal extra_metadata: %w", err)
	}
	return &m, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM message
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *messageRepo) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message WHERE conversation_id = ?`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
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
	dataJSON, err := marshalJSON(e.Data)
	if err != nil {
		return fmt.Errorf("sqlite: marshal event data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO message_event (id, message_id, event_type, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.MessageID, e.EventType, dataJSON, nowRFC3339())
	if err != nil {
		return fmt.Errorf("sqlite: create message event: %w", err)
	}
	return nil
}

func (r *messageEventRepo) ListByMessage(ctx context.Context, messageID string) ([]*model.MessageEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, event_type, data, created_at FROM message_event
		WHERE message_id = ?
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list message events: %w", err)
	}
	defer rows.Close()

	var out []*model.MessageEvent
	for rows.Next() {
		var e model.MessageEvent
		var dataJSON []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.MessageID, &e.EventType, &dataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message event: %w", err)
		}
		e.CreatedAt = parseTimestamp(createdAt)
		if err := unmarshalJSON(dataJSON, &e.Data); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal event data: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
