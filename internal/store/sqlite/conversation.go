package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type conversationRepo struct {
	db *sql.DB
}

const conversationColumns = `id, platform, channel_id, name, surname, phone, email, username, status, message_count, last_message_at, flow_state, created_at`

func (r *conversationRepo) Create(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	flowJSON, err := marshalJSON(c.FlowState)
	if err != nil {
		return fmt.Errorf("sqlite: marshal flow_state: %w", err)
	}
	now := nowRFC3339()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversation
		(id, platform, channel_id, name, surname, phone, email, username, status, message_count, last_message_at, flow_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Platform, c.ChannelID, c.Name, c.Surname, c.Phone, c.Email, c.Username, c.Status, c.MessageCount, now, flowJSON, now)
	if err != nil {
		return fmt.Errorf("sqlite: create conversation: %w", err)
	}
	return nil
}

func scanConversation(row interface{ Scan(...any) error }) (*model.Conversation, error) {
	var c model.Conversation
	var flowJSON []byte
	var lastMessageAt, createdAt string
	if err := row.Scan(
		&c.ID, &c.Platform, &c.ChannelID, &c.Name, &c.Surname, &c.Phone, &c.Email, &c.Username,
		&c.Status, &c.MessageCount, &lastMessageAt, &flowJSON, &createdAt,
	); err != nil {
		return nil, err
	}
	c.LastMessageAt = parseTimestamp(lastMessageAt)
	c.CreatedAt = parseTimestamp(createdAt)
	if err := unmarshalJSON(flowJSON, &c.FlowState); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal flow_state: %w", err)
	}
	return &c, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get conversation: %w", err)
	}
	return c, nil
}

func (r *conversationRepo) GetByChannel(ctx context.Context, platform model.Platform, channelID string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE platform = ? AND channel_id = ? ORDER BY created_at DESC LIMIT 1`, platform, channelID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get conversation by channel: %w", err)
	}
	return c, nil
}

func (r *conversationRepo) UpdateFlowState(ctx context.Context, id string, flow *model.FlowState) error {
	flowJSON, err := marshalJSON(flow)
	if err != nil {
		return fmt.Errorf("sqlite: marshal flow_state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE conversation SET flow_state = ? WHERE id = ?`, flowJSON, id)
	if err != nil {
		return fmt.Errorf("sqlite: update flow_state: %w", err)
	}
	return nil
}

func (r *conversationRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation SET message_count = message_count + 1, last_message_at = ? WHERE id = ?`, nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("sqlite: touch conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) ListActive(ctx context.Context, limit int) ([]*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE status = ? ORDER BY last_message_at DESC LIMIT ?`, model.ConversationActive, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list active conversations: %w", err)
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
