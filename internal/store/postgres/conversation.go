package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type conversationRepo struct {
	db *sql.DB
}

func (r *conversationRepo) Create(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	flowJSON, err := json.Marshal(c.FlowState)
	if err != nil {
		return fmt.Errorf("postgres: marshal flow_state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversation
		(id, platform, channel_id, name, surname, phone, email, username, status, message_count, last_message_at, flow_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), $11, now())
	`, c.ID, c.Platform, c.ChannelID, c.Name, c.Surname, c.Phone, c.Email, c.Username, c.Status, c.MessageCount, flowJSON)
	if err != nil {
		return fmt.Errorf("postgres: create conversation: %w", err)
	}
	return nil
}

func scanConversation(row interface{ Scan(...any) error }) (*model.Conversation, error) {
	var c model.Conversation
	var flowJSON []byte
	if err := row.Scan(
		&c.ID, &c.Platform, &c.ChannelID, &c.Name, &c.Surname, &c.Phone, &c.Email, &c.Username,
		&c.Status, &c.MessageCount, &c.LastMessageAt, &flowJSON, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(flowJSON) > 0 {
		if err := json.Unmarshal(flowJSON, &c.FlowState); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal flow_state: %w", err)
		}
	}
	return &c, nil
}

const conversationColumns = `id, platform, channel_id, name, surname, phone, email, username, status, message_count, last_message_at, flow_state, created_at`

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get conversation: %w", err)
	}
	return c, nil
}

func (r *conversationRepo) GetByChannel(ctx context.Context, platform model.Platform, channelID string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE platform = $1 AND channel_id = $2 ORDER BY created_at DESC LIMIT 1`, platform, channelID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get conversation by channel: %w", err)
	}
	return c, nil
}

func (r *conversationRepo) UpdateFlowState(ctx context.Context, id string, flow *model.FlowState) error {
	flowJSON, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("postgres: marshal flow_state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE conversation SET flow_state = $2 WHERE id = $1`, id, flowJSON)
	if err != nil {
		return fmt.Errorf("postgres: update flow_state: %w", err)
	}
	return nil
}

func (r *conversationRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation SET message_count = message_count + 1, last_message_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: touch conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) ListActive(ctx context.Context, limit int) ([]*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE status = $1 ORDER BY last_message_at DESC LIMIT $2`, model.ConversationActive, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active conversations: %w", err)
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
