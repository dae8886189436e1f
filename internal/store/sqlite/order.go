package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type orderRepo struct {
	db *sql.DB
}

const orderColumns = `id, conversation_id, status, contact_name, contact_phone, contact_email, summary, extra_fields, created_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	extraJSON, err := marshalJSON(o.ExtraFields)
	if err != nil {
		return fmt.Errorf("sqlite: marshal extra_fields: %w", err)
	}
	now := nowRFC3339()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO "order"
		(id, conversation_id, status, contact_name, contact_phone, contact_email, summary, extra_fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.ConversationID, o.Status, o.ContactName, o.ContactPhone, o.ContactEmail, o.Summary, extraJSON, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: create order: %w", err)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM "order" WHERE id = ?`, id)
	var o model.Order
	var extraJSON []byte
	var createdAt, updatedAt string
	err := row.Scan(&o.ID, &o.ConversationID, &o.Status, &o.ContactName, &o.ContactPhone, &o.ContactEmail,
		&o.Summary, &extraJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order: %w", err)
	}
	o.CreatedAt = parseTimestamp(createdAt)
	o.UpdatedAt = parseTimestamp(updatedAt)
	if err := unmarshalJSON(extraJSON, &o.ExtraFields); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal extra_fields: %w", err)
	}
	return &o, nil
}
