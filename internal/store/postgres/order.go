package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
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
	extraJSON, err := json.Marshal(o.ExtraFields)
	if err != nil {
		return fmt.Errorf("postgres: marshal extra_fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO "order"
		(id, conversation_id, status, contact_name, contact_phone, contact_email, summary, extra_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`, o.ID, o.ConversationID, o.Status, o.ContactName, o.ContactPhone, o.ContactEmail, o.Summary, extraJSON)
	if err != nil {
		return fmt.Errorf("postgres: create order: %w", err)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM "order" WHERE id = $1`, id)
	var o model.Order
	var extraJSON []byte
	err := row.Scan(&o.ID, &o.ConversationID, &o.Status, &o.ContactName, &o.ContactPhone, &o.ContactEmail,
		&o.Summary, &extraJSON, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &o.ExtraFields); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal extra_fields: %w", err)
		}
	}
	return &o, nil
}
