package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type appointmentRepo struct {
	db *sql.DB
}

const appointmentColumns = `id, conversation_id, appt_number, status, contact_name, contact_phone, contact_email, service, location, artist, event_date, event_time, notes, summary, extra_fields, created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	var a model.Appointment
	var extraJSON []byte
	if err := row.Scan(
		&a.ID, &a.ConversationID, &a.ApptNumber, &a.Status, &a.ContactName, &a.ContactPhone, &a.ContactEmail,
		&a.Service, &a.Location, &a.Artist, &a.EventDate, &a.EventTime, &a.Notes, &a.Summary, &extraJSON,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &a.ExtraFields); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal extra_fields: %w", err)
		}
	}
	return &a, nil
}

func (r *appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	extraJSON, err := json.Marshal(a.ExtraFields)
	if err != nil {
		return fmt.Errorf("postgres: marshal extra_fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO appointment
		(id, conversation_id, appt_number, status, contact_name, contact_phone, contact_email, service, location,
		 artist, event_date, event_time, notes, summary, extra_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
	`, a.ID, a.ConversationID, a.ApptNumber, a.Status, a.ContactName, a.ContactPhone, a.ContactEmail,
		a.Service, a.Location, a.Artist, a.EventDate, a.EventTime, a.Notes, a.Summary, extraJSON)
	if err != nil {
		return fmt.Errorf("postgres: create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepo) GetByApptNumber(ctx context.Context, apptNumber string) (*model.Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointment WHERE appt_number = $1`, apptNumber)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepo) Update(ctx context.Context, a *model.Appointment) error {
	extraJSON, err := json.Marshal(a.ExtraFields)
	if err != nil {
		return fmt.Errorf("postgres: marshal extra_fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE appointment SET
			status = $2, contact_name = $3, contact_phone = $4, contact_email = $5, service = $6,
			location = $7, artist = $8, event_date = $9, event_time = $10, notes = $11, summary = $12,
			extra_fields = $13, updated_at = now()
		WHERE id = $1
	`, a.ID, a.Status, a.ContactName, a.ContactPhone, a.ContactEmail, a.Service, a.Location, a.Artist,
		a.EventDate, a.EventTime, a.Notes, a.Summary, extraJSON)
	if err != nil {
		return fmt.Errorf("postgres: update appointment: %w", err)
	}
	return nil
}

// NextApptNumber atomically increments and returns a PREFIX-YYYY-NNNN
// appointment number for the given year, e.g. "APT-2026-0001".
func (r *appointmentRepo) NextApptNumber(ctx context.Context, year int) (string, error) {
	var counter int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO appt_number_seq (year, counter) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET counter = appt_number_seq.counter + 1
		RETURNING counter
	`, year).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("postgres: next appt number: %w", err)
	}
	return fmt.Sprintf("APT-%d-%04d", year, counter), nil
}
