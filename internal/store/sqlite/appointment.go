package sqlite

import (
	"context"
	"database/sql"
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
	var createdAt, updatedAt string
	if err := row.Scan(
		&a.ID, &a.ConversationID, &a.ApptNumber, &a.Status, &a.ContactName, &a.ContactPhone, &a.ContactEmail,
		&a.Service, &a.Location, &a.Artist, &a.EventDate, &a.EventTime, &a.Notes, &a.Summary, &extraJSON,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTimestamp(createdAt)
	a.UpdatedAt = parseTimestamp(updatedAt)
	if err := unmarshalJSON(extraJSON, &a.ExtraFields); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal extra_fields: %w", err)
	}
	return &a, nil
}

func (r *appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	extraJSON, err := marshalJSON(a.ExtraFields)
	if err != nil {
		return fmt.Errorf("sqlite: marshal extra_fields: %w", err)
	}
	now := nowRFC3339()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO appointment
		(id, conversation_id, appt_number, status, contact_name, contact_phone, contact_email, service, location,
		 artist, event_date, event_time, notes, summary, extra_fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ConversationID, a.ApptNumber, a.Status, a.ContactName, a.ContactPhone, a.ContactEmail,
		a.Service, a.Location, a.Artist, a.EventDate, a.EventTime, a.Notes, a.Summary, extraJSON, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepo) GetByApptNumber(ctx context.Context, apptNumber string) (*model.Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointment WHERE appt_number = ?`, apptNumber)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepo) Update(ctx context.Context, a *model.Appointment) error {
	extraJSON, err := marshalJSON(a.ExtraFields)
	if err != nil {
		return fmt.Errorf("sqlite: marshal extra_fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE appointment SET
			status = ?, contact_name = ?, contact_phone = ?, contact_email = ?, service = ?,
			location = ?, artist = ?, event_date = ?, event_time = ?, notes = ?, summary = ?,
			extra_fields = ?, updated_at = ?
		WHERE id = ?
	`, a.Status, a.ContactName, a.ContactPhone, a.ContactEmail, a.Service, a.Location, a.Artist,
		a.EventDate, a.EventTime, a.Notes, a.Summary, extraJSON, nowRFC3339(), a.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update appointment: %w", err)
	}
	return nil
}

// NextApptNumber atomically increments and returns a PREFIX-YYYY-NNNN
// appointment number for the given year, e.g. "APT-2026-0001".
func (r *appointmentRepo) NextApptNumber(ctx context.Context, year int) (string, error) {
	var counter int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO appt_number_seq (year, counter) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET counter = counter + 1
		RETURNING counter
	`, year).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("sqlite: next appt number: %w", err)
	}
	return fmt.Sprintf("APT-%d-%04d", year, counter), nil
}
