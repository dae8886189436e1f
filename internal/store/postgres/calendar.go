package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type calendarResourceRepo struct {
	db *sql.DB
}

const calendarResourceColumns = `id, name, resource_type, resource_name, calendar_type, working_hours, service_durations, external_cal_id, credentials, timezone`

func scanCalendarResource(row interface{ Scan(...any) error }) (*model.CalendarResource, error) {
	var c model.CalendarResource
	var workingHoursJSON, durationsJSON []byte
	if err := row.Scan(
		&c.ID, &c.Name, &c.ResourceType, &c.ResourceName, &c.CalendarType, &workingHoursJSON,
		&durationsJSON, &c.ExternalCalID, &c.Credentials, &c.Timezone,
	); err != nil {
		return nil, err
	}
	if len(workingHoursJSON) > 0 {
		if err := json.Unmarshal(workingHoursJSON, &c.WorkingHours); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal working_hours: %w", err)
		}
	}
	if len(durationsJSON) > 0 {
		if err := json.Unmarshal(durationsJSON, &c.ServiceDurations); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal service_durations: %w", err)
		}
	}
	return &c, nil
}

func (r *calendarResourceRepo) GetByID(ctx context.Context, id string) (*model.CalendarResource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+calendarResourceColumns+` FROM calendar_resource WHERE id = $1`, id)
	c, err := scanCalendarResource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get calendar resource: %w", err)
	}
	return c, nil
}

func (r *calendarResourceRepo) ListByResourceName(ctx context.Context, name string) ([]*model.CalendarResource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+calendarResourceColumns+` FROM calendar_resource WHERE resource_name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("postgres: list calendar resources by name: %w", err)
	}
	defer rows.Close()

	var out []*model.CalendarResource
	for rows.Next() {
		c, err := scanCalendarResource(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan calendar resource: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *calendarResourceRepo) ListAll(ctx context.Context) ([]*model.CalendarResource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+calendarResourceColumns+` FROM calendar_resource ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list calendar resources: %w", err)
	}
	defer rows.Close()

	var out []*model.CalendarResource
	for rows.Next() {
		c, err := scanCalendarResource(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan calendar resource: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *calendarResourceRepo) UpdateCredentials(ctx context.Context, id string, encryptedCredentials string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE calendar_resource SET credentials = $2 WHERE id = $1`, id, encryptedCredentials)
	if err != nil {
		return fmt.Errorf("postgres: update calendar resource credentials: %w", err)
	}
	return nil
}

type calendarBlockRepo struct {
	db *sql.DB
}

func (r *calendarBlockRepo) ListForDate(ctx context.Context, resourceID string, date string) ([]*model.CalendarBlock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, calendar_resource_id, date, start_time, end_time, block_type, appointment_id
		FROM calendar_block
		WHERE calendar_resource_id = $1 AND date = $2
	`, resourceID, date)
	if err != nil {
		return nil, fmt.Errorf("postgres: list calendar blocks: %w", err)
	}
	defer rows.Close()

	var out []*model.CalendarBlock
	for rows.Next() {
		var b model.CalendarBlock
		if err := rows.Scan(&b.ID, &b.CalendarResourceID, &b.Date, &b.StartTime, &b.EndTime, &b.BlockType, &b.AppointmentID); err != nil {
			return nil, fmt.Errorf("postgres: scan calendar block: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *calendarBlockRepo) Create(ctx context.Context, b *model.CalendarBlock) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calendar_block (id, calendar_resource_id, date, start_time, end_time, block_type, appointment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.CalendarResourceID, b.Date, b.StartTime, b.EndTime, b.BlockType, b.AppointmentID)
	if err != nil {
		return fmt.Errorf("postgres: create calendar block: %w", err)
	}
	return nil
}

func (r *calendarBlockRepo) DeleteByAppointment(ctx context.Context, appointmentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendar_block WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return fmt.Errorf("postgres: delete calendar blocks by appointment: %w", err)
	}
	return nil
}
