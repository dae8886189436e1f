package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type ruleRepo struct {
	db *sql.DB
}

const ruleColumns = `id, name, description, trigger_patterns, response_template, variables, priority, is_active, flow_id, step_key, required_step, next_steps`

func scanRule(row interface{ Scan(...any) error }) (*model.Rule, error) {
	var r model.Rule
	var patternsJSON, variablesJSON, nextStepsJSON []byte
	if err := row.Scan(
		&r.ID, &r.Name, &r.Description, &patternsJSON, &r.ResponseTemplate, &variablesJSON,
		&r.Priority, &r.IsActive, &r.FlowID, &r.StepKey, &r.RequiredStep, &nextStepsJSON,
	); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(patternsJSON, &r.TriggerPatterns); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal trigger_patterns: %w", err)
	}
	if err := unmarshalJSON(variablesJSON, &r.Variables); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal variables: %w", err)
	}
	if err := unmarshalJSON(nextStepsJSON, &r.NextSteps); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal next_steps: %w", err)
	}
	return &r, nil
}

func (r *ruleRepo) ListActive(ctx context.Context) ([]*model.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM rule
		WHERE is_active = 1
		ORDER BY priority DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list active rules: %w", err)
	}
	defer rows.Close()

	var out []*model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *ruleRepo) GetByID(ctx context.Context, id string) (*model.Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rule WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get rule: %w", err)
	}
	return rule, nil
}
