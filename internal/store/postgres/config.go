package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type configRepo struct {
	db *sql.DB
}

const configColumns = `rules_first, fallback_to_direct, default_intent, enabled_intents, min_confidence, embedding_confidence_threshold, low_confidence_strategy, when_rag_unavailable, llm_timeout_seconds, max_conversation_turns, appointment_fields, order_fields, order_mode_enabled, restrictions, character_system_prompt, appointment_webhook_url, appointment_webhook_secret`

func (r *configRepo) Get(ctx context.Context) (*model.OrchestratorConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM orchestrator_config WHERE id = 1`)
	var cfg model.OrchestratorConfig
	var enabledIntentsJSON, apptFieldsJSON, orderFieldsJSON []byte
	err := row.Scan(
		&cfg.RulesFirst, &cfg.FallbackToDirect, &cfg.DefaultIntent, &enabledIntentsJSON, &cfg.MinConfidence,
		&cfg.EmbeddingConfidenceThreshold, &cfg.LowConfidenceStrategy, &cfg.WhenRAGUnavailable,
		&cfg.LLMTimeoutSeconds, &cfg.MaxConversationTurns, &apptFieldsJSON, &orderFieldsJSON,
		&cfg.OrderModeEnabled, &cfg.Restrictions, &cfg.CharacterSystemPrompt, &cfg.AppointmentWebhookURL,
		&cfg.AppointmentWebhookSecret,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get orchestrator config: %w", err)
	}
	if len(enabledIntentsJSON) > 0 {
		if err := json.Unmarshal(enabledIntentsJSON, &cfg.EnabledIntents); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal enabled_intents: %w", err)
		}
	}
	if len(apptFieldsJSON) > 0 {
		if err := json.Unmarshal(apptFieldsJSON, &cfg.AppointmentFields); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal appointment_fields: %w", err)
		}
	}
	if len(orderFieldsJSON) > 0 {
		if err := json.Unmarshal(orderFieldsJSON, &cfg.OrderFields); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal order_fields: %w", err)
		}
	}
	return &cfg, nil
}

func (r *configRepo) Save(ctx context.Context, cfg *model.OrchestratorConfig) error {
	enabledIntentsJSON, err := json.Marshal(cfg.EnabledIntents)
	if err != nil {
		return fmt.Errorf("postgres: marshal enabled_intents: %w", err)
	}
	apptFieldsJSON, err := json.Marshal(cfg.AppointmentFields)
	if err != nil {
		return fmt.Errorf("postgres: marshal appointment_fields: %w", err)
	}
	orderFieldsJSON, err := json.Marshal(cfg.OrderFields)
	if err != nil {
		return fmt.Errorf("postgres: marshal order_fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orchestrator_config
		(id, rules_first, fallback_to_direct, default_intent, enabled_intents, min_confidence,
		 embedding_confidence_threshold, low_confidence_strategy, when_rag_unavailable, llm_timeout_seconds,
		 max_conversation_turns, appointment_fields, order_fields, order_mode_enabled, restrictions,
		 character_system_prompt, appointment_webhook_url, appointment_webhook_secret)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			rules_first = $1, fallback_to_direct = $2, default_intent = $3, enabled_intents = $4,
			min_confidence = $5, embedding_confidence_threshold = $6, low_confidence_strategy = $7,
			when_rag_unavailable = $8, llm_timeout_seconds = $9, max_conversation_turns = $10,
			appointment_fields = $11, order_fields = $12, order_mode_enabled = $13, restrictions = $14,
			character_system_prompt = $15, appointment_webhook_url = $16, appointment_webhook_secret = $17
	`, cfg.RulesFirst, cfg.FallbackToDirect, cfg.DefaultIntent, enabledIntentsJSON, cfg.MinConfidence,
		cfg.EmbeddingConfidenceThreshold, cfg.LowConfidenceStrategy, cfg.WhenRAGUnavailable,
		cfg.LLMTimeoutSeconds, cfg.MaxConversationTurns, apptFieldsJSON, orderFieldsJSON,
		cfg.OrderModeEnabled, cfg.Restrictions, cfg.CharacterSystemPrompt, cfg.AppointmentWebhookURL,
		cfg.AppointmentWebhookSecret)
	if err != nil {
		return fmt.Errorf("postgres: save orchestrator config: %w", err)
	}
	return nil
}
