package sqlite

import (
	"context"
	"database/sql"
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
		return nil, fmt.Errorf("sqlite: get orchestrator config: %w", err)
	}
	if err := unmarshalJSON(enabledIntentsJSON, &cfg.EnabledIntents); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal enabled_intents: %w", err)
	}
	if err := unmarshalJSON(apptFieldsJSON, &cfg.AppointmentFields); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal appointment_fields: %w", err)
	}
	if err := unmarshalJSON(orderFieldsJSON, &cfg.OrderFields); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal order_fields: %w", err)
	}
	return &cfg, nil
}

func (r *configRepo) Save(ctx context.Context, cfg *model.OrchestratorConfig) error {
	enabledIntentsJSON, err := marshalJSON(cfg.EnabledIntents)
	if err != nil {
		return fmt.Errorf("sqlite: marshal enabled_intents: %w", err)
	}
	apptFieldsJSON, err := marshalJSON(cfg.AppointmentFields)
	if err != nil {
		return fmt.Errorf("sqlite: marshal appointment_fields: %w", err)
	}
	orderFieldsJSON, err := marshalJSON(cfg.OrderFields)
	if err != nil {
		return fmt.Errorf("sqlite: marshal order_fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orchestrator_config
		(id, rules_first, fallback_to_direct, default_intent, enabled_intents, min_confidence,
		 embedding_confidence_threshold, low_confidence_strategy, when_rag_unavailable, llm_timeout_seconds,
		 max_conversation_turns, appointment_fields, order_fields, order_mode_enabled, restrictions,
		 character_system_prompt, appointment_webhook_url, appointment_webhook_secret)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			rules_first = excluded.rules_first, fallback_to_direct = excluded.fallback_to_direct,
			default_intent = excluded.default_intent, enabled_intents = excluded.enabled_intents,
			min_confidence = excluded.min_confidence,
			embedding_confidence_threshold = excluded.embedding_confidence_threshold,
			low_confidence_strategy = excluded.low_confidence_strategy,
			when_rag_unavailable = excluded.when_rag_unavailable,
			llm_timeout_seconds = excluded.llm_timeout_seconds,
			max_conversation_turns = excluded.max_conversation_turns,
			appointment_fields = excluded.appointment_fields, order_fields = excluded.order_fields,
			order_mode_enabled = excluded.order_mode_enabled, restrictions = excluded.restrictions,
			character_system_prompt = excluded.character_system_prompt,
			appointment_webhook_url = excluded.appointment_webhook_url,
			appointment_webhook_secret = excluded.appointment_webhook_secret
	`, cfg.RulesFirst, cfg.FallbackToDirect, cfg.DefaultIntent, enabledIntentsJSON, cfg.MinConfidence,
		cfg.EmbeddingConfidenceThreshold, cfg.LowConfidenceStrategy, cfg.WhenRAGUnavailable,
		cfg.LLMTimeoutSeconds, cfg.MaxConversationTurns, apptFieldsJSON, orderFieldsJSON,
		cfg.OrderModeEnabled, cfg.Restrictions, cfg.CharacterSystemPrompt, cfg.AppointmentWebhookURL,
		cfg.AppointmentWebhookSecret)
	if err != nil {
		return fmt.Errorf("sqlite: save orchestrator config: %w", err)
	}
	return nil
}
