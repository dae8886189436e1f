package handlers

import (
	"context"

	"github.com/vidinsight-tech/queryon/internal/orchestrator"
)

// AskUserHandler answers with a service-unavailable clarification prompt
// instead of routing to a knowledge-base lookup. Wired in place of
// RAGHandler when a deployment has no RAG service configured (no
// postgres/pgvector store) and model.OrchestratorConfig.WhenRAGUnavailable
// is "ask_user" rather than "direct" — grounded on
// api/schemas/orchestrator.py's when_rag_unavailable field comment:
// "'ask_user' returns a service-unavailable message."
type AskUserHandler struct{}

func NewAskUserHandler() *AskUserHandler { return &AskUserHandler{} }

func (h *AskUserHandler) Handle(ctx context.Context, in orchestrator.HandlerInput) (orchestrator.HandlerOutput, error) {
	return orchestrator.HandlerOutput{
		Answer: "Bu konuda elimde hazır bilgi yok, biraz daha açar mısınız?",
	}, nil
}
