package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/rag"
)

// RAGHandler wraps rag.Service.Ask(). Grounded on rag_handler.py's
// history-enrichment shape. An Ask failure is returned as an error, not as
// an empty answer, so it fails the turn instead of reaching the
// orchestrator's empty-answer fallback to Direct.
type RAGHandler struct {
	service rag.Service
}

func NewRAGHandler(service rag.Service) *RAGHandler {
	return &RAGHandler{service: service}
}

func (h *RAGHandler) Handle(ctx context.Context, in orchestrator.HandlerInput) (orchestrator.HandlerOutput, error) {
	enriched := enrichQuery(in.Query, in.History)

	result, err := h.service.Ask(ctx, enriched)
	if err != nil {
		return orchestrator.HandlerOutput{}, fmt.Errorf("handlers: rag ask: %w", err)
	}

	return orchestrator.HandlerOutput{
		Answer:  result.Answer,
		Sources: result.Sources,
	}, nil
}

// enrichQuery prepends the last few turns so the RAG pipeline can resolve
// pronouns and follow-up references ("tell me more about that"). history is
// newest-first; only the 4 most recent turns are used, rendered oldest-first.
func enrichQuery(query string, history []*model.Message) string {
	if len(history) == 0 {
		return query
	}

	recentCount := len(history)
	if recentCount > 4 {
		recentCount = 4
	}

	var lines []string
	for i := recentCount - 1; i >= 0; i-- {
		content := strings.TrimSpace(history[i].Content)
		if content == "" {
			continue
		}
		if len(content) > 200 {
			content = content[:200]
		}
		lines = append(lines, string(history[i].Role)+": "+content)
	}
	if len(lines) == 0 {
		return query
	}

	return "Previous conversation:\n" + strings.Join(lines, "\n") + "\n\nCurrent question: " + query
}
