// Package handlers implements the orchestrator.Handler for each routing
// intent: rule, direct, rag, tool, character. Grounded on
// original_source/backend/orchestrator/handlers/*.py — ported to Go's
// explicit-error-return style instead of try/except, and to
// context.WithTimeout instead of asyncio.wait_for.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vidinsight-tech/queryon/internal/llmclient"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
)

// Completer is the chat-completion capability DirectHandler and
// CharacterHandler depend on. *llmclient.Client satisfies it.
type Completer interface {
	Chat(ctx context.Context, messages []llmclient.Message) (string, *llmclient.CallStats, error)
}

// DirectHandler sends the conversation straight to the LLM with no rules,
// no retrieval, and no active flow context. Grounded on direct_handler.py.
type DirectHandler struct {
	llm            Completer
	timeoutSeconds int
}

// NewDirectHandler builds a DirectHandler. timeoutSeconds <= 0 disables the
// per-call deadline.
func NewDirectHandler(llm Completer, timeoutSeconds int) *DirectHandler {
	return &DirectHandler{llm: llm, timeoutSeconds: timeoutSeconds}
}

func (h *DirectHandler) Handle(ctx context.Context, in orchestrator.HandlerInput) (orchestrator.HandlerOutput, error) {
	messages := buildPlainMessages("", in.History, in.Query)

	callCtx := ctx
	if h.timeoutSeconds > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(h.timeoutSeconds)*time.Second)
		defer cancel()
	}

	answer, _, err := h.llm.Chat(callCtx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return orchestrator.HandlerOutput{Answer: "Üzgünüm, şu anda yanıt veremiyorum. Lütfen tekrar deneyin."}, nil
		}
		return orchestrator.HandlerOutput{}, fmt.Errorf("handlers: direct llm call: %w", err)
	}

	return orchestrator.HandlerOutput{Answer: strings.TrimSpace(answer)}, nil
}

// buildPlainMessages flattens history + the current query into a chat
// message slice, with an optional system prompt prepended.
func buildPlainMessages(systemPrompt string, history []*model.Message, query string) []llmclient.Message {
	var out []llmclient.Message
	if systemPrompt != "" {
		out = append(out, llmclient.Message{Role: "system", Content: systemPrompt})
	}
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, llmclient.Message{Role: string(history[i].Role), Content: history[i].Content})
	}
	out = append(out, llmclient.Message{Role: "user", Content: query})
	return out
}
