package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagehq/sage/internal/agent"
	"github.com/sagehq/sage/internal/compaction"
	sagecontext "github.com/sagehq/sage/internal/context"
	"github.com/sagehq/sage/internal/sessions"
	"github.com/sagehq/sage/pkg/models"
)

// autocompactor collapses old session history into a summary once it
// crosses a configured share of the model's context window, keeping the
// most recent turns verbatim. It only runs against FileStore sessions,
// since summarizing requires rewriting the message log in place.
type autocompactor struct {
	store     *sessions.FileStore
	provider  agent.LLMProvider
	model     string
	threshold float64
	keepLast  int
}

func newAutocompactor(store *sessions.FileStore, provider agent.LLMProvider, model string, threshold float64) *autocompactor {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &autocompactor{store: store, provider: provider, model: model, threshold: threshold, keepLast: 6}
}

// maybeCompact checks the session's current history against the model's
// context window and, if it crosses the threshold, replaces everything but
// the most recent keepLast messages with a single summary message.
func (c *autocompactor) maybeCompact(ctx context.Context, sessionID string) error {
	history, err := c.store.GetHistory(ctx, sessionID, 0)
	if err != nil {
		return err
	}
	if len(history) <= c.keepLast {
		return nil
	}

	window := sagecontext.NewWindowForModel(c.model)
	budget := window.Info().TotalTokens

	msgs := toCompactionMessages(history)
	total := compaction.EstimateMessagesTokens(msgs)
	if float64(total) < float64(budget)*c.threshold {
		return nil
	}

	stale := msgs[:len(msgs)-c.keepLast]
	recent := history[len(history)-c.keepLast:]

	summary, err := compaction.SummarizeWithFallback(ctx, stale, &providerSummarizer{provider: c.provider}, &compaction.SummarizationConfig{
		Model:         c.model,
		ContextWindow: budget,
	})
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}

	replacement := make([]*models.Message, 0, len(recent)+1)
	replacement = append(replacement, &models.Message{
		SessionID: sessionID,
		Role:      models.RoleSystem,
		Content:   "Summary of earlier conversation:\n" + summary,
	})
	replacement = append(replacement, recent...)

	return c.store.ReplaceHistory(ctx, sessionID, replacement)
}

func toCompactionMessages(history []*models.Message) []*compaction.Message {
	out := make([]*compaction.Message, 0, len(history))
	for _, msg := range history {
		out = append(out, &compaction.Message{
			Role:      string(msg.Role),
			Content:   msg.Content,
			ID:        msg.ID,
			Timestamp: msg.CreatedAt.Unix(),
		})
	}
	return out
}

// providerSummarizer adapts an agent.LLMProvider into a compaction.Summarizer
// by asking it, as a one-shot non-streaming completion, to summarize a batch
// of formatted messages.
type providerSummarizer struct {
	provider agent.LLMProvider
}

func (s *providerSummarizer) GenerateSummary(ctx context.Context, messages []*compaction.Message, config *compaction.SummarizationConfig) (string, error) {
	prompt := "Summarize the following conversation history concisely, preserving decisions, open questions, and file paths mentioned. Do not include pleasantries.\n\n" +
		formatForSummary(messages)
	if config != nil && config.CustomInstructions != "" {
		prompt = config.CustomInstructions + "\n\n" + prompt
	}

	req := &agent.CompletionRequest{
		Model: config.Model,
		Messages: []agent.CompletionMessage{
			{Role: "user", Content: prompt},
		},
	}

	chunks, err := s.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	if sb.Len() == 0 {
		return compaction.DefaultSummaryFallback, nil
	}
	return sb.String(), nil
}

func formatForSummary(messages []*compaction.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString("[" + msg.Role + "] " + msg.Content + "\n")
	}
	return sb.String()
}
