// Package legal implements the employment-law chat assistant.
//
// Each conversation is a Transcript of user and assistant turns. A question is
// recorded only once the completion gateway has answered it.
package legal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/genai"
	"github.com/BTreeMap/TerraPipe/internal/metrics"
	"github.com/BTreeMap/TerraPipe/internal/models"
)

// TranscriptStore persists legal conversations.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, id string) (*models.Transcript, error)
	SaveTranscript(ctx context.Context, transcript models.Transcript) error
	DeleteTranscript(ctx context.Context, id string) error
}

// Opts holds optional collaborators.
type Opts struct {
	Metrics *metrics.Recorder
}

// Option configures an Assistant.
type Option func(*Opts)

// WithMetrics counts questions and gateway calls.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Opts) {
		o.Metrics = r
	}
}

// Answer is the reply to one question.
type Answer struct {
	Reply      string             `json:"reply"`
	Transcript *models.Transcript `json:"transcript"`
}

// Assistant answers employment-law questions through the completion gateway.
type Assistant struct {
	gateway genai.Gateway
	store   TranscriptStore
	metrics *metrics.Recorder

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewAssistant creates an Assistant.
func NewAssistant(gateway genai.Gateway, store TranscriptStore, opts ...Option) *Assistant {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Assistant{
		gateway: gateway,
		store:   store,
		metrics: cfg.Metrics,
		pending: make(map[string]struct{}),
	}
}

func (a *Assistant) acquire(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.pending[id]; busy {
		return models.ErrSubmissionPending
	}
	a.pending[id] = struct{}{}
	return nil
}

func (a *Assistant) release(id string) {
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
}

// History returns the transcript, or an empty one if none exists yet.
func (a *Assistant) History(ctx context.Context, id string) (*models.Transcript, error) {
	if id == "" {
		return nil, models.ErrEmptySessionID
	}
	tr, err := a.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript %s: %w", id, err)
	}
	if tr == nil {
		now := time.Now().UTC()
		tr = &models.Transcript{ID: id, Turns: []models.Turn{}, CreatedAt: now, UpdatedAt: now}
	}
	return tr, nil
}

// Ask sends question, with profanities masked, along with the conversation
// so far. On any failure the transcript is left as it was.
func (a *Assistant) Ask(ctx context.Context, id, question string) (*Answer, error) {
	question = MaskProfanities(strings.TrimSpace(question))
	if question == "" {
		return nil, models.ErrEmptyInput
	}
	if len(question) > models.MaxInputLength {
		return nil, models.ErrInputTooLong
	}
	if err := a.acquire(id); err != nil {
		return nil, err
	}
	defer a.release(id)

	tr, err := a.History(ctx, id)
	if err != nil {
		return nil, err
	}

	reply, err := a.gateway.Converse(ctx, tr.Turns, question)
	if err != nil {
		a.metrics.ObserveGatewayCall("legal", metrics.OutcomeFailure)
		a.metrics.ObserveLegalQuestion(metrics.OutcomeFailure)
		slog.Warn("Assistant.Ask: gateway failed", "error", err, "transcriptID", id)
		return nil, fmt.Errorf("legal assistant unavailable: %w", err)
	}
	a.metrics.ObserveGatewayCall("legal", metrics.OutcomeSuccess)

	tr.Turns = append(tr.Turns,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: reply},
	)
	tr.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveTranscript(ctx, *tr); err != nil {
		a.metrics.ObserveLegalQuestion(metrics.OutcomeFailure)
		return nil, fmt.Errorf("failed to save transcript %s: %w", id, err)
	}
	a.metrics.ObserveLegalQuestion(metrics.OutcomeSuccess)
	slog.Debug("Assistant.Ask: answered", "transcriptID", id, "turns", len(tr.Turns))
	return &Answer{Reply: reply, Transcript: tr}, nil
}

// Clear forgets the conversation.
func (a *Assistant) Clear(ctx context.Context, id string) error {
	if err := a.acquire(id); err != nil {
		return err
	}
	defer a.release(id)
	if err := a.store.DeleteTranscript(ctx, id); err != nil {
		return fmt.Errorf("failed to clear transcript %s: %w", id, err)
	}
	slog.Info("Assistant.Clear: transcript cleared", "transcriptID", id)
	return nil
}
