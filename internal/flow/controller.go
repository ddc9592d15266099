// Package flow drives the regenerative-agriculture questionnaire.
//
// The Controller validates one answer at a time against the current step and
// returns the next step, the bot reply and an updated copy of the context.
// SessionService layers persistence and per-session serialization on top.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/genai"
	"github.com/BTreeMap/TerraPipe/internal/metrics"
	"github.com/BTreeMap/TerraPipe/internal/models"
	"golang.org/x/sync/errgroup"
)

// Locator resolves a farm location and its enrichment data.
type Locator interface {
	SearchCommunes(ctx context.Context, name string) ([]models.Commune, error)
	CurrentWeather(ctx context.Context, coords models.Coordinates) (*models.Weather, error)
	SoilProfile(ctx context.Context, coords models.Coordinates) (*models.SoilProfile, error)
}

// ValidationKind classifies a rejected submission.
type ValidationKind string

const (
	KindEmpty         ValidationKind = "empty"
	KindInvalid       ValidationKind = "invalid"
	KindGreeting      ValidationKind = "greeting"
	KindNotFound      ValidationKind = "not_found"
	KindUnavailable   ValidationKind = "unavailable"
	KindConfiguration ValidationKind = "configuration"
)

// ValidationError is a step-local failure. Message is shown to the user.
type ValidationError struct {
	Step    models.StepID
	Kind    ValidationKind
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %s rejected input (%s): %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("step %s rejected input (%s)", e.Step, e.Kind)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Sender is the author of the message reporting the failure.
func (e *ValidationError) Sender() models.Sender {
	if e.Kind == KindGreeting {
		return models.SenderBot
	}
	return models.SenderError
}

// Outcome is the result of an accepted submission.
type Outcome struct {
	Next     models.StepID
	Messages []models.Message
	Context  models.ConversationContext
}

// ControllerOpts holds optional collaborators.
type ControllerOpts struct {
	Metrics *metrics.Recorder
}

// ControllerOption configures a Controller.
type ControllerOption func(*ControllerOpts)

// WithMetrics records submissions, lookups and gateway calls.
func WithMetrics(r *metrics.Recorder) ControllerOption {
	return func(o *ControllerOpts) {
		o.Metrics = r
	}
}

// Controller is stateless; all conversation state is passed in.
type Controller struct {
	locator Locator
	gateway genai.Gateway // optional
	metrics *metrics.Recorder
}

// NewController creates a Controller. gateway may be nil, in which case the
// analysis is the locally built report alone.
func NewController(locator Locator, gateway genai.Gateway, opts ...ControllerOption) *Controller {
	var cfg ControllerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{locator: locator, gateway: gateway, metrics: cfg.Metrics}
}

// Submit validates raw against step. On failure it returns a *ValidationError
// and cc is left untouched.
func (c *Controller) Submit(ctx context.Context, stepID models.StepID, raw string, cc *models.ConversationContext) (*Outcome, error) {
	step, ok := StepByID(stepID)
	if !ok {
		return nil, fmt.Errorf("unknown step %q", stepID)
	}
	input := strings.TrimSpace(raw)

	outcome, err := c.submit(ctx, step, input, cc)
	if err != nil {
		c.metrics.ObserveSubmission(string(step.ID), metrics.OutcomeRejected)
		return nil, err
	}
	c.metrics.ObserveSubmission(string(step.ID), metrics.OutcomeAccepted)
	return outcome, nil
}

func (c *Controller) submit(ctx context.Context, step Step, input string, cc *models.ConversationContext) (*Outcome, error) {
	if input == "" {
		return nil, &ValidationError{Step: step.ID, Kind: KindEmpty, Message: MsgEmptyInput, Err: models.ErrEmptyInput}
	}

	// Entries are replaced, never mutated, so a shallow copy is enough.
	next := *cc
	var reply string

	switch step.ID {
	case models.StepLocation:
		entry, err := c.resolveLocation(ctx, input)
		if err != nil {
			return nil, err
		}
		next.Commune = entry
		reply = step.Success(&next)
	case models.StepAnalysis:
		summary, err := c.analyse(ctx, &next, input)
		if err != nil {
			return nil, err
		}
		next.Summary = summary
		reply = AnalysisText(summary)
	default:
		if !step.Validate(input) {
			slog.Debug("Controller.Submit: validation failed", "step", step.ID, "length", len(input))
			return nil, &ValidationError{Step: step.ID, Kind: KindInvalid, Message: step.Failure}
		}
		step.Apply(&next, input)
		reply = step.Success(&next)
	}

	nextStep := step.Next
	if step.Terminal() {
		nextStep = step.ID
	}
	slog.Debug("Controller.Submit: accepted", "step", step.ID, "next", nextStep)
	return &Outcome{
		Next:     nextStep,
		Messages: []models.Message{models.NewMessage(models.SenderBot, step.ID, reply)},
		Context:  next,
	}, nil
}

func (c *Controller) resolveLocation(ctx context.Context, input string) (*models.CommuneEntry, error) {
	if IsGreeting(input) {
		return nil, &ValidationError{Step: models.StepLocation, Kind: KindGreeting, Message: GreetingReprompt}
	}

	start := time.Now()
	communes, err := c.locator.SearchCommunes(ctx, input)
	c.metrics.ObserveLookup("geocode", time.Since(start))
	if errors.Is(err, models.ErrLookupNotFound) || (err == nil && len(communes) == 0) {
		return nil, &ValidationError{Step: models.StepLocation, Kind: KindNotFound, Message: MsgLocationNotFound, Err: models.ErrLookupNotFound}
	}
	if err != nil {
		slog.Warn("Controller.resolveLocation: geocoding failed", "error", err, "query", input)
		return nil, &ValidationError{Step: models.StepLocation, Kind: KindUnavailable, Message: MsgLookupUnavailable, Err: err}
	}

	entry := &models.CommuneEntry{Commune: communes[0]}
	coords := entry.Coordinates

	// Enrichment is best-effort: failures are logged and the field left empty.
	var g errgroup.Group
	g.Go(func() error {
		start := time.Now()
		w, err := c.locator.CurrentWeather(ctx, coords)
		c.metrics.ObserveLookup("weather", time.Since(start))
		if err != nil {
			slog.Warn("Controller.resolveLocation: weather lookup failed", "error", err, "commune", entry.Code)
			return nil
		}
		entry.Weather = w
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		s, err := c.locator.SoilProfile(ctx, coords)
		c.metrics.ObserveLookup("soil", time.Since(start))
		if err != nil {
			slog.Warn("Controller.resolveLocation: soil lookup failed", "error", err, "commune", entry.Code)
			return nil
		}
		entry.Soil = s
		return nil
	})
	_ = g.Wait()

	slog.Info("Controller.resolveLocation: commune resolved", "name", entry.Name, "code", entry.Code,
		"weather", entry.Weather != nil, "soil", entry.Soil != nil)
	return entry, nil
}

func (c *Controller) analyse(ctx context.Context, cc *models.ConversationContext, focus string) (*models.SummaryEntry, error) {
	report := BuildReport(cc, focus)
	summary := &models.SummaryEntry{Focus: focus, Report: report, CreatedAt: time.Now().UTC()}
	if c.gateway == nil {
		return summary, nil
	}

	prior := []models.Turn{{Role: models.RoleSystem, Content: genai.AgricultureSystemPrompt}}
	narrative, err := c.gateway.Converse(ctx, prior, AnalysisPrompt(report))
	if err != nil {
		c.metrics.ObserveGatewayCall("analysis", metrics.OutcomeFailure)
		if errors.Is(err, genai.ErrMissingAPIKey) {
			slog.Error("Controller.analyse: completion gateway misconfigured", "error", err)
			return nil, &ValidationError{Step: models.StepAnalysis, Kind: KindConfiguration, Message: MsgConfiguration, Err: err}
		}
		slog.Warn("Controller.analyse: completion gateway failed", "error", err)
		return nil, &ValidationError{Step: models.StepAnalysis, Kind: KindUnavailable, Message: MsgAnalysisFailed, Err: err}
	}
	c.metrics.ObserveGatewayCall("analysis", metrics.OutcomeSuccess)
	summary.Narrative = strings.TrimSpace(narrative)
	return summary, nil
}

// Reset returns s to the first step with an empty context and no messages.
func (c *Controller) Reset(s *models.Session) {
	s.CurrentStep = FirstStep()
	s.Context = models.ConversationContext{}
	s.Messages = []models.Message{}
	s.UpdatedAt = time.Now().UTC()
}

// PreviousStep moves the pointer back one step without touching the context.
// The first step stays where it is.
func (c *Controller) PreviousStep(current models.StepID) models.StepID {
	step, ok := StepByID(current)
	if !ok || step.Index == 0 {
		return current
	}
	return Steps[step.Index-1].ID
}

// HardPreviousStep moves back one step and drops the answers of that step
// and every later one, so they must be given again.
func (c *Controller) HardPreviousStep(current models.StepID, cc models.ConversationContext) (models.StepID, models.ConversationContext) {
	prev := c.PreviousStep(current)
	if prev == current {
		return current, cc
	}
	target, _ := StepByID(prev)
	for _, s := range Steps[target.Index:] {
		cc.Clear(s.Key)
	}
	return prev, cc
}
