package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/google/uuid"
)

// SubmitResult describes what a submission did to a session.
type SubmitResult struct {
	Session  *models.Session  `json:"session"`
	Accepted bool             `json:"accepted"`
	Appended []models.Message `json:"appended"`
	// RetainedInput echoes a rejected answer so the client can offer it again.
	RetainedInput string         `json:"retained_input,omitempty"`
	Kind          ValidationKind `json:"kind,omitempty"`
}

// SessionService owns questionnaire sessions: it loads the snapshot, runs the
// controller and persists the result. One submission per session may be in
// flight at a time.
type SessionService struct {
	controller *Controller
	states     StateManager

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewSessionService creates a SessionService.
func NewSessionService(controller *Controller, states StateManager) *SessionService {
	return &SessionService{
		controller: controller,
		states:     states,
		pending:    make(map[string]struct{}),
	}
}

func (s *SessionService) acquire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[id]; busy {
		return models.ErrSubmissionPending
	}
	s.pending[id] = struct{}{}
	return nil
}

func (s *SessionService) release(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// persist saves the snapshot. Failures are logged; the in-memory result stands.
func (s *SessionService) persist(ctx context.Context, session *models.Session) {
	if err := s.states.SaveSession(ctx, *session); err != nil {
		slog.Warn("SessionService.persist: snapshot not saved", "error", err, "sessionID", session.ID)
	}
}

func (s *SessionService) load(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.states.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// Start creates a session with a generated identifier.
func (s *SessionService) Start(ctx context.Context) (*models.Session, error) {
	return s.StartWithID(ctx, uuid.NewString())
}

// StartWithID creates a session under a caller-chosen identifier and greets
// the user. An existing session with that id is replaced, but never while a
// submission on it is in flight.
func (s *SessionService) StartWithID(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, models.ErrEmptySessionID
	}
	if err := s.acquire(id); err != nil {
		slog.Debug("SessionService.StartWithID: rejected while pending", "sessionID", id)
		return nil, err
	}
	defer s.release(id)
	return s.create(ctx, id)
}

// GetOrStart returns the session behind id, creating it when it does not
// exist yet. created reports whether this call opened it.
func (s *SessionService) GetOrStart(ctx context.Context, id string) (session *models.Session, created bool, err error) {
	if id == "" {
		return nil, false, models.ErrEmptySessionID
	}
	if err := s.acquire(id); err != nil {
		return nil, false, err
	}
	defer s.release(id)

	session, err = s.load(ctx, id)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, models.ErrSessionNotFound) {
		return nil, false, err
	}
	session, err = s.create(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// create saves a fresh session; the caller holds the guard for id.
func (s *SessionService) create(ctx context.Context, id string) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:          id,
		CurrentStep: FirstStep(),
		Messages:    []models.Message{models.NewMessage(models.SenderBot, FirstStep(), GreetingMessage)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.states.SaveSession(ctx, *session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("SessionService.Start: session created", "sessionID", id)
	return session, nil
}

// Get returns the current snapshot.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.load(ctx, id)
}

// Submit feeds one answer to the current step. Validation failures are not
// errors: they come back with Accepted false and the input retained.
func (s *SessionService) Submit(ctx context.Context, id, input string) (*SubmitResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, models.ErrEmptyInput
	}
	if len(input) > models.MaxInputLength {
		return nil, models.ErrInputTooLong
	}
	if err := s.acquire(id); err != nil {
		slog.Debug("SessionService.Submit: rejected while pending", "sessionID", id)
		return nil, err
	}
	defer s.release(id)

	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	step := session.CurrentStep
	appended := []models.Message{models.NewMessage(models.SenderUser, step, strings.TrimSpace(input))}
	result := &SubmitResult{Session: session}

	outcome, err := s.controller.Submit(ctx, step, input, &session.Context)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			slog.Error("SessionService.Submit: unexpected controller error", "error", err, "sessionID", id, "step", step)
			verr = &ValidationError{Step: step, Kind: KindUnavailable, Message: MsgGenericFailure, Err: err}
		}
		appended = append(appended, models.NewMessage(verr.Sender(), step, verr.Message))
		result.RetainedInput = input
		result.Kind = verr.Kind
	} else {
		session.Context = outcome.Context
		session.CurrentStep = outcome.Next
		appended = append(appended, outcome.Messages...)
		result.Accepted = true
	}

	session.Messages = append(session.Messages, appended...)
	session.UpdatedAt = time.Now().UTC()
	s.persist(ctx, session)

	result.Appended = appended
	slog.Debug("SessionService.Submit: done", "sessionID", id, "step", step, "next", session.CurrentStep, "accepted", result.Accepted)
	return result, nil
}

// Reset clears the session back to the first step.
func (s *SessionService) Reset(ctx context.Context, id string) (*models.Session, error) {
	if err := s.acquire(id); err != nil {
		return nil, err
	}
	defer s.release(id)

	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.controller.Reset(session)
	s.persist(ctx, session)
	slog.Info("SessionService.Reset: session reset", "sessionID", id)
	return session, nil
}

// Back moves to the previous step. With purge, the answers of that step and
// every later one are discarded.
func (s *SessionService) Back(ctx context.Context, id string, purge bool) (*models.Session, error) {
	if err := s.acquire(id); err != nil {
		return nil, err
	}
	defer s.release(id)

	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if purge {
		session.CurrentStep, session.Context = s.controller.HardPreviousStep(session.CurrentStep, session.Context)
	} else {
		session.CurrentStep = s.controller.PreviousStep(session.CurrentStep)
	}
	session.UpdatedAt = time.Now().UTC()
	s.persist(ctx, session)
	slog.Debug("SessionService.Back: moved", "sessionID", id, "step", session.CurrentStep, "purge", purge)
	return session, nil
}

// List returns the IDs of stored sessions, most recently updated first.
func (s *SessionService) List(ctx context.Context) ([]string, error) {
	ids, err := s.states.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Delete removes the session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)
	if err := s.states.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
