package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/BTreeMap/TerraPipe/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// LoadSession retrieves the snapshot of a session.
func (sm *StoreBasedStateManager) LoadSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := sm.store.GetSession(ctx, id)
	if err != nil {
		slog.Error("StateManager LoadSession error", "error", err, "sessionID", id)
		return nil, err
	}
	if session == nil {
		slog.Debug("StateManager LoadSession not found", "sessionID", id)
		return nil, nil
	}
	slog.Debug("StateManager LoadSession found", "sessionID", id, "step", session.CurrentStep, "messages", len(session.Messages))
	return session, nil
}

// SaveSession persists the snapshot of a session.
func (sm *StoreBasedStateManager) SaveSession(ctx context.Context, session models.Session) error {
	if err := sm.store.SaveSession(ctx, session); err != nil {
		slog.Error("StateManager SaveSession error", "error", err, "sessionID", session.ID, "step", session.CurrentStep)
		return err
	}
	slog.Debug("StateManager SaveSession succeeded", "sessionID", session.ID, "step", session.CurrentStep)
	return nil
}

// DeleteSession removes the snapshot of a session.
func (sm *StoreBasedStateManager) DeleteSession(ctx context.Context, id string) error {
	if err := sm.store.DeleteSession(ctx, id); err != nil {
		slog.Error("StateManager DeleteSession error", "error", err, "sessionID", id)
		return err
	}
	slog.Info("StateManager DeleteSession succeeded", "sessionID", id)
	return nil
}

// ListSessions returns the IDs of stored sessions.
func (sm *StoreBasedStateManager) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := sm.store.ListSessions(ctx)
	if err != nil {
		slog.Error("StateManager ListSessions error", "error", err)
		return nil, err
	}
	return ids, nil
}
