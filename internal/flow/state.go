package flow

import (
	"context"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// StateManager loads and saves questionnaire snapshots.
type StateManager interface {
	// LoadSession returns nil, nil when the session does not exist
	LoadSession(ctx context.Context, id string) (*models.Session, error)

	// SaveSession stores the whole snapshot, replacing any previous one
	SaveSession(ctx context.Context, session models.Session) error

	// DeleteSession removes a snapshot; deleting a missing session is not an error
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns stored session IDs, most recently updated first
	ListSessions(ctx context.Context) ([]string, error)
}
