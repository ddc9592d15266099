package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// fakeLocator serves a fixed commune and optional enrichment.
type fakeLocator struct {
	mu sync.Mutex

	communes   []models.Commune
	searchErr  error
	weather    *models.Weather
	weatherErr error
	soil       *models.SoilProfile
	soilErr    error

	// When set, SearchCommunes signals entered and waits for release.
	entered chan struct{}
	release chan struct{}

	searches int
}

func newFakeLocator() *fakeLocator {
	return &fakeLocator{
		communes: []models.Commune{{
			Name:        "Chartres",
			Code:        "28085",
			Department:  "28",
			Coordinates: models.Coordinates{Latitude: 48.4469, Longitude: 1.4892},
		}},
		weather: &models.Weather{Temperature: 14, Humidity: 65, Code: 2, Description: "Partiellement nuageux"},
		soil:    &models.SoilProfile{Texture: "Limon argileux", UsefulDepth: 90, PH: 6.8, OrganicMatter: 2.1},
	}
}

func (f *fakeLocator) SearchCommunes(ctx context.Context, name string) ([]models.Commune, error) {
	f.mu.Lock()
	f.searches++
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.communes, nil
}

func (f *fakeLocator) CurrentWeather(ctx context.Context, coords models.Coordinates) (*models.Weather, error) {
	if f.weatherErr != nil {
		return nil, f.weatherErr
	}
	return f.weather, nil
}

func (f *fakeLocator) SoilProfile(ctx context.Context, coords models.Coordinates) (*models.SoilProfile, error) {
	if f.soilErr != nil {
		return nil, f.soilErr
	}
	return f.soil, nil
}

func (f *fakeLocator) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

// MockStateManager keeps snapshots as JSON so callers never share memory.
type MockStateManager struct {
	mu       sync.Mutex
	sessions map[string][]byte
	saveErr  error
	saves    int
}

func NewMockStateManager() *MockStateManager {
	return &MockStateManager{sessions: make(map[string][]byte)}
}

func (m *MockStateManager) LoadSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MockStateManager) SaveSession(ctx context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	m.sessions[session.ID] = data
	return nil
}

func (m *MockStateManager) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStateManager) ListSessions(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var errBoom = errors.New("boom")
