package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/patrickmn/go-cache"
)

// FranceCentre is used when a commune has no usable coordinates.
var FranceCentre = models.Coordinates{Latitude: 46.603354, Longitude: 1.888334}

// knownCoordinates maps INSEE codes of frequently queried communes to their centre.
var knownCoordinates = map[string]models.Coordinates{
	"28061": {Latitude: 48.2167, Longitude: 1.1667},  // Brou
	"75056": {Latitude: 48.8566, Longitude: 2.3522},  // Paris
	"69123": {Latitude: 45.7578, Longitude: 4.8320},  // Lyon
	"13055": {Latitude: 43.2965, Longitude: 5.3698},  // Marseille
	"31555": {Latitude: 43.6047, Longitude: 1.4442},  // Toulouse
	"33063": {Latitude: 44.8378, Longitude: -0.5792}, // Bordeaux
	"59350": {Latitude: 50.6292, Longitude: 3.0573},  // Lille
	"44109": {Latitude: 47.2184, Longitude: -1.5536}, // Nantes
	"67482": {Latitude: 48.5734, Longitude: 7.7521},  // Strasbourg
	"35238": {Latitude: 48.1147, Longitude: -1.6794}, // Rennes
	"34172": {Latitude: 43.6107, Longitude: 3.8767},  // Montpellier
}

// communeResult is one entry of the geo.api.gouv.fr /communes response.
type communeResult struct {
	Nom             string `json:"nom"`
	Code            string `json:"code"`
	CodeDepartement string `json:"codeDepartement"`
	Centre          *struct {
		Coordinates []float64 `json:"coordinates"` // GeoJSON order: lon, lat
	} `json:"centre"`
}

func (r communeResult) toCommune() models.Commune {
	return models.Commune{
		Name:        r.Nom,
		Code:        r.Code,
		Department:  r.CodeDepartement,
		Coordinates: resolveCoordinates(r),
	}
}

// resolveCoordinates prefers the service-provided centre, then the known table,
// then the centre of France.
func resolveCoordinates(r communeResult) models.Coordinates {
	if r.Centre != nil && len(r.Centre.Coordinates) == 2 {
		return models.Coordinates{Latitude: r.Centre.Coordinates[1], Longitude: r.Centre.Coordinates[0]}
	}
	if c, ok := knownCoordinates[r.Code]; ok {
		return c
	}
	return FranceCentre
}

// SearchCommunes returns up to five communes matching name, most populated first.
// It returns models.ErrLookupNotFound when nothing matches.
func (c *Client) SearchCommunes(ctx context.Context, name string) ([]models.Commune, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, models.ErrLookupNotFound
	}
	if cached, ok := c.communes.Get(key); ok {
		slog.Debug("geo.Client.SearchCommunes: cache hit", "name", key)
		return cached.([]models.Commune), nil
	}

	q := url.Values{}
	q.Set("nom", strings.TrimSpace(name))
	q.Set("boost", "population")
	q.Set("limit", "5")
	q.Set("fields", "nom,code,codeDepartement,centre")

	var results []communeResult
	if err := c.getJSON(ctx, c.geoURL+"/communes?"+q.Encode(), &results); err != nil {
		slog.Warn("geo.Client.SearchCommunes: lookup failed", "name", key, "error", err)
		return nil, fmt.Errorf("search communes %q: %w", name, err)
	}
	if len(results) == 0 {
		slog.Debug("geo.Client.SearchCommunes: no match", "name", key)
		return nil, models.ErrLookupNotFound
	}

	communes := make([]models.Commune, 0, len(results))
	for _, r := range results {
		communes = append(communes, r.toCommune())
	}
	c.communes.Set(key, communes, cache.DefaultExpiration)
	slog.Debug("geo.Client.SearchCommunes: found", "name", key, "count", len(communes), "top", communes[0].Name)
	return communes, nil
}
