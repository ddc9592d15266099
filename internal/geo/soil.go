package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// soilBBoxMargin is the half-width in degrees of the area queried around a point.
const soilBBoxMargin = 0.1

// looseNumber accepts a JSON number, a numeric string or null.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*n = looseNumber(v)
	return nil
}

type wfsResponse struct {
	Features []struct {
		Properties struct {
			Texture     string      `json:"texture_dominante"`
			UsefulDepth looseNumber `json:"profondeur_utile"`
			PH          looseNumber `json:"ph_eau"`
			OM          looseNumber `json:"taux_mo"`
		} `json:"properties"`
	} `json:"features"`
}

// SoilProfile returns the dominant soil around coords from the INRAE soil map.
// It returns models.ErrLookupNotFound when the area has no mapped feature.
func (c *Client) SoilProfile(ctx context.Context, coords models.Coordinates) (*models.SoilProfile, error) {
	q := url.Values{}
	q.Set("service", "WFS")
	q.Set("version", "2.0.0")
	q.Set("request", "GetFeature")
	q.Set("typeName", "inrae:cartepedon")
	q.Set("outputFormat", "json")
	q.Set("bbox", fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(coords.Longitude-soilBBoxMargin), formatCoord(coords.Latitude-soilBBoxMargin),
		formatCoord(coords.Longitude+soilBBoxMargin), formatCoord(coords.Latitude+soilBBoxMargin)))

	var resp wfsResponse
	if err := c.getJSON(ctx, c.soilURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("soil profile: %w", err)
	}
	if len(resp.Features) == 0 {
		return nil, models.ErrLookupNotFound
	}
	p := resp.Features[0].Properties
	return &models.SoilProfile{
		Texture:       p.Texture,
		UsefulDepth:   float64(p.UsefulDepth),
		PH:            float64(p.PH),
		OrganicMatter: float64(p.OM),
	}, nil
}

var _ json.Unmarshaler = (*looseNumber)(nil)
