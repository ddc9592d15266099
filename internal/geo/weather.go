package geo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

var weatherDescriptions = map[int]string{
	0:  "Ciel dégagé",
	1:  "Principalement dégagé",
	2:  "Partiellement nuageux",
	3:  "Couvert",
	45: "Brouillard",
	48: "Brouillard givrant",
	51: "Bruine légère",
	53: "Bruine modérée",
	55: "Bruine dense",
	61: "Pluie légère",
	63: "Pluie modérée",
	65: "Pluie forte",
	71: "Neige légère",
	73: "Neige modérée",
	75: "Neige forte",
	77: "Grains de neige",
	80: "Averses légères",
	81: "Averses modérées",
	82: "Averses violentes",
	85: "Averses de neige légères",
	86: "Averses de neige fortes",
	95: "Orage",
	96: "Orage avec grêle légère",
	99: "Orage avec grêle forte",
}

// WeatherDescription returns the French label of a WMO weather code.
func WeatherDescription(code int) string {
	if d, ok := weatherDescriptions[code]; ok {
		return d
	}
	return "Conditions inconnues"
}

type forecastResponse struct {
	Current *struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// CurrentWeather returns the current conditions at coords.
func (c *Client) CurrentWeather(ctx context.Context, coords models.Coordinates) (*models.Weather, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(coords.Latitude))
	q.Set("longitude", formatCoord(coords.Longitude))
	q.Set("current", "temperature_2m,relative_humidity_2m,weather_code")
	q.Set("timezone", "Europe/Paris")

	var resp forecastResponse
	if err := c.getJSON(ctx, c.weatherURL+"/forecast?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("current weather: %w", err)
	}
	if resp.Current == nil {
		return nil, fmt.Errorf("current weather: %w", models.ErrLookupNotFound)
	}
	return &models.Weather{
		Temperature: resp.Current.Temperature,
		Humidity:    resp.Current.Humidity,
		Code:        resp.Current.WeatherCode,
		Description: WeatherDescription(resp.Current.WeatherCode),
	}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
