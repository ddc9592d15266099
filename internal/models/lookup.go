package models

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Commune is a French municipality returned by the geocoder.
type Commune struct {
	Name        string      `json:"name"`
	Code        string      `json:"code"` // INSEE code
	Department  string      `json:"department"`
	Coordinates Coordinates `json:"coordinates"`
}

// Weather is a snapshot of current conditions at a location.
type Weather struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	Code        int     `json:"code"`        // WMO weather code
	Description string  `json:"description"`
}

// SoilProfile summarises the dominant soil of an area.
type SoilProfile struct {
	Texture       string  `json:"texture,omitempty"`
	UsefulDepth   float64 `json:"useful_depth,omitempty"` // cm
	PH            float64 `json:"ph,omitempty"`
	OrganicMatter float64 `json:"organic_matter,omitempty"` // %
}
