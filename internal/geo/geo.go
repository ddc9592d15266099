// Package geo resolves French communes and enriches them with current weather
// and dominant soil data from public services.
//
// Geocoding uses geo.api.gouv.fr, weather uses open-meteo and soil uses the
// IGN Géoportail WFS (INRAE cartepedon layer). Geocoding results are cached
// and transient failures are retried.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/patrickmn/go-cache"
)

// Default service endpoints and tuning
const (
	DefaultGeoBaseURL     = "https://geo.api.gouv.fr"
	DefaultWeatherBaseURL = "https://api.open-meteo.com/v1"
	DefaultSoilBaseURL    = "https://wxs.ign.fr/environnement/geoportail/wfs"

	DefaultCacheTTL      = time.Hour
	DefaultRetryAttempts = 2
	DefaultRetryDelay    = 200 * time.Millisecond
	DefaultRetryMaxDelay = 2 * time.Second
	DefaultTimeout       = 10 * time.Second

	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 4 << 20
)

// HTTPError represents a non-2xx response from a lookup service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("lookup service returned status %d: %s", e.StatusCode, e.Message)
}

// NetworkError represents a failure to reach a lookup service.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("lookup service unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Opts holds configuration options for the lookup client.
type Opts struct {
	HTTPClient     *http.Client
	GeoBaseURL     string
	WeatherBaseURL string
	SoilBaseURL    string
	CacheTTL       time.Duration
	RetryAttempts  uint
	RetryDelay     time.Duration
}

// Option defines a configuration option for the lookup client.
type Option func(*Opts)

func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

func WithGeoBaseURL(u string) Option {
	return func(o *Opts) { o.GeoBaseURL = u }
}

func WithWeatherBaseURL(u string) Option {
	return func(o *Opts) { o.WeatherBaseURL = u }
}

func WithSoilBaseURL(u string) Option {
	return func(o *Opts) { o.SoilBaseURL = u }
}

// WithCacheTTL sets how long geocoding results are kept. Zero disables expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.CacheTTL = ttl }
}

// WithRetry sets the number of attempts and the base delay for transient failures.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *Opts) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// Client performs commune, weather and soil lookups.
type Client struct {
	httpClient *http.Client
	geoURL     string
	weatherURL string
	soilURL    string
	communes   *cache.Cache
	retryOpts  []retry.Option
}

// NewClient creates a lookup client with the given options.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		GeoBaseURL:     DefaultGeoBaseURL,
		WeatherBaseURL: DefaultWeatherBaseURL,
		SoilBaseURL:    DefaultSoilBaseURL,
		CacheTTL:       DefaultCacheTTL,
		RetryAttempts:  DefaultRetryAttempts,
		RetryDelay:     DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = cache.NoExpiration
	}
	slog.Debug("geo.NewClient: configured", "geo_url", cfg.GeoBaseURL, "weather_url", cfg.WeatherBaseURL,
		"soil_url", cfg.SoilBaseURL, "cache_ttl", cfg.CacheTTL, "retry_attempts", cfg.RetryAttempts)

	return &Client{
		httpClient: cfg.HTTPClient,
		geoURL:     strings.TrimRight(cfg.GeoBaseURL, "/"),
		weatherURL: strings.TrimRight(cfg.WeatherBaseURL, "/"),
		soilURL:    cfg.SoilBaseURL,
		communes:   cache.New(ttl, 10*time.Minute),
		retryOpts: []retry.Option{
			retry.Attempts(cfg.RetryAttempts),
			retry.Delay(cfg.RetryDelay),
			retry.MaxDelay(DefaultRetryMaxDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(isTransient),
		},
	}
}

// isTransient reports whether a lookup failure is worth another attempt.
func isTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// getJSON issues a GET with retries and decodes the JSON body into dst.
func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	opts := append([]retry.Option{retry.Context(ctx)}, c.retryOpts...)
	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			slog.Debug("geo.Client.getJSON: request failed", "url", rawURL, "error", err)
			return &NetworkError{Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Debug("geo.Client.getJSON: non-2xx status", "url", rawURL, "status", resp.StatusCode)
			return &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}, opts...)
}
