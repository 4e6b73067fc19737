// Package weather supplies the outside conditions recorded next to each
// temperature row.
package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/rcthermo/pkg/config"
)

// Snapshot holds the outside conditions.
type Snapshot struct {
	Description   string
	OutsideTempC  float64
	WindSpeedMS   float64
	WindDirection float64 // degrees
	WindChill     float64 // Celsius
	Fetched       time.Time
}

// Provider fetches current conditions.
type Provider interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// New returns the provider named by cfg.Provider, or nil for "none".
func New(cfg config.WeatherConfig) (Provider, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "static":
		return Static{Description: "static"}, nil
	case "openweathermap":
		if cfg.APIKey == "" {
			return nil, errors.New("weather.api_key is required for openweathermap")
		}
		return NewOpenWeatherMap(cfg), nil
	}
	return nil, errors.Errorf("unknown weather provider %q", cfg.Provider)
}

// Static always returns the same conditions.
type Static Snapshot

var _ Provider = Static{}

// Fetch returns s.
func (s Static) Fetch(context.Context) (Snapshot, error) {
	return Snapshot(s), nil
}

// OpenWeatherMap queries the current weather endpoint of api.openweathermap.org.
type OpenWeatherMap struct {
	client *http.Client
	url    string
	apiKey string
	lat    float64
	lon    float64
}

var _ Provider = (*OpenWeatherMap)(nil)

// NewOpenWeatherMap creates a client with the configured request timeout.
func NewOpenWeatherMap(cfg config.WeatherConfig) *OpenWeatherMap {
	return &OpenWeatherMap{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		lat:    cfg.Lat,
		lon:    cfg.Lon,
	}
}

type owmResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
}

// Fetch requests metric units, so wind speed is already in m/s.
func (o *OpenWeatherMap) Fetch(ctx context.Context) (Snapshot, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(o.lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(o.lon, 'f', -1, 64))
	q.Set("units", "metric")
	q.Set("appid", o.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url+"?"+q.Encode(), nil)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to create weather request")
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "weather request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return Snapshot{}, errors.Errorf("weather request failed: %s", resp.Status)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to decode weather response")
	}

	s := Snapshot{
		OutsideTempC:  body.Main.Temp,
		WindSpeedMS:   body.Wind.Speed,
		WindDirection: body.Wind.Deg,
		WindChill:     body.Main.FeelsLike,
		Fetched:       time.Now(),
	}
	if len(body.Weather) > 0 {
		s.Description = body.Weather[0].Description
	}
	return s, nil
}

// Cache refreshes a provider at most once per interval and keeps the last
// good snapshot when a refresh fails.
type Cache struct {
	provider Provider
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    Snapshot
	ok      bool
	checked time.Time
}

// NewCache wraps p. A nil p yields a cache that always returns the zero
// snapshot.
func NewCache(p Provider, interval time.Duration) *Cache {
	return &Cache{provider: p, interval: interval, now: time.Now}
}

// Get returns the cached snapshot, refreshing it first if it is older than the
// interval. The bool is false until one fetch has succeeded.
func (c *Cache) Get(ctx context.Context) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		return Snapshot{}, false
	}

	now := c.now()
	if !c.checked.IsZero() && now.Sub(c.checked) < c.interval {
		return c.last, c.ok
	}
	c.checked = now

	s, err := c.provider.Fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("weather refresh failed, keeping last snapshot")
		return c.last, c.ok
	}
	c.last, c.ok = s, true
	return s, true
}
