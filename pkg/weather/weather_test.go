package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/config"
)

const owmBody = `{
  "weather": [{"id": 500, "main": "Rain", "description": "light rain"}],
  "main": {"temp": 7.5, "feels_like": 4.2, "humidity": 81},
  "wind": {"speed": 5.1, "deg": 230}
}`

func TestOpenWeatherMap_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "52.77", r.URL.Query().Get("lat"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(owmBody))
	}))
	defer srv.Close()

	cfg := config.Default().Weather
	cfg.URL = srv.URL
	cfg.APIKey = "secret"
	cfg.Lat, cfg.Lon = 52.77, -1.2

	s, err := NewOpenWeatherMap(cfg).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "light rain", s.Description)
	assert.Equal(t, 7.5, s.OutsideTempC)
	assert.Equal(t, 5.1, s.WindSpeedMS)
	assert.Equal(t, 230.0, s.WindDirection)
	assert.Equal(t, 4.2, s.WindChill)
}

func TestOpenWeatherMap_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Default().Weather
	cfg.URL = srv.URL
	cfg.APIKey = "bad"

	_, err := NewOpenWeatherMap(cfg).Fetch(context.Background())
	assert.Error(t, err)
}

func TestOpenWeatherMap_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{"))
	}))
	defer srv.Close()

	cfg := config.Default().Weather
	cfg.URL = srv.URL
	cfg.APIKey = "k"

	_, err := NewOpenWeatherMap(cfg).Fetch(context.Background())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg := config.Default().Weather

	p, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg.Provider = "static"
	p, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, Static{}, p)

	cfg.Provider = "openweathermap"
	_, err = New(cfg)
	assert.Error(t, err, "api key required")

	cfg.APIKey = "k"
	p, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenWeatherMap{}, p)

	cfg.Provider = "yahoo"
	_, err = New(cfg)
	assert.Error(t, err)
}

type countingProvider struct {
	calls int
	snaps []Snapshot
	errs  []error
}

func (p *countingProvider) Fetch(context.Context) (Snapshot, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return Snapshot{}, p.errs[i]
	}
	return p.snaps[i], nil
}

func TestCache_RefreshInterval(t *testing.T) {
	p := &countingProvider{
		snaps: []Snapshot{{Description: "sunny"}, {Description: "cloudy"}},
	}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(p, time.Hour)
	c.now = func() time.Time { return now }

	s, ok := c.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "sunny", s.Description)

	now = now.Add(30 * time.Minute)
	s, _ = c.Get(context.Background())
	assert.Equal(t, "sunny", s.Description)
	assert.Equal(t, 1, p.calls)

	now = now.Add(31 * time.Minute)
	s, _ = c.Get(context.Background())
	assert.Equal(t, "cloudy", s.Description)
	assert.Equal(t, 2, p.calls)
}

func TestCache_KeepsLastGood(t *testing.T) {
	p := &countingProvider{
		snaps: []Snapshot{{Description: "sunny"}, {}},
		errs:  []error{nil, errors.New("offline")},
	}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(p, time.Hour)
	c.now = func() time.Time { return now }

	_, _ = c.Get(context.Background())
	now = now.Add(2 * time.Hour)
	s, ok := c.Get(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "sunny", s.Description)
}

func TestCache_NoProvider(t *testing.T) {
	c := NewCache(nil, time.Hour)
	s, ok := c.Get(context.Background())
	assert.False(t, ok)
	assert.Equal(t, Snapshot{}, s)
}

func TestCache_FirstFetchFails(t *testing.T) {
	p := &countingProvider{errs: []error{errors.New("offline")}, snaps: []Snapshot{{}}}
	c := NewCache(p, time.Hour)
	_, ok := c.Get(context.Background())
	assert.False(t, ok)
}
