// Package openweathermap reads air pollution and current weather from the
// OpenWeatherMap API. It backs up the station network when WAQI has no
// current value for a location.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives the default resilient client for health reporting.
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Registry: cfg.Registry,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchReading returns the modelled air pollution at lat/lon. Temperature
// and humidity come from the current weather and are left unset when that
// call fails.
func (c *Client) FetchReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	var pollution airPollutionResponse
	if err := c.get(ctx, "air_pollution", lat, lon, &pollution); err != nil {
		return nil, fmt.Errorf("fetch air pollution: %w", err)
	}
	if len(pollution.List) == 0 {
		return nil, airquality.ErrNoMeasurements
	}

	latest := pollution.List[0]
	r := &airquality.Reading{
		Lat:        pollution.Coord.Lat,
		Lon:        pollution.Coord.Lon,
		PM25:       latest.Components.PM25,
		AQI:        airquality.AQIFromPM25(latest.Components.PM25),
		MeasuredAt: time.Unix(latest.Dt, 0).UTC(),
		FetchedAt:  time.Now(),
		Provider:   ProviderName,
	}

	var current currentWeatherResponse
	if err := c.get(ctx, "weather", lat, lon, &current); err != nil {
		c.logger.Warn().Err(err).Msg("current weather unavailable, reading has no temperature")
		return r, nil
	}
	temp, humidity := current.Main.Temp, current.Main.Humidity
	r.Temperature = &temp
	r.Humidity = &humidity
	r.StationName = current.Name

	return r, nil
}

func (c *Client) get(ctx context.Context, path string, lat, lon float64, out any) error {
	endpoint := fmt.Sprintf("%s/%s?lat=%.6f&lon=%.6f&appid=%s&units=metric",
		c.baseURL, path, lat, lon, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// OpenWeatherMap API response structures.

type airPollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			// AQI is OpenWeatherMap's own 1-5 index, not the US AQI.
			AQI int `json:"aqi"`
		} `json:"main"`
		Components struct {
			PM25 float64 `json:"pm2_5"`
			PM10 float64 `json:"pm10"`
		} `json:"components"`
	} `json:"list"`
}

type currentWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Name string `json:"name"`
}

var _ airquality.Provider = (*Client)(nil)
