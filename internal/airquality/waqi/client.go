// Package waqi provides a client for the World Air Quality Index feed API.
package waqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info"

	// ProviderName identifies this provider.
	ProviderName = "waqi"
)

// ErrAPI is returned when the API answers with a non-ok status.
var ErrAPI = errors.New("waqi api error")

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Token is the API access token.
	Token string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives the default resilient client for health reporting.
	Registry *resilience.Registry
}

// Client is a WAQI API client.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPDoer
}

// NewClient creates a new WAQI client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

// Name identifies the provider.
func (c *Client) Name() string {
	return ProviderName
}

type feedResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI  json.RawMessage `json:"aqi"`
	City struct {
		Name string    `json:"name"`
		Geo  []float64 `json:"geo"`
	} `json:"city"`
	IAQI map[string]struct {
		V float64 `json:"v"`
	} `json:"iaqi"`
	Time struct {
		ISO string `json:"iso"`
	} `json:"time"`
}

// FetchReading returns the reading of the station nearest to lat/lon.
func (c *Client) FetchReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	endpoint := fmt.Sprintf("%s/feed/geo:%.4f;%.4f/?token=%s", c.baseURL, lat, lon, url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from feed endpoint", resp.StatusCode)
	}

	var result feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	if result.Status != "ok" {
		var msg string
		_ = json.Unmarshal(result.Data, &msg)
		return nil, fmt.Errorf("%w: %s", ErrAPI, msg)
	}

	var data feedData
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return nil, fmt.Errorf("decode feed data: %w", err)
	}

	return toReading(&data, lat, lon)
}

func toReading(d *feedData, lat, lon float64) (*airquality.Reading, error) {
	var aqi float64
	if err := json.Unmarshal(d.AQI, &aqi); err != nil {
		// The feed reports "-" for stations without a current value.
		return nil, airquality.ErrNoMeasurements
	}

	r := &airquality.Reading{
		StationName: d.City.Name,
		Lat:         lat,
		Lon:         lon,
		AQI:         aqi,
		FetchedAt:   time.Now(),
		Provider:    ProviderName,
	}
	if len(d.City.Geo) == 2 {
		r.Lat, r.Lon = d.City.Geo[0], d.City.Geo[1]
	}
	if pm25, ok := d.IAQI["pm25"]; ok {
		r.PM25 = airquality.PM25FromAQI(pm25.V)
	}
	if t, ok := d.IAQI["t"]; ok {
		v := t.V
		r.Temperature = &v
	}
	if h, ok := d.IAQI["h"]; ok {
		v := h.V
		r.Humidity = &v
	}
	if measured, err := time.Parse(time.RFC3339, d.Time.ISO); err == nil {
		r.MeasuredAt = measured
	}
	return r, nil
}

var _ airquality.Provider = (*Client)(nil)
