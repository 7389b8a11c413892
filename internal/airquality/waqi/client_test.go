package waqi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/airquality/waqi"
)

func newTestClient(t *testing.T, status int, body string) *waqi.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feed/geo:24.7136;46.6753/", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return waqi.NewClient(waqi.ClientConfig{
		BaseURL:    server.URL,
		Token:      "secret",
		HTTPClient: http.DefaultClient,
	})
}

func TestClient_FetchReading(t *testing.T) {
	client := newTestClient(t, http.StatusOK, `{
		"status": "ok",
		"data": {
			"aqi": 153,
			"city": {"name": "Riyadh, Saudi Arabia", "geo": [24.7, 46.7]},
			"iaqi": {"pm25": {"v": 153}, "t": {"v": 39.5}, "h": {"v": 12}},
			"time": {"iso": "2026-05-04T14:00:00+03:00"}
		}
	}`)

	r, err := client.FetchReading(context.Background(), 24.7136, 46.6753)
	require.NoError(t, err)

	assert.Equal(t, "Riyadh, Saudi Arabia", r.StationName)
	assert.Equal(t, 153.0, r.AQI)
	assert.InDelta(t, 59.37, r.PM25, 0.01)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, 39.5, *r.Temperature)
	require.NotNil(t, r.Humidity)
	assert.Equal(t, 12.0, *r.Humidity)
	assert.Equal(t, 24.7, r.Lat)
	assert.Equal(t, "waqi", r.Provider)
	assert.Equal(t, 2026, r.MeasuredAt.Year())
	assert.False(t, r.FetchedAt.IsZero())
}

func TestClient_FetchReading_NoCurrentValue(t *testing.T) {
	client := newTestClient(t, http.StatusOK, `{"status":"ok","data":{"aqi":"-","iaqi":{}}}`)

	_, err := client.FetchReading(context.Background(), 24.7136, 46.6753)
	assert.ErrorIs(t, err, airquality.ErrNoMeasurements)
}

func TestClient_FetchReading_APIError(t *testing.T) {
	client := newTestClient(t, http.StatusOK, `{"status":"error","data":"Invalid key"}`)

	_, err := client.FetchReading(context.Background(), 24.7136, 46.6753)
	require.Error(t, err)
	assert.ErrorIs(t, err, waqi.ErrAPI)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestClient_FetchReading_HTTPError(t *testing.T) {
	client := newTestClient(t, http.StatusBadGateway, `oops`)

	_, err := client.FetchReading(context.Background(), 24.7136, 46.6753)
	assert.Error(t, err)
}
