// Package airquality provides current air-quality readings per location,
// with caching and last-known fallbacks.
package airquality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dustguard/dustguard/internal/risk"
)

// Provider errors.
var (
	ErrNoMeasurements      = errors.New("no measurements available")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Reading is a normalized air-quality observation near a location.
type Reading struct {
	StationName string    `json:"stationName"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	PM25        float64   `json:"pm25"`
	AQI         float64   `json:"aqi"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	MeasuredAt  time.Time `json:"measuredAt"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Provider    string    `json:"provider"`
}

// Environmental converts the reading to the risk engine's input.
func (r *Reading) Environmental() risk.EnvironmentalReading {
	return risk.EnvironmentalReading{
		PM25:        r.PM25,
		AQI:         r.AQI,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
	}
}

// Age returns how long ago the reading was fetched.
func (r *Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// ValidateCoordinates checks that lat/lon are finite and in range.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// CellKey buckets a coordinate into a 0.1 degree grid cell (about 11 km).
func CellKey(lat, lon float64) string {
	return fmt.Sprintf("%.1f:%.1f", math.Round(lat*10)/10, math.Round(lon*10)/10)
}
