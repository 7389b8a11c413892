package airquality

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dustguard/dustguard/internal/airquality"

// providerMetrics holds metrics for provider fetches and the cell cache.
type providerMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHit        metric.Int64Counter
	cacheMiss       metric.Int64Counter
	fallback        metric.Int64Counter
}

func newProviderMetrics(mp metric.MeterProvider) (*providerMetrics, error) {
	meter := mp.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of air quality provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of air quality provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Readings served from a fresh cell cache entry"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Reading lookups that needed the provider"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	fallback, err := meter.Int64Counter(
		"provider.fallback",
		metric.WithDescription("Readings served from stale cache or the last-known store"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &providerMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHit:        cacheHit,
		cacheMiss:       cacheMiss,
		fallback:        fallback,
	}, nil
}

func (m *providerMetrics) recordRequest(ctx context.Context, provider string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("provider.name", provider)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	// Detached so a cancelled request still records.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *providerMetrics) recordCache(ctx context.Context, hit bool) {
	if hit {
		m.cacheHit.Add(ctx, 1)
		return
	}
	m.cacheMiss.Add(ctx, 1)
}

func (m *providerMetrics) recordFallback(ctx context.Context, source string) {
	m.fallback.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
