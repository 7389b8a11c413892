package airquality

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Chain asks its providers in order and returns the first reading.
type Chain struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewChain creates a provider that falls through providers in order.
func NewChain(logger zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Name joins the provider names.
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// FetchReading returns the first provider's reading that succeeds. When all
// fail the errors are joined; errors.Is finds ErrNoMeasurements only when
// every provider reported it.
func (c *Chain) FetchReading(ctx context.Context, lat, lon float64) (*Reading, error) {
	if len(c.providers) == 0 {
		return nil, ErrProviderUnavailable
	}

	errs := make([]error, 0, len(c.providers))
	noData := true
	for _, p := range c.providers {
		reading, err := p.FetchReading(ctx, lat, lon)
		if err == nil {
			if reading.Provider == "" {
				reading.Provider = p.Name()
			}
			return reading, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Err(err).Str("provider", p.Name()).Msg("provider failed, trying next")
		errs = append(errs, err)
		noData = noData && errors.Is(err, ErrNoMeasurements)
	}

	if noData {
		return nil, ErrNoMeasurements
	}
	return nil, errors.Join(errs...)
}

var _ Provider = (*Chain)(nil)
