package airquality_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/airquality"
)

type namedProvider struct {
	mockProvider
	name string
}

func (n *namedProvider) Name() string { return n.name }

func TestChain_FirstSuccessWins(t *testing.T) {
	primary := &namedProvider{mockProvider: mockProvider{reading: testReading()}, name: "primary"}
	secondary := &namedProvider{mockProvider: mockProvider{reading: testReading()}, name: "secondary"}
	chain := airquality.NewChain(zerolog.Nop(), primary, secondary)

	r, err := chain.FetchReading(context.Background(), 24.7, 46.7)
	require.NoError(t, err)
	assert.Equal(t, "primary", r.Provider)
	assert.Equal(t, int32(0), secondary.fetchCount.Load())
	assert.Equal(t, "primary,secondary", chain.Name())
}

func TestChain_FallsThrough(t *testing.T) {
	primary := &namedProvider{mockProvider: mockProvider{err: airquality.ErrNoMeasurements}, name: "primary"}
	secondary := &namedProvider{mockProvider: mockProvider{reading: testReading()}, name: "secondary"}
	chain := airquality.NewChain(zerolog.Nop(), primary, secondary)

	r, err := chain.FetchReading(context.Background(), 24.7, 46.7)
	require.NoError(t, err)
	assert.Equal(t, "secondary", r.Provider)
}

func TestChain_AllFail(t *testing.T) {
	boom := errors.New("boom")
	chain := airquality.NewChain(zerolog.Nop(),
		&namedProvider{mockProvider: mockProvider{err: airquality.ErrNoMeasurements}, name: "a"},
		&namedProvider{mockProvider: mockProvider{err: boom}, name: "b"},
	)

	_, err := chain.FetchReading(context.Background(), 24.7, 46.7)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, airquality.ErrNoMeasurements)
}

func TestChain_NoDataAnywhere(t *testing.T) {
	chain := airquality.NewChain(zerolog.Nop(),
		&namedProvider{mockProvider: mockProvider{err: airquality.ErrNoMeasurements}, name: "a"},
		&namedProvider{mockProvider: mockProvider{err: airquality.ErrNoMeasurements}, name: "b"},
	)

	_, err := chain.FetchReading(context.Background(), 24.7, 46.7)
	assert.Equal(t, airquality.ErrNoMeasurements, err)
}

func TestChain_Empty(t *testing.T) {
	_, err := airquality.NewChain(zerolog.Nop()).FetchReading(context.Background(), 0, 0)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
}
