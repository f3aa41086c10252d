package simpleextraction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wc "github.com/avoigt/worldcore"
	"github.com/avoigt/worldcore/components/base"
	"github.com/avoigt/worldcore/components/simpleextraction"
)

func compose(t *testing.T) *wc.Model {
	t.Helper()
	m, _, err := wc.Compose(base.Component(), simpleextraction.Component())
	require.NoError(t, err)
	return m
}

func TestStock_LogisticRegrowth(t *testing.T) {
	m := compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)

	// nobody harvests, so the stock saturates at the carrying capacity
	r, err := wc.NewRunner(m, u, wc.Config{T0: 0, T1: 100, Dt: 0.25, RecordEvery: 10})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 100.0, simpleextraction.Stock.Float(c), 1e-4)
}

func TestStock_HarvestedEquilibrium(t *testing.T) {
	m := compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)
	extractor := u.NewIndividual(c)
	u.NewIndividual(c) // abstainer

	require.NoError(t, simpleextraction.Strategy.Set(extractor, 1))
	require.NoError(t, simpleextraction.ExtractionRate.Set(extractor, 0.05))

	// ds/dt = r s (1 - s/K) - e s settles at s* = K (1 - e/r) = 75
	r, err := wc.NewRunner(m, u, wc.Config{T0: 0, T1: 200, Dt: 0.25, RecordEvery: 20})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 75.0, simpleextraction.Stock.Float(c), 1e-3)
	assert.InDelta(t, 0.05*75.0, simpleextraction.HarvestIncome.Float(extractor), 1e-3)
}

func TestHarvestIncome(t *testing.T) {
	m := compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)
	extractor := u.NewIndividual(c)
	abstainer := u.NewIndividual(c)

	require.NoError(t, simpleextraction.Strategy.Set(extractor, 1))

	r, err := wc.NewRunner(m, u, wc.Config{T0: 0, T1: 0.5, Dt: 0.25})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.Greater(t, simpleextraction.HarvestIncome.Float(extractor), 0.0)
	assert.Equal(t, 0.0, simpleextraction.HarvestIncome.Float(abstainer))
}

func TestStrategy_Levels(t *testing.T) {
	compose(t)

	u := wc.NewUniverse()
	w := u.NewWorld()
	c := u.NewCell(w, nil)
	ind := u.NewIndividual(c)

	require.NoError(t, simpleextraction.Strategy.Set(ind, 1))
	assert.Error(t, simpleextraction.Strategy.Set(ind, 2))

	got, ok := simpleextraction.Strategy.Get(ind)
	require.True(t, ok)
	assert.Equal(t, int64(1), got)
}
