package worldcore_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wc "github.com/avoigt/worldcore"
)

func TestUnit_Convert(t *testing.T) {
	t.Run("kilometers to meters", func(t *testing.T) {
		m, err := wc.Kilometers.Convert(2.5, wc.Meters)
		require.NoError(t, err)
		assert.Equal(t, 2500.0, m)
	})

	t.Run("years to seconds", func(t *testing.T) {
		s, err := wc.Years.Convert(1, wc.Seconds)
		require.NoError(t, err)
		assert.Equal(t, 31557600.0, s)
	})

	t.Run("gigatonnes carbon to tonnes", func(t *testing.T) {
		gt, err := wc.Tonnes.Convert(1e9, wc.GigatonnesCarbon)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, gt, 1e-12)
	})

	t.Run("incommensurable units error", func(t *testing.T) {
		_, err := wc.Meters.Convert(1, wc.Seconds)
		require.Error(t, err)
		assert.True(t, errors.Is(err, wc.ErrIncommensurable))
	})
}

func TestUnit_Arithmetic(t *testing.T) {
	t.Run("product of units is commensurable with the composite", func(t *testing.T) {
		kmPerYr := wc.Kilometers.Per(wc.Years)
		mPerS := wc.Meters.Per(wc.Seconds)
		require.True(t, kmPerYr.Commensurable(mPerS))

		v, err := kmPerYr.Convert(31557.6, mPerS)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, v, 1e-9)
	})

	t.Run("power", func(t *testing.T) {
		km2 := wc.Kilometers.Pow(2)
		m2 := wc.Meters.Times(wc.Meters)
		require.True(t, km2.Commensurable(m2))

		v, err := km2.Convert(1, m2)
		require.NoError(t, err)
		assert.Equal(t, 1e6, v)
	})

	t.Run("division cancels dimensions", func(t *testing.T) {
		ratio := wc.Kilometers.Per(wc.Meters)
		assert.True(t, ratio.Commensurable(wc.Dimensionless))
	})
}

func TestDimensionalQuantity(t *testing.T) {
	q := wc.DQ(3, wc.Kilometers)
	assert.Equal(t, 3.0, q.Value())
	assert.Equal(t, "km", q.Unit().Symbol())

	m, err := q.In(wc.Meters)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, m)

	_, err = q.In(wc.Kelvin)
	require.Error(t, err)

	assert.Equal(t, "3 km", q.String())
}
