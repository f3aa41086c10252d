package ncio_test

import (
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoigt/worldcore"
	"github.com/avoigt/worldcore/internal/ncio"
)

func fixtureModel(t *testing.T) *worldcore.Model {
	t.Helper()

	temp := worldcore.NewVariable("surface air temperature", "global mean surface air temperature",
		worldcore.WithUnit(worldcore.Kelvin),
		worldcore.WithCF("air_temperature"),
	)
	stock := worldcore.NewVariable("stock", "resource stock of the cell")

	m, _, err := worldcore.Compose(&worldcore.Component{
		Name: "fixture",
		Declares: []worldcore.Decl{
			{On: worldcore.WorldKind, Code: "temperature", Var: temp},
			{On: worldcore.CellKind, Code: "stock", Var: stock},
		},
	})
	require.NoError(t, err)
	return m
}

func TestWriteTrajectory(t *testing.T) {
	m := fixtureModel(t)

	tr := &worldcore.Trajectory{
		RunID: "test-run",
		Codes: []string{"stock", "temperature"},
		Times: []float64{0, 1, 2},
		Series: map[string][][]float64{
			"temperature": {{287.0}, {287.5}, {288.0}},
			"stock":       {{50, 60}, {51, 59}, {52, 58}},
		},
	}

	path := filepath.Join(t.TempDir(), "out.nc")
	require.NoError(t, ncio.WriteTrajectory(path, m, tr, ncio.Meta{
		Title:       "fixture run",
		Institution: "testing",
	}))

	nc, err := netcdf.Open(path)
	require.NoError(t, err)
	defer nc.Close()

	attrs := nc.Attributes()
	conv, ok := attrs.Get("Conventions")
	require.True(t, ok)
	assert.Equal(t, "CF-1.8", conv)
	runID, ok := attrs.Get("run_id")
	require.True(t, ok)
	assert.Equal(t, "test-run", runID)

	times := readVar(t, nc, "time")
	assert.Equal(t, []float64{0, 1, 2}, times.([]float64))

	// single-instance series are flattened over time
	temps := readVar(t, nc, "temperature")
	assert.Equal(t, []float64{287.0, 287.5, 288.0}, temps.([]float64))

	tempGetter, err := nc.GetVarGetter("temperature")
	require.NoError(t, err)
	units, ok := tempGetter.Attributes().Get("units")
	require.True(t, ok)
	assert.Equal(t, "K", units)
	std, ok := tempGetter.Attributes().Get("standard_name")
	require.True(t, ok)
	assert.Equal(t, "air_temperature", std)

	// multi-instance series keep their instance dimension
	stocks := readVar(t, nc, "stock")
	assert.Equal(t, [][]float64{{50, 60}, {51, 59}, {52, 58}}, stocks.([][]float64))
}

func TestWriteTrajectory_Empty(t *testing.T) {
	m := fixtureModel(t)
	tr := &worldcore.Trajectory{RunID: "empty"}

	err := ncio.WriteTrajectory(filepath.Join(t.TempDir(), "out.nc"), m, tr, ncio.Meta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ncio.ErrEmptyTrajectory)
}

func readVar(t *testing.T, nc api.Group, name string) interface{} {
	t.Helper()
	vg, err := nc.GetVarGetter(name)
	require.NoError(t, err)
	vals, err := vg.Values()
	require.NoError(t, err)
	return vals
}

func writeForcingFile(t *testing.T, times, values []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forcing.nc")

	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, cw.AddVar("time", api.Variable{
		Values:     times,
		Dimensions: []string{"time"},
	}))
	require.NoError(t, cw.AddVar("tas", api.Variable{
		Values:     values,
		Dimensions: []string{"time"},
	}))
	require.NoError(t, cw.Close())
	return path
}

func TestReadForcing(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		path := writeForcingFile(t, []float64{2000, 2050, 2100}, []float64{287, 288, 290})

		f, err := ncio.ReadForcing(path, "time", "tas")
		require.NoError(t, err)

		assert.Equal(t, "tas", f.Name)
		assert.Equal(t, []float64{2000, 2050, 2100}, f.Times)
		assert.Equal(t, []float64{287, 288, 290}, f.Values)
	})

	t.Run("missing variable", func(t *testing.T) {
		path := writeForcingFile(t, []float64{0, 1}, []float64{1, 2})
		_, err := ncio.ReadForcing(path, "time", "pr")
		require.Error(t, err)
	})

	t.Run("unsorted times", func(t *testing.T) {
		path := writeForcingFile(t, []float64{1, 0}, []float64{1, 2})
		_, err := ncio.ReadForcing(path, "time", "tas")
		require.Error(t, err)
		assert.ErrorIs(t, err, ncio.ErrBadForcing)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ncio.ReadForcing(filepath.Join(t.TempDir(), "nope.nc"), "time", "tas")
		require.Error(t, err)
	})
}

func TestForcing_At(t *testing.T) {
	f := &ncio.Forcing{
		Name:   "tas",
		Times:  []float64{2000, 2050, 2100},
		Values: []float64{287, 288, 290},
	}

	assert.Equal(t, 287.0, f.At(1990)) // clamped left
	assert.Equal(t, 287.0, f.At(2000))
	assert.Equal(t, 287.5, f.At(2025))
	assert.Equal(t, 288.0, f.At(2050))
	assert.Equal(t, 289.0, f.At(2075))
	assert.Equal(t, 290.0, f.At(2100))
	assert.Equal(t, 290.0, f.At(2200)) // clamped right
}
