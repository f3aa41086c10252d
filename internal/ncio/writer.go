// Package ncio exchanges run data in classic NetCDF format following the
// CF conventions: trajectories go out with one series per recorded model
// variable, forcing series come in for interpolation during a run.
package ncio

import (
	"fmt"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/pkg/errors"

	"github.com/avoigt/worldcore"
)

var ErrEmptyTrajectory = errors.New("trajectory has no frames")

const conventions = "CF-1.8"

// Meta carries the global attributes of an output file.
type Meta struct {
	Title       string
	Institution string
}

// WriteTrajectory writes a recorded trajectory as a classic NetCDF file.
// Every recorded variable becomes a NetCDF variable over the time
// dimension, with one extra instance dimension when the entity kind has
// more than one instance. CF attributes are taken from the variable
// metadata.
func WriteTrajectory(path string, m *worldcore.Model, tr *worldcore.Trajectory, meta Meta) error {
	if tr.Len() == 0 {
		return ErrEmptyTrajectory
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return errors.Wrapf(err, "could not create NetCDF file %s", path)
	}

	global, err := util.NewOrderedMap(
		[]string{"Conventions", "title", "institution", "run_id", "history"},
		map[string]interface{}{
			"Conventions": conventions,
			"title":       meta.Title,
			"institution": meta.Institution,
			"run_id":      tr.RunID,
			"history":     fmt.Sprintf("%s: worldcore run", time.Now().UTC().Format(time.RFC3339)),
		})
	if err != nil {
		return errors.Wrap(err, "could not build global attributes")
	}
	cw.AddGlobalAttrs(global)

	timeAttrs, err := util.NewOrderedMap(
		[]string{"long_name", "units"},
		map[string]interface{}{
			"long_name": "model time",
			"units":     "model years",
		})
	if err != nil {
		return errors.Wrap(err, "could not build time attributes")
	}
	if err := cw.AddVar("time", api.Variable{
		Values:     tr.Times,
		Dimensions: []string{"time"},
		Attributes: timeAttrs,
	}); err != nil {
		return errors.Wrap(err, "could not write time variable")
	}

	for _, code := range tr.Codes {
		v, ok := m.Variable(code)
		if !ok {
			return errors.Errorf("trajectory series %q has no model variable", code)
		}

		attrs, err := varAttrs(v)
		if err != nil {
			return errors.Wrapf(err, "could not build attributes of %q", code)
		}

		series := tr.Series[code]
		nc := api.Variable{Attributes: attrs}
		if len(series) > 0 && len(series[0]) == 1 {
			flat := make([]float64, len(series))
			for i, row := range series {
				flat[i] = row[0]
			}
			nc.Values = flat
			nc.Dimensions = []string{"time"}
		} else {
			nc.Values = series
			nc.Dimensions = []string{"time", code + "_id"}
		}

		if err := cw.AddVar(code, nc); err != nil {
			return errors.Wrapf(err, "could not write variable %q", code)
		}
	}

	if err := cw.Close(); err != nil {
		return errors.Wrapf(err, "could not finalize NetCDF file %s", path)
	}
	return nil
}

func varAttrs(v *worldcore.Variable) (api.AttributeMap, error) {
	keys := []string{"long_name"}
	vals := map[string]interface{}{"long_name": v.Desc()}

	if u, ok := v.Unit(); ok {
		keys = append(keys, "units")
		vals["units"] = u.Symbol()
	}
	if v.CF() != "" {
		keys = append(keys, "standard_name")
		vals["standard_name"] = v.CF()
	}

	return util.NewOrderedMap(keys, vals)
}
