package ncio

import (
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"
)

var ErrBadForcing = errors.New("invalid forcing series")

// Forcing is an externally prescribed time series, read from a NetCDF
// file and interpolated linearly during a run.
type Forcing struct {
	Name   string
	Times  []float64
	Values []float64
}

// ReadForcing loads the series of valueVar over timeVar from a NetCDF
// file.
func ReadForcing(path, timeVar, valueVar string) (*Forcing, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open forcing file %s", path)
	}
	defer nc.Close()

	times, err := readFloats(nc, timeVar)
	if err != nil {
		return nil, err
	}
	values, err := readFloats(nc, valueVar)
	if err != nil {
		return nil, err
	}

	if len(times) == 0 {
		return nil, errors.Wrapf(ErrBadForcing, "%q is empty", timeVar)
	}
	if len(times) != len(values) {
		return nil, errors.Wrapf(ErrBadForcing,
			"%q has %d points but %q has %d", timeVar, len(times), valueVar, len(values))
	}
	if !sort.Float64sAreSorted(times) {
		return nil, errors.Wrapf(ErrBadForcing, "%q is not monotonic", timeVar)
	}

	return &Forcing{Name: valueVar, Times: times, Values: values}, nil
}

func readFloats(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, errors.Wrapf(err, "no variable %q in forcing file", name)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %q", name)
	}
	return toFloats(raw, name)
}

func toFloats(raw interface{}, name string) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrBadForcing, "%q holds unsupported type %T", name, raw)
}

// At returns the series value at model time t by linear interpolation,
// clamped to the first and last points.
func (f *Forcing) At(t float64) float64 {
	n := len(f.Times)
	if t <= f.Times[0] {
		return f.Values[0]
	}
	if t >= f.Times[n-1] {
		return f.Values[n-1]
	}

	i := sort.SearchFloat64s(f.Times, t)
	if f.Times[i] == t {
		return f.Values[i]
	}
	t0, t1 := f.Times[i-1], f.Times[i]
	v0, v1 := f.Values[i-1], f.Values[i]
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}
