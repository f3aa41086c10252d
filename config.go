package worldcore

import (
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("invalid run configuration")

type Integrator string

const (
	RK4   Integrator = "rk4"
	Euler Integrator = "euler"
)

const defaultDt = 0.1

// frame cache gets a small slice of physical RAM unless configured
const frameCacheMemFraction = 32

// Config holds the numerical parameters of one run.
type Config struct {
	T0 float64
	T1 float64
	Dt float64

	Integrator Integrator

	// RecordEvery is the model-time cadence of trajectory frames;
	// defaults to Dt.
	RecordEvery float64

	// SnapshotEvery is the model-time cadence of state snapshots;
	// zero disables snapshotting.
	SnapshotEvery float64

	Seed int64

	// FrameCacheBytes caps the in-RAM frame cache; defaults to a
	// fraction of total system memory.
	FrameCacheBytes uint64
}

func (cfg *Config) applyDefaults() error {
	if cfg.T1 <= cfg.T0 {
		return errors.Wrapf(ErrInvalidConfig, "t1 (%v) must be greater than t0 (%v)", cfg.T1, cfg.T0)
	}

	if cfg.Dt == 0 {
		cfg.Dt = defaultDt
	}
	if cfg.Dt < 0 {
		return errors.Wrapf(ErrInvalidConfig, "dt must be positive, got %v", cfg.Dt)
	}

	switch cfg.Integrator {
	case "":
		cfg.Integrator = RK4
	case RK4, Euler:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown integrator %q", cfg.Integrator)
	}

	if cfg.RecordEvery == 0 {
		cfg.RecordEvery = cfg.Dt
	}
	if cfg.RecordEvery < 0 {
		return errors.Wrapf(ErrInvalidConfig, "record cadence must be positive, got %v", cfg.RecordEvery)
	}

	if cfg.SnapshotEvery < 0 {
		return errors.Wrapf(ErrInvalidConfig, "snapshot cadence must not be negative, got %v", cfg.SnapshotEvery)
	}

	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	if cfg.FrameCacheBytes == 0 {
		cfg.FrameCacheBytes = memory.TotalMemory() / frameCacheMemFraction
	}

	return nil
}
