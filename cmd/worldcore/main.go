package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	wc "github.com/avoigt/worldcore"
	"github.com/avoigt/worldcore/components/base"
	"github.com/avoigt/worldcore/components/exodus"
	"github.com/avoigt/worldcore/components/simpleextraction"
	"github.com/avoigt/worldcore/internal/ncio"
	"github.com/avoigt/worldcore/internal/snapshot"
)

var (
	specPath = flag.String("spec", "run.yaml", "path to the YAML run spec")
	resume   = flag.Bool("resume", false, "resume from the last snapshot in the snapshot log")
)

// the components shippable from this binary
var componentRegistry = map[string]func() *wc.Component{
	base.ComponentName:             base.Component,
	simpleextraction.ComponentName: simpleextraction.Component,
	exodus.ComponentName:           exodus.Component,
}

func main() {
	flag.Parse()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(logger zerolog.Logger) error {
	rs, err := wc.LoadRunSpec(*specPath)
	if err != nil {
		return err
	}

	comps := make([]*wc.Component, 0, len(rs.Components))
	for _, name := range rs.Components {
		factory, ok := componentRegistry[name]
		if !ok {
			return fmt.Errorf("unknown component %q", name)
		}
		comps = append(comps, factory())
	}

	m, report, err := wc.Compose(comps...)
	if err != nil {
		return err
	}

	if rs.Forcing.Path != "" {
		forced, err := forcingComponent(m, rs)
		if err != nil {
			return err
		}
		m, report, err = wc.Compose(append(comps, forced)...)
		if err != nil {
			return err
		}
	}
	logger.Info().Str("report", report.String()).Msg("model composed")

	scenario, err := os.ReadFile(rs.Scenario)
	if err != nil {
		return fmt.Errorf("could not read scenario %s: %w", rs.Scenario, err)
	}
	u, err := wc.BuildUniverse(m, scenario)
	if err != nil {
		return err
	}
	logger.Info().
		Int("worlds", len(u.Worlds())).
		Int("social_systems", len(u.SocialSystems())).
		Int("cells", len(u.Cells())).
		Int("individuals", len(u.Individuals())).
		Msg("universe built")

	cfg := rs.Config()

	opts := []wc.RunOption{}

	var slog *snapshot.Log
	if rs.Snapshots.Path != "" {
		sOpts := []snapshot.Option{snapshot.WithKeep(rs.Snapshots.Keep)}
		if rs.Snapshots.Strategy == string(snapshot.Async) {
			sOpts = append(sOpts, snapshot.WithStrategy(snapshot.Async))
		}
		slog, err = snapshot.Open(rs.Snapshots.Path, sOpts...)
		if err != nil {
			return err
		}
		defer func() {
			if cErr := slog.Close(); cErr != nil {
				logger.Warn().Err(cErr).Msg("could not close snapshot log")
			}
		}()
		opts = append(opts, wc.WithSnapshotSink(slog))
	}

	start := time.Now()
	span := cfg.T1 - cfg.T0
	opts = append(opts, wc.WithOnFrame(func(f *wc.Frame) {
		percent := fmt.Sprintf("%.2f%%", 100*(f.T-cfg.T0)/span)
		logger.Info().
			Str("done", percent).
			Float64("t", f.T).
			Dur("in", time.Since(start).Round(time.Millisecond)).
			Msg("progress")
	}))

	runner, err := wc.NewRunner(m, u, cfg, opts...)
	if err != nil {
		return err
	}

	if *resume {
		if slog == nil {
			return fmt.Errorf("cannot resume without a snapshot log in the run spec")
		}
		dump, err := slog.Last()
		if err != nil {
			return err
		}
		if err := runner.ResumeFrom(dump); err != nil {
			return err
		}
		logger.Info().Float64("t", dump.T).Msg("resuming from snapshot")
	}

	logger.Info().Str("run_id", runner.RunID()).Msg("starting run")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traj, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info().
		Int("frames", traj.Len()).
		Dur("in", time.Since(start).Round(time.Millisecond)).
		Msg("run finished")

	if slog != nil {
		if err := slog.Compact(); err != nil {
			logger.Warn().Err(err).Msg("could not compact snapshot log")
		}
	}

	out := rs.Output
	if out == "" {
		out = "out.nc"
	}
	if err := ncio.WriteTrajectory(out, m, traj, ncio.Meta{Title: "worldcore run"}); err != nil {
		return err
	}
	logger.Info().Str("file", out).Msg("trajectory written")

	return nil
}

// forcingComponent turns an external NetCDF time series into an explicit
// process prescribing the target variable.
func forcingComponent(m *wc.Model, rs *wc.RunSpec) (*wc.Component, error) {
	timeVar := rs.Forcing.TimeVar
	if timeVar == "" {
		timeVar = "time"
	}
	f, err := ncio.ReadForcing(rs.Forcing.Path, timeVar, rs.Forcing.Var)
	if err != nil {
		return nil, err
	}

	target, ok := m.Variable(rs.Forcing.Target)
	if !ok {
		return nil, fmt.Errorf("forcing target %q is not a model variable", rs.Forcing.Target)
	}

	prescribe := wc.NewExplicit(
		"prescribe "+rs.Forcing.Target,
		target.Owner(),
		[]*wc.Variable{target},
		func(t float64, h wc.Holder) {
			_ = target.Set(h, f.At(t))
		},
	)

	return &wc.Component{
		Name:      "forcing",
		Desc:      "externally prescribed series for " + rs.Forcing.Target,
		Processes: []wc.Process{prescribe},
	}, nil
}
