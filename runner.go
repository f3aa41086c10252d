package worldcore

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	btr "github.com/tidwall/btree"

	"github.com/avoigt/worldcore/internal/framecache"
)

var ErrRunAborted = errors.New("run aborted")
var ErrStateInvalid = errors.New("state became invalid")

const timeEps = 1e-9

const frameCacheShards = 8

// SnapshotSink receives full state dumps during a run, typically an
// append-only snapshot log.
type SnapshotSink interface {
	Append(d *StateDump) error
}

type stateEntry struct {
	v *Variable
	h Holder
}

// firing is one pending discrete occurrence, ordered by time then by
// insertion sequence for stable ties.
type firing struct {
	at   float64
	seq  uint64
	step *Step
	ev   *Event
	h    Holder
}

func byFiringTime(a, b interface{}) bool {
	fa, fb := a.(*firing), b.(*firing)
	if fa.at != fb.at {
		return fa.at < fb.at
	}
	return fa.seq < fb.seq
}

// Runner advances a composed model over a universe from T0 to T1.
type Runner struct {
	m   *Model
	u   *Universe
	cfg Config

	runID string
	rng   *rand.Rand

	schedule  *btr.BTree
	firingSeq uint64

	entries []stateEntry

	frames   *framecache.Cache
	frameSeq uint64
	traj     *Trajectory

	sink    SnapshotSink
	onFrame func(f *Frame)
}

type RunOption func(r *Runner)

func WithRunID(id string) RunOption {
	return func(r *Runner) { r.runID = id }
}

// WithOnFrame registers a callback invoked after every recorded frame,
// e.g. for progress reporting.
func WithOnFrame(fn func(f *Frame)) RunOption {
	return func(r *Runner) { r.onFrame = fn }
}

// WithSnapshotSink directs periodic state dumps into the given sink;
// Config.SnapshotEvery controls the cadence.
func WithSnapshotSink(sink SnapshotSink) RunOption {
	return func(r *Runner) { r.sink = sink }
}

func NewRunner(m *Model, u *Universe, cfg Config, opts ...RunOption) (*Runner, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	r := &Runner{
		m:        m,
		u:        u,
		cfg:      cfg,
		runID:    uuid.NewString(),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		schedule: btr.NewNonConcurrent(byFiringTime),
	}
	for _, opt := range opts {
		opt(r)
	}

	frames, err := framecache.NewCache(frameCacheShards, cfg.FrameCacheBytes, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not create frame cache")
	}
	r.frames = frames

	r.buildStatePool()

	return r, nil
}

func (r *Runner) RunID() string { return r.runID }

// buildStatePool flattens all ODE target variables over their instances
// into the continuous state vector layout.
func (r *Runner) buildStatePool() {
	seen := make(map[*Variable]bool)
	for _, ode := range r.m.odes {
		for _, v := range ode.Targets() {
			if seen[v] {
				continue
			}
			seen[v] = true
			for _, h := range r.u.holders(v.Owner()) {
				r.entries = append(r.entries, stateEntry{v: v, h: h})
			}
		}
	}
}

// ResumeFrom restores the universe from a dump and continues model time
// where the dump left off.
func (r *Runner) ResumeFrom(d *StateDump) error {
	if err := r.u.Restore(d); err != nil {
		return err
	}
	if d.T >= r.cfg.T1 {
		return errors.Wrapf(ErrInvalidConfig, "dump time %v is past t1 %v", d.T, r.cfg.T1)
	}
	if d.T > r.cfg.T0 {
		r.cfg.T0 = d.T
	}
	return nil
}

// Run integrates from T0 to T1 and returns the recorded trajectory. The
// context aborts the run between steps.
func (r *Runner) Run(ctx context.Context) (*Trajectory, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}

	t := r.cfg.T0
	r.traj = newTrajectory(r.runID, r.recordedCodes())

	r.runExplicits(t)
	if err := r.validate(t); err != nil {
		return nil, err
	}
	if err := r.record(t); err != nil {
		return nil, err
	}

	nextRecord := t + r.cfg.RecordEvery
	nextSnap := math.Inf(1)
	if r.sink != nil && r.cfg.SnapshotEvery > 0 {
		if err := r.snapshot(t); err != nil {
			return nil, err
		}
		nextSnap = t + r.cfg.SnapshotEvery
	}

	r.initSchedule(t)

	for t < r.cfg.T1-timeEps {
		select {
		case <-ctx.Done():
			return r.traj, errors.Wrap(ErrRunAborted, ctx.Err().Error())
		default:
		}

		tStop := t + r.cfg.Dt
		if nf, ok := r.nextFiringTime(); ok && nf < tStop {
			tStop = nf
		}
		if nextRecord < tStop {
			tStop = nextRecord
		}
		if nextSnap < tStop {
			tStop = nextSnap
		}
		if r.cfg.T1 < tStop {
			tStop = r.cfg.T1
		}

		if len(r.entries) > 0 && tStop > t {
			r.integrate(t, tStop)
		}
		t = tStop

		r.runExplicits(t)
		if r.fireDue(t) {
			r.runExplicits(t)
		}

		if err := r.validate(t); err != nil {
			return nil, err
		}

		if t >= nextRecord-timeEps {
			if err := r.record(t); err != nil {
				return nil, err
			}
			for nextRecord <= t+timeEps {
				nextRecord += r.cfg.RecordEvery
			}
		}
		if t >= nextSnap-timeEps {
			if err := r.snapshot(t); err != nil {
				return nil, err
			}
			nextSnap += r.cfg.SnapshotEvery
		}
	}

	if n := len(r.traj.Times); n == 0 || r.traj.Times[n-1] < t-timeEps {
		if err := r.record(t); err != nil {
			return nil, err
		}
	}

	return r.traj, nil
}

// prepare applies defaults to all unset variable values.
func (r *Runner) prepare() error {
	for _, v := range r.m.Variables() {
		def, ok := v.Default()
		if !ok {
			continue
		}
		for _, h := range r.u.holders(v.Owner()) {
			if _, set := v.Get(h); set {
				continue
			}
			if err := v.Set(h, def); err != nil {
				return errors.Wrapf(err, "applying default on %s", v.Owner())
			}
		}
	}
	return nil
}

func (r *Runner) recordedCodes() []string {
	vars := r.m.RecordedVariables()
	codes := make([]string, len(vars))
	for i, v := range vars {
		codes[i] = v.Code()
	}
	return codes
}

// schedule management

func (r *Runner) push(f *firing) {
	r.firingSeq++
	f.seq = r.firingSeq
	r.schedule.Set(f)
}

func (r *Runner) initSchedule(t float64) {
	for _, st := range r.m.steps {
		for _, h := range r.u.holders(st.On()) {
			r.pushStep(st, h, t)
		}
	}
	for _, ev := range r.m.events {
		for _, h := range r.u.holders(ev.On()) {
			r.pushEvent(ev, h, t)
		}
	}
}

func (r *Runner) pushStep(st *Step, h Holder, t float64) {
	at := st.Timing(t)
	if at <= t+timeEps || math.IsInf(at, 1) || math.IsNaN(at) {
		return
	}
	r.push(&firing{at: at, step: st, h: h})
}

func (r *Runner) pushEvent(ev *Event, h Holder, t float64) {
	var at float64
	if ev.Timing != nil {
		at = ev.Timing(t)
	} else {
		if ev.Rate <= 0 {
			return
		}
		at = t + r.rng.ExpFloat64()/ev.Rate
	}
	if at <= t+timeEps || math.IsInf(at, 1) || math.IsNaN(at) {
		return
	}
	r.push(&firing{at: at, ev: ev, h: h})
}

func (r *Runner) nextFiringTime() (float64, bool) {
	var f *firing
	r.schedule.Ascend(nil, func(i interface{}) bool {
		f = i.(*firing)
		return false
	})
	if f == nil {
		return 0, false
	}
	return f.at, true
}

// fireDue executes every scheduled firing due at time t and reschedules
// the fired processes. It reports whether anything fired.
func (r *Runner) fireDue(t float64) bool {
	var due []*firing
	r.schedule.Ascend(nil, func(i interface{}) bool {
		f := i.(*firing)
		if f.at > t+timeEps {
			return false
		}
		due = append(due, f)
		return true
	})

	for _, f := range due {
		r.schedule.Delete(f)
	}

	for _, f := range due {
		switch {
		case f.step != nil:
			f.step.Do(t, f.h)
			r.pushStep(f.step, f.h, t)
		case f.ev != nil:
			f.ev.Do(t, f.h, r.rng)
			r.pushEvent(f.ev, f.h, t)
		}
	}

	return len(due) > 0
}

// continuous pool

func (r *Runner) gather() []float64 {
	y := make([]float64, len(r.entries))
	for i, e := range r.entries {
		y[i] = e.v.Float(e.h)
	}
	return y
}

func (r *Runner) scatter(y []float64) {
	for i, e := range r.entries {
		e.h.slotRef().put(e.v.Code(), y[i])
	}
}

// deriv evaluates the coupled right-hand side at (t, y). Explicit
// processes run first so aggregates are consistent with y.
func (r *Runner) deriv(t float64, y []float64) []float64 {
	r.scatter(y)
	r.runExplicits(t)

	for _, e := range r.entries {
		e.h.slotRef().clearDerivs()
	}
	for _, ode := range r.m.odes {
		for _, h := range r.u.holders(ode.On()) {
			ode.RHS(t, h)
		}
	}

	dy := make([]float64, len(r.entries))
	for i, e := range r.entries {
		dy[i] = e.v.Deriv(e.h)
	}
	return dy
}

func (r *Runner) integrate(t0, t1 float64) {
	h := t1 - t0
	y := r.gather()

	var ynew []float64
	switch r.cfg.Integrator {
	case Euler:
		k1 := r.deriv(t0, y)
		ynew = axpy(y, k1, h)
	default: // RK4
		k1 := r.deriv(t0, y)
		k2 := r.deriv(t0+h/2, axpy(y, k1, h/2))
		k3 := r.deriv(t0+h/2, axpy(y, k2, h/2))
		k4 := r.deriv(t1, axpy(y, k3, h))
		ynew = make([]float64, len(y))
		for i := range y {
			ynew[i] = y[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
		}
	}

	r.scatter(ynew)
}

func axpy(y, dy []float64, h float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] + h*dy[i]
	}
	return out
}

func (r *Runner) runExplicits(t float64) {
	for _, ex := range r.m.explicits {
		for _, h := range r.u.holders(ex.On()) {
			ex.Update(t, h)
		}
	}
}

// validate checks all continuous state entries against their variable
// constraints after an accepted step.
func (r *Runner) validate(t float64) error {
	for _, e := range r.entries {
		val, ok := e.v.Get(e.h)
		if !ok {
			continue
		}
		if err := e.v.Validate(val); err != nil {
			return errors.Wrapf(ErrStateInvalid, "t=%v on %s: %s", t, e.h.entityKind(), err)
		}
	}
	return nil
}

// recording

func (r *Runner) record(t float64) error {
	r.frameSeq++
	f := &Frame{Seq: r.frameSeq, T: t, Values: make(map[string][]float64)}

	for _, v := range r.m.RecordedVariables() {
		hs := r.u.holders(v.Owner())
		vals := make([]float64, len(hs))
		for i, h := range hs {
			raw, ok := v.Get(h)
			if !ok {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = raw.(float64)
		}
		f.Values[v.Code()] = vals
	}

	r.traj.append(f)

	bs, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "could not encode frame")
	}
	r.frames.Add(f.Seq, bs)

	if r.onFrame != nil {
		r.onFrame(f)
	}

	return nil
}

// Frame returns a recently recorded frame from the in-RAM cache; evicted
// frames are only available through the trajectory.
func (r *Runner) Frame(seq uint64) (*Frame, bool) {
	bs, ok := r.frames.Get(seq)
	if !ok {
		return nil, false
	}
	var f Frame
	if err := json.Unmarshal(bs, &f); err != nil {
		return nil, false
	}
	return &f, true
}

// CachedFrames returns the sequence numbers currently held by the frame
// cache.
func (r *Runner) CachedFrames() []uint64 {
	return r.frames.Keys()
}

func (r *Runner) snapshot(t float64) error {
	if r.sink == nil {
		return nil
	}
	d := r.u.Capture(t, r.frameSeq)
	if err := r.sink.Append(d); err != nil {
		return errors.Wrap(err, "could not append snapshot")
	}
	return nil
}
