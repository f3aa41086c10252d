package worldcore

import "math/rand"

// Process is one of the four process kinds a model component can
// contribute: ODE, Explicit, Step or Event. Every process declares the
// variables it writes; composition uses the declaration for pooling and
// collision checks.
type Process interface {
	ProcessName() string
	On() EntityKind
	Targets() []*Variable
}

type processMeta struct {
	name    string
	on      EntityKind
	targets []*Variable
}

func (p processMeta) ProcessName() string  { return p.name }
func (p processMeta) On() EntityKind       { return p.on }
func (p processMeta) Targets() []*Variable { return p.targets }

// ODE contributes time-derivative terms for its target variables. The
// right-hand side is evaluated once per instance and accumulates terms via
// Variable.AddDeriv.
type ODE struct {
	processMeta
	RHS func(t float64, h Holder)
}

func NewODE(name string, on EntityKind, targets []*Variable, rhs func(t float64, h Holder)) *ODE {
	return &ODE{
		processMeta: processMeta{name: name, on: on, targets: targets},
		RHS:         rhs,
	}
}

// Explicit recomputes derived variables from the current state. Explicit
// processes run after every accepted integration step, in declaration
// order.
type Explicit struct {
	processMeta
	Update func(t float64, h Holder)
}

func NewExplicit(name string, on EntityKind, targets []*Variable, update func(t float64, h Holder)) *Explicit {
	return &Explicit{
		processMeta: processMeta{name: name, on: on, targets: targets},
		Update:      update,
	}
}

// Step is a discrete update with a deterministic timing function: after
// firing at t, the next firing is at Timing(t).
type Step struct {
	processMeta
	Timing func(t float64) float64
	Do     func(t float64, h Holder)
}

func NewStep(name string, on EntityKind, targets []*Variable,
	timing func(t float64) float64, do func(t float64, h Holder)) *Step {
	return &Step{
		processMeta: processMeta{name: name, on: on, targets: targets},
		Timing:      timing,
		Do:          do,
	}
}

// Event fires either stochastically with exponential waiting times at a
// fixed rate, or at explicit times given by a timing function.
type Event struct {
	processMeta
	Rate   float64
	Timing func(t float64) float64
	Do     func(t float64, h Holder, rng *rand.Rand)
}

// NewRateEvent declares an event with exponentially distributed waiting
// times of the given rate (per unit model time).
func NewRateEvent(name string, on EntityKind, targets []*Variable,
	rate float64, do func(t float64, h Holder, rng *rand.Rand)) *Event {
	return &Event{
		processMeta: processMeta{name: name, on: on, targets: targets},
		Rate:        rate,
		Do:          do,
	}
}

// NewTimedEvent declares an event firing at the times produced by the
// timing function.
func NewTimedEvent(name string, on EntityKind, targets []*Variable,
	timing func(t float64) float64, do func(t float64, h Holder, rng *rand.Rand)) *Event {
	return &Event{
		processMeta: processMeta{name: name, on: on, targets: targets},
		Timing:      timing,
		Do:          do,
	}
}
