package worldcore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	btr "github.com/tidwall/btree"
)

var ErrCodenameTaken = errors.New("codename already in use by another variable")
var ErrVariableRebound = errors.New("variable already registered under another codename")
var ErrMissingRequirement = errors.New("required model component is missing")
var ErrUnknownVariable = errors.New("variable is not registered in the model")
var ErrConflictingWriters = errors.New("variable written by both ODE and explicit processes")

// Decl attaches a variable to an entity kind under a codename. Codenames
// are the keys of scenario files and the variable names of NetCDF output.
type Decl struct {
	On   EntityKind
	Code string
	Var  *Variable
}

// Component is a reusable building block of a model: a named bundle of
// variable declarations and processes, possibly requiring other components.
type Component struct {
	Name      string
	Desc      string
	Requires  []string
	Declares  []Decl
	Processes []Process
}

type regEntry struct {
	code string
	on   EntityKind
	v    *Variable
}

func byCodename(a, b interface{}) bool {
	return a.(*regEntry).code < b.(*regEntry).code
}

// Model is the result of composing components: an ordered variable
// registry plus the process pools the runner executes.
type Model struct {
	components []*Component
	registry   *btr.BTree
	byCode     map[string]*regEntry

	odes      []*ODE
	explicits []*Explicit
	steps     []*Step
	events    []*Event
}

// Report summarizes what a composition collected, for the caller to log.
type Report struct {
	Components []string
	Variables  int
	ODEs       int
	Explicits  int
	Steps      int
	Events     int
}

func (r Report) String() string {
	return fmt.Sprintf("components=[%s] variables=%d odes=%d explicits=%d steps=%d events=%d",
		strings.Join(r.Components, ","), r.Variables, r.ODEs, r.Explicits, r.Steps, r.Events)
}

// Compose analyses the given components and collects their variables and
// processes into a runnable model. It enforces that a codename maps to
// exactly one variable, that a variable holds exactly one codename, and
// that every required component is present.
func Compose(components ...*Component) (*Model, *Report, error) {
	m := &Model{
		components: components,
		registry:   btr.NewNonConcurrent(byCodename),
		byCode:     make(map[string]*regEntry),
	}

	present := make(map[string]bool, len(components))
	for _, c := range components {
		present[c.Name] = true
	}
	for _, c := range components {
		for _, req := range c.Requires {
			if !present[req] {
				return nil, nil, errors.Wrapf(ErrMissingRequirement,
					"component %q requires %q", c.Name, req)
			}
		}
	}

	for _, c := range components {
		for _, d := range c.Declares {
			if prev, ok := m.byCode[d.Code]; ok {
				// registered by another component already; must be the
				// very same variable on the same kind
				if prev.v != d.Var {
					return nil, nil, errors.Wrapf(ErrCodenameTaken,
						"component %q declares %q", c.Name, d.Code)
				}
				if prev.on != d.On {
					return nil, nil, errors.Wrapf(ErrCodenameTaken,
						"component %q declares %q on %s, already on %s",
						c.Name, d.Code, d.On, prev.on)
				}
				continue
			}
			if d.Var.Code() != "" && d.Var.Code() != d.Code {
				return nil, nil, errors.Wrapf(ErrVariableRebound,
					"component %q declares %q as %q", c.Name, d.Var.Name(), d.Code)
			}
			if err := d.Var.bind(d.Code, d.On); err != nil {
				return nil, nil, err
			}
			ent := &regEntry{code: d.Code, on: d.On, v: d.Var}
			m.byCode[d.Code] = ent
			m.registry.Set(ent)
		}
	}

	odeTargets := make(map[*Variable]string)
	for _, c := range components {
		for _, p := range c.Processes {
			for _, v := range p.Targets() {
				if v.Code() == "" {
					return nil, nil, errors.Wrapf(ErrUnknownVariable,
						"process %q targets undeclared variable %q", p.ProcessName(), v.Name())
				}
			}
			switch typed := p.(type) {
			case *ODE:
				for _, v := range typed.Targets() {
					odeTargets[v] = typed.ProcessName()
				}
				m.odes = append(m.odes, typed)
			case *Explicit:
				m.explicits = append(m.explicits, typed)
			case *Step:
				m.steps = append(m.steps, typed)
			case *Event:
				m.events = append(m.events, typed)
			}
		}
	}

	for _, ex := range m.explicits {
		for _, v := range ex.Targets() {
			if ode, ok := odeTargets[v]; ok {
				return nil, nil, errors.Wrapf(ErrConflictingWriters,
					"%q is written by ODE %q and explicit %q", v.Code(), ode, ex.ProcessName())
			}
		}
	}

	rep := &Report{
		Variables: len(m.byCode),
		ODEs:      len(m.odes),
		Explicits: len(m.explicits),
		Steps:     len(m.steps),
		Events:    len(m.events),
	}
	for _, c := range components {
		rep.Components = append(rep.Components, c.Name)
	}

	return m, rep, nil
}

func (m *Model) Components() []*Component { return m.components }

// Variable looks a variable up by codename.
func (m *Model) Variable(code string) (*Variable, bool) {
	ent, ok := m.byCode[code]
	if !ok {
		return nil, false
	}
	return ent.v, true
}

// Variables returns all registered variables in codename order.
func (m *Model) Variables() []*Variable {
	out := make([]*Variable, 0, m.registry.Len())
	m.registry.Ascend(nil, func(i interface{}) bool {
		out = append(out, i.(*regEntry).v)
		return true
	})
	return out
}

// RecordedVariables returns the float-valued variables in codename order;
// these make up trajectory frames and NetCDF output.
func (m *Model) RecordedVariables() []*Variable {
	out := make([]*Variable, 0, m.registry.Len())
	m.registry.Ascend(nil, func(i interface{}) bool {
		if e := i.(*regEntry); e.v.Kind() == FloatValue {
			out = append(out, e.v)
		}
		return true
	})
	return out
}

func (m *Model) ODEs() []*ODE           { return m.odes }
func (m *Model) Explicits() []*Explicit { return m.explicits }
func (m *Model) Steps() []*Step         { return m.steps }
func (m *Model) Events() []*Event       { return m.events }
