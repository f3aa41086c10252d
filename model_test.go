package worldcore_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wc "github.com/avoigt/worldcore"
)

func TestCompose(t *testing.T) {
	t.Run("collects variables and processes", func(t *testing.T) {
		x := wc.NewVariable("x", "")
		y := wc.NewVariable("y", "")

		grow := wc.NewODE("grow", wc.WorldKind, []*wc.Variable{x},
			func(t float64, h wc.Holder) { x.AddDeriv(h, 1) })
		derive := wc.NewExplicit("derive", wc.WorldKind, []*wc.Variable{y},
			func(t float64, h wc.Holder) { _ = y.Set(h, 2*x.Float(h)) })

		m, rep, err := wc.Compose(&wc.Component{
			Name: "growth",
			Declares: []wc.Decl{
				{On: wc.WorldKind, Code: "x", Var: x},
				{On: wc.WorldKind, Code: "y", Var: y},
			},
			Processes: []wc.Process{grow, derive},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, rep.Variables)
		assert.Equal(t, 1, rep.ODEs)
		assert.Equal(t, 1, rep.Explicits)
		assert.Equal(t, []string{"growth"}, rep.Components)

		got, ok := m.Variable("x")
		require.True(t, ok)
		assert.Same(t, x, got)
		assert.Equal(t, "x", x.Code())
		assert.Equal(t, wc.WorldKind, x.Owner())

		_, ok = m.Variable("z")
		assert.False(t, ok)
	})

	t.Run("variables come back in codename order", func(t *testing.T) {
		b := wc.NewVariable("b", "")
		a := wc.NewVariable("a", "")
		c := wc.NewVariable("c", "")

		m, _, err := wc.Compose(&wc.Component{
			Name: "letters",
			Declares: []wc.Decl{
				{On: wc.WorldKind, Code: "b", Var: b},
				{On: wc.WorldKind, Code: "a", Var: a},
				{On: wc.WorldKind, Code: "c", Var: c},
			},
		})
		require.NoError(t, err)

		var codes []string
		for _, v := range m.Variables() {
			codes = append(codes, v.Code())
		}
		assert.Equal(t, []string{"a", "b", "c"}, codes)
	})

	t.Run("recorded variables are the float-valued ones", func(t *testing.T) {
		f := wc.NewVariable("f", "")
		s := wc.NewVariable("s", "", wc.WithScale(wc.Nominal), wc.WithKind(wc.StrValue))

		m, _, err := wc.Compose(&wc.Component{
			Name: "mixed",
			Declares: []wc.Decl{
				{On: wc.WorldKind, Code: "f", Var: f},
				{On: wc.WorldKind, Code: "s", Var: s},
			},
		})
		require.NoError(t, err)

		rec := m.RecordedVariables()
		require.Len(t, rec, 1)
		assert.Same(t, f, rec[0])
	})

	t.Run("shared variable under the same codename is allowed", func(t *testing.T) {
		shared := wc.NewVariable("shared", "")

		provider := &wc.Component{
			Name:     "provider",
			Declares: []wc.Decl{{On: wc.WorldKind, Code: "shared", Var: shared}},
		}
		consumer := &wc.Component{
			Name:     "consumer",
			Requires: []string{"provider"},
			Declares: []wc.Decl{{On: wc.WorldKind, Code: "shared", Var: shared}},
		}

		_, rep, err := wc.Compose(provider, consumer)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Variables)
	})

	t.Run("codename collision between different variables", func(t *testing.T) {
		a := wc.NewVariable("a", "")
		b := wc.NewVariable("b", "")

		_, _, err := wc.Compose(
			&wc.Component{Name: "one", Declares: []wc.Decl{{On: wc.WorldKind, Code: "x", Var: a}}},
			&wc.Component{Name: "two", Declares: []wc.Decl{{On: wc.WorldKind, Code: "x", Var: b}}},
		)
		require.Error(t, err)
		assert.True(t, errors.Is(err, wc.ErrCodenameTaken))
	})

	t.Run("same variable under two codenames", func(t *testing.T) {
		v := wc.NewVariable("v", "")

		_, _, err := wc.Compose(&wc.Component{
			Name:     "one",
			Declares: []wc.Decl{{On: wc.WorldKind, Code: "x", Var: v}},
		})
		require.NoError(t, err)

		_, _, err = wc.Compose(&wc.Component{
			Name:     "two",
			Declares: []wc.Decl{{On: wc.WorldKind, Code: "y", Var: v}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, wc.ErrVariableRebound))
	})

	t.Run("missing requirement", func(t *testing.T) {
		_, _, err := wc.Compose(&wc.Component{
			Name:     "dependent",
			Requires: []string{"missing"},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, wc.ErrMissingRequirement))
	})

	t.Run("process targeting an undeclared variable", func(t *testing.T) {
		stray := wc.NewVariable("stray", "")
		p := wc.NewExplicit("update", wc.WorldKind, []*wc.Variable{stray},
			func(t float64, h wc.Holder) {})

		_, _, err := wc.Compose(&wc.Component{
			Name:      "broken",
			Processes: []wc.Process{p},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, wc.ErrUnknownVariable))
	})

	t.Run("ODE and explicit writing the same variable", func(t *testing.T) {
		x := wc.NewVariable("x", "")

		ode := wc.NewODE("continuous", wc.WorldKind, []*wc.Variable{x},
			func(t float64, h wc.Holder) { x.AddDeriv(h, 1) })
		ex := wc.NewExplicit("derived", wc.WorldKind, []*wc.Variable{x},
			func(t float64, h wc.Holder) { _ = x.Set(h, 0) })

		_, _, err := wc.Compose(&wc.Component{
			Name:      "conflict",
			Declares:  []wc.Decl{{On: wc.WorldKind, Code: "x", Var: x}},
			Processes: []wc.Process{ode, ex},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, wc.ErrConflictingWriters))
	})
}

func TestProcessConstructors(t *testing.T) {
	x := wc.NewVariable("x", "")

	step := wc.NewStep("yearly", wc.WorldKind, []*wc.Variable{x},
		func(t float64) float64 { return t + 1 },
		func(t float64, h wc.Holder) {})
	assert.Equal(t, "yearly", step.ProcessName())
	assert.Equal(t, wc.WorldKind, step.On())
	assert.Equal(t, 1.0, step.Timing(0))

	ev := wc.NewRateEvent("spontaneous", wc.IndividualKind, nil, 0.1, nil)
	assert.Equal(t, 0.1, ev.Rate)
	assert.Nil(t, ev.Timing)

	tev := wc.NewTimedEvent("scheduled", wc.IndividualKind, nil,
		func(t float64) float64 { return t + 2 }, nil)
	assert.NotNil(t, tev.Timing)
	assert.Equal(t, 2.0, tev.Timing(0))
}
