// Package simpleextraction models a renewable resource under harvesting:
// each cell carries a logistically regrowing stock, and individuals with
// the extracting strategy harvest from their cell's stock.
package simpleextraction

import (
	"math"

	wc "github.com/avoigt/worldcore"
	"github.com/avoigt/worldcore/components/base"
)

const ComponentName = "simple_extraction"

var (
	Stock = wc.NewVariable(
		"current stock",
		"current stock of the renewable resource in the cell",
		wc.WithSymbol("s"),
		wc.WithLowerBound(0),
		wc.WithDefault(50.0),
		wc.Extensive(),
	)

	GrowthRate = wc.NewVariable(
		"growth rate",
		"intrinsic regrowth rate of the resource",
		wc.WithSymbol("r"),
		wc.WithLowerBound(0),
		wc.WithDefault(0.2),
		wc.Intensive(),
	)

	Capacity = wc.NewVariable(
		"carrying capacity",
		"stock level at which regrowth stalls",
		wc.WithSymbol("K"),
		wc.WithStrictLowerBound(0),
		wc.WithDefault(100.0),
		wc.Extensive(),
	)

	// Strategy is 1 for extracting individuals and 0 for abstainers.
	Strategy = wc.NewVariable(
		"harvesting strategy",
		"whether the individual extracts from the cell's stock",
		wc.WithKind(wc.IntValue),
		wc.WithLevels(0, 1),
		wc.WithDefault(0),
	)

	ExtractionRate = wc.NewVariable(
		"extraction rate",
		"per-individual harvest rate per unit stock",
		wc.WithSymbol("e"),
		wc.WithLowerBound(0),
		wc.WithDefault(0.1),
		wc.Intensive(),
	)

	HarvestIncome = wc.NewVariable(
		"harvest income",
		"current harvest flow of the individual",
		wc.WithLowerBound(0),
		wc.WithDefault(0.0),
	)
)

// extractorCount counts the individuals in c that currently extract.
func extractorCount(c *wc.Cell) float64 {
	var n float64
	for _, ind := range c.Individuals() {
		if s, ok := Strategy.Get(ind); ok && s.(int64) == 1 {
			n++
		}
	}
	return n
}

// Component returns the simple extraction component.
func Component() *wc.Component {
	growth := wc.NewODE(
		"logistic regrowth and harvest",
		wc.CellKind,
		[]*wc.Variable{Stock},
		func(t float64, h wc.Holder) {
			c := h.(*wc.Cell)
			s := Stock.Float(c)
			r := GrowthRate.Float(c)
			k := Capacity.Float(c)
			e := 0.0
			if n := extractorCount(c); n > 0 {
				e = n * averageExtractionRate(c) * s
			}
			Stock.AddDeriv(c, r*s*(1-s/k)-e)
		},
	)

	income := wc.NewExplicit(
		"harvest income",
		wc.IndividualKind,
		[]*wc.Variable{HarvestIncome},
		func(t float64, h wc.Holder) {
			ind := h.(*wc.Individual)
			flow := 0.0
			if s, ok := Strategy.Get(ind); ok && s.(int64) == 1 {
				flow = ExtractionRate.Float(ind) * Stock.Float(ind.Cell())
			}
			_ = HarvestIncome.Set(ind, math.Max(0, flow))
		},
	)

	return &wc.Component{
		Name:     ComponentName,
		Desc:     "renewable resource stock under individual extraction",
		Requires: []string{base.ComponentName},
		Declares: []wc.Decl{
			{On: wc.CellKind, Code: "stock", Var: Stock},
			{On: wc.CellKind, Code: "growth_rate", Var: GrowthRate},
			{On: wc.CellKind, Code: "capacity", Var: Capacity},
			{On: wc.IndividualKind, Code: "strategy", Var: Strategy},
			{On: wc.IndividualKind, Code: "extraction_rate", Var: ExtractionRate},
			{On: wc.IndividualKind, Code: "harvest_income", Var: HarvestIncome},
		},
		Processes: []wc.Process{growth, income},
	}
}

// averageExtractionRate averages the extraction rate over the cell's
// extracting individuals.
func averageExtractionRate(c *wc.Cell) float64 {
	var sum, n float64
	for _, ind := range c.Individuals() {
		if s, ok := Strategy.Get(ind); ok && s.(int64) == 1 {
			sum += ExtractionRate.Float(ind)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
