// Package base provides the master data model of the framework: the
// carbon stocks and demographic variables every composed model shares,
// plus the world-level aggregation of cell stocks.
package base

import (
	wc "github.com/avoigt/worldcore"
)

// ComponentName is what other components put into their Requires list.
const ComponentName = "base"

// cell-level stocks
var (
	TerrestrialCarbon = wc.NewVariable(
		"terrestrial carbon",
		"carbon stored in the cell's vegetation and soils",
		wc.WithSymbol("L"),
		wc.WithUnit(wc.GigatonnesCarbon),
		wc.WithLowerBound(0),
		wc.WithDefault(1.0),
		wc.Extensive(),
	)

	FossilCarbon = wc.NewVariable(
		"fossil carbon",
		"carbon stored in the cell's fossil reservoirs",
		wc.WithSymbol("F"),
		wc.WithUnit(wc.GigatonnesCarbon),
		wc.WithLowerBound(0),
		wc.WithDefault(1.0),
		wc.Extensive(),
	)
)

// world-level stocks and climate state
var (
	TotalTerrestrialCarbon = wc.NewVariable(
		"total terrestrial carbon",
		"sum of terrestrial carbon over all cells of the world",
		wc.WithUnit(wc.GigatonnesCarbon),
		wc.WithLowerBound(0),
		wc.WithDefault(0.0),
		wc.Extensive(),
	)

	TotalFossilCarbon = wc.NewVariable(
		"total fossil carbon",
		"sum of fossil carbon over all cells of the world",
		wc.WithUnit(wc.GigatonnesCarbon),
		wc.WithLowerBound(0),
		wc.WithDefault(0.0),
		wc.Extensive(),
	)

	AtmosphericCarbon = wc.NewVariable(
		"atmospheric carbon",
		"carbon content of the world's atmosphere",
		wc.WithSymbol("A"),
		wc.WithCF("atmosphere_mass_of_carbon_dioxide"),
		wc.WithUnit(wc.GigatonnesCarbon),
		wc.WithLowerBound(0),
		wc.WithDefault(830.0),
		wc.Extensive(),
	)

	OceanCarbon = wc.NewVariable(
		"ocean carbon",
		"carbon content of the world's upper ocean",
		wc.WithCF("mass_of_carbon_in_sea_water"),
		wc.WithUnit(wc.GigatonnesCarbon),
		wc.WithLowerBound(0),
		wc.WithDefault(5500.0),
		wc.Extensive(),
	)

	SurfaceAirTemperature = wc.NewVariable(
		"surface air temperature",
		"global mean surface air temperature",
		wc.WithCF("air_temperature"),
		wc.WithUnit(wc.Kelvin),
		wc.WithLowerBound(0),
		wc.WithDefault(287.0),
		wc.Intensive(),
	)
)

// social-system demography
var (
	Population = wc.NewVariable(
		"population",
		"human population of the social system",
		wc.WithSymbol("P"),
		wc.WithUnit(wc.Humans),
		wc.WithLowerBound(0),
		wc.WithDefault(0.0),
		wc.Extensive(),
	)
)

// Component returns the base component. Aggregation of cell carbon
// stocks into world totals runs as an explicit process after every step.
func Component() *wc.Component {
	aggregate := wc.NewExplicit(
		"aggregate cell carbon stocks",
		wc.WorldKind,
		[]*wc.Variable{TotalTerrestrialCarbon, TotalFossilCarbon},
		func(t float64, h wc.Holder) {
			w := h.(*wc.World)
			var terr, foss float64
			for _, c := range w.Cells() {
				terr += TerrestrialCarbon.Float(c)
				foss += FossilCarbon.Float(c)
			}
			_ = TotalTerrestrialCarbon.Set(w, terr)
			_ = TotalFossilCarbon.Set(w, foss)
		},
	)

	return &wc.Component{
		Name: ComponentName,
		Desc: "master data model and world aggregation",
		Declares: []wc.Decl{
			{On: wc.CellKind, Code: "terrestrial_carbon", Var: TerrestrialCarbon},
			{On: wc.CellKind, Code: "fossil_carbon", Var: FossilCarbon},
			{On: wc.WorldKind, Code: "total_terrestrial_carbon", Var: TotalTerrestrialCarbon},
			{On: wc.WorldKind, Code: "total_fossil_carbon", Var: TotalFossilCarbon},
			{On: wc.WorldKind, Code: "atmospheric_carbon", Var: AtmosphericCarbon},
			{On: wc.WorldKind, Code: "ocean_carbon", Var: OceanCarbon},
			{On: wc.WorldKind, Code: "surface_air_temperature", Var: SurfaceAirTemperature},
			{On: wc.SocialSystemKind, Code: "population", Var: Population},
		},
		Processes: []wc.Process{aggregate},
	}
}
