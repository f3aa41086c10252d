// Package exodus models rural-urban migration: individuals are farmers
// or townsmen, earn profession-dependent income, and occasionally switch
// profession when their acquaintances of the other profession fare
// better. The culture taxon tracks the clustering of the acquaintance
// network and whether it has split along profession lines.
package exodus

import (
	"math"
	"math/rand"

	wc "github.com/avoigt/worldcore"
	"github.com/avoigt/worldcore/components/base"
)

const ComponentName = "exodus"

const (
	Farmer   = "farmer"
	Townsman = "townsman"
)

// income and consumption parameters of the two professions
const (
	farmerIncome   = 1.0
	townsmanIncome = 1.2
	consumption    = 0.5
)

// mean number of profession reconsiderations per individual per year
const migrationRate = 0.05

var (
	Profession = wc.NewVariable(
		"profession",
		"whether the individual farms or lives in town",
		wc.WithKind(wc.StrValue),
		wc.WithScale(wc.Nominal),
		wc.WithLevels(Farmer, Townsman),
		wc.WithDefault(Farmer),
	)

	Liquidity = wc.NewVariable(
		"liquidity",
		"liquid assets of the individual",
		wc.WithUnit(wc.Dollars),
		wc.WithLowerBound(0),
		wc.WithDefault(1.0),
		wc.Extensive(),
	)

	Utility = wc.NewVariable(
		"utility",
		"current utility the individual derives from its assets",
		wc.WithDefault(0.0),
	)

	NetworkClustering = wc.NewVariable(
		"network clustering",
		"average local clustering of the acquaintance network",
		wc.WithLowerBound(0),
		wc.WithUpperBound(1),
		wc.WithDefault(0.0),
	)

	Split = wc.NewVariable(
		"network split",
		"whether no acquaintance link crosses professions anymore",
		wc.WithKind(wc.BoolValue),
		wc.WithScale(wc.Nominal),
		wc.WithDefault(false),
	)
)

func income(profession string) float64 {
	if profession == Townsman {
		return townsmanIncome
	}
	return farmerIncome
}

func professionOf(ind *wc.Individual) string {
	p, ok := Profession.Get(ind)
	if !ok {
		return Farmer
	}
	return p.(string)
}

// Component returns the exodus component.
func Component() *wc.Component {
	assets := wc.NewODE(
		"asset accumulation",
		wc.IndividualKind,
		[]*wc.Variable{Liquidity},
		func(t float64, h wc.Holder) {
			ind := h.(*wc.Individual)
			l := Liquidity.Float(ind)
			Liquidity.AddDeriv(ind, income(professionOf(ind))-consumption*l)
		},
	)

	utility := wc.NewExplicit(
		"utility from assets",
		wc.IndividualKind,
		[]*wc.Variable{Utility},
		func(t float64, h wc.Holder) {
			ind := h.(*wc.Individual)
			_ = Utility.Set(ind, math.Sqrt(Liquidity.Float(ind)))
		},
	)

	analyse := wc.NewStep(
		"analyse acquaintance network",
		wc.CultureKind,
		[]*wc.Variable{NetworkClustering, Split},
		func(t float64) float64 { return t + 1 },
		func(t float64, h wc.Holder) {
			c := h.(*wc.Culture)
			net := c.AcquaintanceNetwork()
			_ = NetworkClustering.Set(c, net.AverageClustering())
			_ = Split.Set(c, net.SplitBy(func(i *wc.Individual) interface{} {
				return professionOf(i)
			}))
		},
	)

	migrate := wc.NewRateEvent(
		"reconsider profession",
		wc.IndividualKind,
		[]*wc.Variable{Profession},
		migrationRate,
		func(t float64, h wc.Holder, rng *rand.Rand) {
			ind := h.(*wc.Individual)
			reconsider(ind, rng)
		},
	)

	return &wc.Component{
		Name:     ComponentName,
		Desc:     "profession switching over an acquaintance network",
		Requires: []string{base.ComponentName},
		Declares: []wc.Decl{
			{On: wc.IndividualKind, Code: "profession", Var: Profession},
			{On: wc.IndividualKind, Code: "liquidity", Var: Liquidity},
			{On: wc.IndividualKind, Code: "utility", Var: Utility},
			{On: wc.CultureKind, Code: "network_clustering", Var: NetworkClustering},
			{On: wc.CultureKind, Code: "network_split", Var: Split},
		},
		Processes: []wc.Process{assets, utility, analyse, migrate},
	}
}

// reconsider compares the individual's utility with the mean utility of
// its acquaintances of the other profession; when they fare better, the
// individual switches and rewires one link towards its new profession.
func reconsider(ind *wc.Individual, rng *rand.Rand) {
	cell := ind.Cell()
	if cell == nil || cell.World() == nil {
		return
	}
	net := cell.World().Culture().AcquaintanceNetwork()

	own := professionOf(ind)
	var otherSum float64
	var others []*wc.Individual
	for _, acq := range net.Neighbors(ind) {
		if professionOf(acq) != own {
			otherSum += Utility.Float(acq)
			others = append(others, acq)
		}
	}
	if len(others) == 0 {
		return
	}

	if otherSum/float64(len(others)) <= Utility.Float(ind) {
		return
	}

	switched := Townsman
	if own == Townsman {
		switched = Farmer
	}
	_ = Profession.Set(ind, switched)

	// drop one link into the old profession, befriend an acquaintance
	// of an other-profession acquaintance
	var old []*wc.Individual
	for _, acq := range net.Neighbors(ind) {
		if professionOf(acq) == own {
			old = append(old, acq)
		}
	}
	if len(old) > 0 {
		net.Unlink(ind, old[rng.Intn(len(old))])
	}

	peer := others[rng.Intn(len(others))]
	candidates := net.Neighbors(peer)
	if len(candidates) > 0 {
		pick := candidates[rng.Intn(len(candidates))]
		if pick != ind {
			net.Link(ind, pick)
		}
	}
}
