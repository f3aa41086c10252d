package worldcore

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var ErrIncommensurable = errors.New("units are not commensurable")

// Dimension is a vector of base dimension exponents. Beside the physical
// base dimensions it carries the two bookkeeping dimensions of
// social-ecological models, humans and dollars.
type Dimension struct {
	Time        int8
	Length      int8
	Mass        int8
	Temperature int8
	Humans      int8
	Dollars     int8
}

func (d Dimension) add(o Dimension) Dimension {
	return Dimension{
		Time:        d.Time + o.Time,
		Length:      d.Length + o.Length,
		Mass:        d.Mass + o.Mass,
		Temperature: d.Temperature + o.Temperature,
		Humans:      d.Humans + o.Humans,
		Dollars:     d.Dollars + o.Dollars,
	}
}

func (d Dimension) sub(o Dimension) Dimension {
	return Dimension{
		Time:        d.Time - o.Time,
		Length:      d.Length - o.Length,
		Mass:        d.Mass - o.Mass,
		Temperature: d.Temperature - o.Temperature,
		Humans:      d.Humans - o.Humans,
		Dollars:     d.Dollars - o.Dollars,
	}
}

func (d Dimension) scale(n int8) Dimension {
	return Dimension{
		Time:        d.Time * n,
		Length:      d.Length * n,
		Mass:        d.Mass * n,
		Temperature: d.Temperature * n,
		Humans:      d.Humans * n,
		Dollars:     d.Dollars * n,
	}
}

// Unit is a scale for ratio- or interval-scaled variables. Factor converts
// a value in this unit into the coherent base unit of its dimension.
type Unit struct {
	name   string
	symbol string
	factor float64
	dim    Dimension
}

func NewUnit(name, symbol string, factor float64, dim Dimension) Unit {
	return Unit{name: name, symbol: symbol, factor: factor, dim: dim}
}

func (u Unit) Name() string   { return u.name }
func (u Unit) Symbol() string { return u.symbol }
func (u Unit) Factor() float64 {
	return u.factor
}

func (u Unit) String() string {
	if u.symbol != "" {
		return u.symbol
	}
	return u.name
}

// Commensurable reports whether values can be converted between u and o.
func (u Unit) Commensurable(o Unit) bool {
	return u.dim == o.dim
}

// Convert converts v given in u into unit o.
func (u Unit) Convert(v float64, o Unit) (float64, error) {
	if !u.Commensurable(o) {
		return 0, errors.Wrapf(ErrIncommensurable, "%s vs %s", u, o)
	}
	return v * u.factor / o.factor, nil
}

func (u Unit) Times(o Unit) Unit {
	return Unit{
		name:   u.name + " " + o.name,
		symbol: u.symbol + " " + o.symbol,
		factor: u.factor * o.factor,
		dim:    u.dim.add(o.dim),
	}
}

func (u Unit) Per(o Unit) Unit {
	return Unit{
		name:   u.name + " per " + o.name,
		symbol: u.symbol + "/" + o.symbol,
		factor: u.factor / o.factor,
		dim:    u.dim.sub(o.dim),
	}
}

func (u Unit) Pow(n int8) Unit {
	return Unit{
		name:   fmt.Sprintf("%s^%d", u.name, n),
		symbol: fmt.Sprintf("%s^%d", u.symbol, n),
		factor: math.Pow(u.factor, float64(n)),
		dim:    u.dim.scale(n),
	}
}

// Units used across the shipped model components. A Julian year is used
// for model time.
var (
	Dimensionless = NewUnit("dimensionless", "1", 1, Dimension{})

	Seconds = NewUnit("seconds", "s", 1, Dimension{Time: 1})
	Years   = NewUnit("years", "yr", 31557600, Dimension{Time: 1})

	Meters           = NewUnit("meters", "m", 1, Dimension{Length: 1})
	Kilometers       = NewUnit("kilometers", "km", 1e3, Dimension{Length: 1})
	SquareKilometers = Kilometers.Pow(2)

	Kilograms        = NewUnit("kilograms", "kg", 1, Dimension{Mass: 1})
	Tonnes           = NewUnit("tonnes", "t", 1e3, Dimension{Mass: 1})
	GigatonnesCarbon = NewUnit("gigatonnes carbon", "GtC", 1e12, Dimension{Mass: 1})

	Kelvin = NewUnit("kelvin", "K", 1, Dimension{Temperature: 1})

	Humans  = NewUnit("humans", "H", 1, Dimension{Humans: 1})
	Dollars = NewUnit("dollars", "$", 1, Dimension{Dollars: 1})
)

// DimensionalQuantity is a number together with its unit.
type DimensionalQuantity struct {
	value float64
	unit  Unit
}

func DQ(v float64, u Unit) DimensionalQuantity {
	return DimensionalQuantity{value: v, unit: u}
}

func (q DimensionalQuantity) Value() float64 { return q.value }
func (q DimensionalQuantity) Unit() Unit     { return q.unit }

// In returns the quantity's value expressed in unit u.
func (q DimensionalQuantity) In(u Unit) (float64, error) {
	return q.unit.Convert(q.value, u)
}

func (q DimensionalQuantity) String() string {
	return fmt.Sprintf("%g %s", q.value, q.unit)
}
