package worldcore

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidScale = errors.New("scale must be ratio, interval, ordinal, or nominal")
var ErrInvalidValue = errors.New("invalid variable value")
var ErrVariableUnbound = errors.New("variable is not bound to a model")
var ErrValueUnset = errors.New("variable value is unset")

// Scale is the level of measurement of a variable,
// see https://en.wikipedia.org/wiki/Level_of_measurement
type Scale string

const (
	Ratio    Scale = "ratio"
	Interval Scale = "interval"
	Ordinal  Scale = "ordinal"
	Nominal  Scale = "nominal"
)

type ValueKind uint8

const (
	FloatValue ValueKind = iota
	IntValue
	StrValue
	BoolValue
)

// Prior generates a value when nothing else is known about a variable.
type Prior func(rng *rand.Rand) interface{}

// Variable is the metadata object describing a model variable or parameter.
// It carries measurement metadata (scale, unit, bounds), catalog references
// (CF standard name and friends) and mediates all reads and writes of the
// value it describes on entities and process taxa.
type Variable struct {
	name   string
	desc   string
	symbol string
	ref    string

	scale Scale
	kind  ValueKind

	def      interface{}
	hasDef   bool
	prior    Prior

	// catalog references:
	cf   string
	amip string
	iamc string
	cets string

	allowUnset       bool
	lowerBound       *float64
	strictLowerBound *float64
	upperBound       *float64
	strictUpperBound *float64
	quantum          *float64
	levels           []interface{}

	unit        *Unit
	isExtensive bool
	isIntensive bool

	// assigned at composition:
	code  string
	owner EntityKind
}

type VarOption func(v *Variable)

func WithSymbol(s string) VarOption { return func(v *Variable) { v.symbol = s } }
func WithRef(uri string) VarOption  { return func(v *Variable) { v.ref = uri } }
func WithScale(s Scale) VarOption   { return func(v *Variable) { v.scale = s } }
func WithKind(k ValueKind) VarOption {
	return func(v *Variable) { v.kind = k }
}

func WithDefault(d interface{}) VarOption {
	return func(v *Variable) { v.def = d; v.hasDef = true }
}

func WithPrior(p Prior) VarOption { return func(v *Variable) { v.prior = p } }

// Catalog references:

func WithCF(standardName string) VarOption { return func(v *Variable) { v.cf = standardName } }
func WithAMIP(name string) VarOption       { return func(v *Variable) { v.amip = name } }
func WithIAMC(name string) VarOption       { return func(v *Variable) { v.iamc = name } }
func WithCETS(code string) VarOption       { return func(v *Variable) { v.cets = code } }

// Constraints:

func DisallowUnset() VarOption { return func(v *Variable) { v.allowUnset = false } }

func WithLowerBound(b float64) VarOption {
	return func(v *Variable) { v.lowerBound = &b }
}

func WithStrictLowerBound(b float64) VarOption {
	return func(v *Variable) { v.strictLowerBound = &b }
}

func WithUpperBound(b float64) VarOption {
	return func(v *Variable) { v.upperBound = &b }
}

func WithStrictUpperBound(b float64) VarOption {
	return func(v *Variable) { v.strictUpperBound = &b }
}

// WithQuantum requires values to be integer multiples of q.
func WithQuantum(q float64) VarOption {
	return func(v *Variable) { v.quantum = &q }
}

// WithLevels enumerates the admissible values of an ordinal or nominal
// variable.
func WithLevels(levels ...interface{}) VarOption {
	return func(v *Variable) { v.levels = levels }
}

func WithUnit(u Unit) VarOption { return func(v *Variable) { v.unit = &u } }

// Extensive marks a variable as scaling proportionally with system size.
func Extensive() VarOption { return func(v *Variable) { v.isExtensive = true } }

// Intensive marks a variable as invariant under doubling the system.
func Intensive() VarOption { return func(v *Variable) { v.isIntensive = true } }

// NewVariable declares a variable with human-readable name and description.
// It panics on an invalid scale since variables are package-level
// declarations of model components.
func NewVariable(name, desc string, opts ...VarOption) *Variable {
	v := &Variable{
		name:       name,
		desc:       desc,
		scale:      Ratio,
		kind:       FloatValue,
		allowUnset: true,
	}
	for _, opt := range opts {
		opt(v)
	}

	switch v.scale {
	case Ratio, Interval, Ordinal, Nominal:
	default:
		panic(errors.Wrapf(ErrInvalidScale, "variable %q declared with scale %q", name, v.scale))
	}

	if v.hasDef {
		if err := v.Validate(v.def); err != nil {
			panic(errors.Wrapf(err, "default of variable %q", name))
		}
	}

	return v
}

func (v *Variable) Name() string      { return v.name }
func (v *Variable) Desc() string      { return v.desc }
func (v *Variable) Symbol() string    { return v.symbol }
func (v *Variable) Ref() string       { return v.ref }
func (v *Variable) Scale() Scale      { return v.scale }
func (v *Variable) Kind() ValueKind   { return v.kind }
func (v *Variable) CF() string        { return v.cf }
func (v *Variable) IsExtensive() bool { return v.isExtensive }
func (v *Variable) IsIntensive() bool { return v.isIntensive }

func (v *Variable) Unit() (Unit, bool) {
	if v.unit == nil {
		return Unit{}, false
	}
	return *v.unit, true
}

func (v *Variable) Default() (interface{}, bool) { return v.def, v.hasDef }

// Code returns the codename the variable was registered under at
// composition, empty before that.
func (v *Variable) Code() string { return v.code }

// Owner returns the entity kind the variable was attached to at composition.
func (v *Variable) Owner() EntityKind { return v.owner }

func (v *Variable) bind(code string, owner EntityKind) error {
	if v.code != "" && v.code != code {
		return errors.Wrapf(ErrCodenameTaken,
			"variable %q already bound to codename %q, cannot rebind to %q", v.name, v.code, code)
	}
	v.code = code
	v.owner = owner
	return nil
}

func (v *Variable) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Variable %s (%s), scale=%s", v.name, v.desc, v.scale)
	if v.unit != nil {
		fmt.Fprintf(&b, ", unit=%s", v.unit)
	}
	if v.hasDef {
		fmt.Fprintf(&b, ", default=%v", v.def)
	}
	if !v.allowUnset {
		b.WriteString(", not unset")
	}
	if v.lowerBound != nil {
		fmt.Fprintf(&b, ", >=%v", *v.lowerBound)
	}
	if v.strictLowerBound != nil {
		fmt.Fprintf(&b, ", >%v", *v.strictLowerBound)
	}
	if v.upperBound != nil {
		fmt.Fprintf(&b, ", <=%v", *v.upperBound)
	}
	if v.strictUpperBound != nil {
		fmt.Fprintf(&b, ", <%v", *v.strictUpperBound)
	}
	if v.quantum != nil {
		fmt.Fprintf(&b, ", %% %v == 0", *v.quantum)
	}
	if v.levels != nil {
		fmt.Fprintf(&b, ", levels=%v", v.levels)
	}
	return b.String()
}

const quantumTolerance = 1e-9

// Validate checks a candidate value against all declared constraints.
func (v *Variable) Validate(val interface{}) error {
	if val == nil {
		if !v.allowUnset {
			return errors.Wrapf(ErrInvalidValue, "%s may not be unset", v.name)
		}
		return nil
	}

	coerced, err := coerceValue(v.kind, val)
	if err != nil {
		return errors.Wrapf(err, "variable %s", v.name)
	}

	var f float64
	numeric := false
	switch n := coerced.(type) {
	case float64:
		f, numeric = n, true
	case int64:
		f, numeric = float64(n), true
	}
	if numeric {
		if v.lowerBound != nil && !(f >= *v.lowerBound) {
			return errors.Wrapf(ErrInvalidValue, "%s must be >= %v, got %v", v.name, *v.lowerBound, f)
		}
		if v.strictLowerBound != nil && !(f > *v.strictLowerBound) {
			return errors.Wrapf(ErrInvalidValue, "%s must be > %v, got %v", v.name, *v.strictLowerBound, f)
		}
		if v.upperBound != nil && !(f <= *v.upperBound) {
			return errors.Wrapf(ErrInvalidValue, "%s must be <= %v, got %v", v.name, *v.upperBound, f)
		}
		if v.strictUpperBound != nil && !(f < *v.strictUpperBound) {
			return errors.Wrapf(ErrInvalidValue, "%s must be < %v, got %v", v.name, *v.strictUpperBound, f)
		}
		if v.quantum != nil {
			m := math.Mod(f, *v.quantum)
			if math.Abs(m) > quantumTolerance && math.Abs(m-*v.quantum) > quantumTolerance {
				return errors.Wrapf(ErrInvalidValue,
					"%s must be an integer multiple of %v, got %v", v.name, *v.quantum, f)
			}
		}
	}

	if v.levels != nil {
		found := false
		for _, l := range v.levels {
			lc, err := coerceValue(v.kind, l)
			if err == nil && lc == coerced {
				found = true
				break
			}
		}
		if !found {
			return errors.Wrapf(ErrInvalidValue, "%s must be one of %v, got %v", v.name, v.levels, val)
		}
	}

	return nil
}

func (v *Variable) IsValid(val interface{}) bool {
	return v.Validate(val) == nil
}

// coerceValue normalizes a candidate value to the canonical Go type of the
// kind: float64, int64, string or bool.
func coerceValue(k ValueKind, val interface{}) (interface{}, error) {
	switch k {
	case FloatValue:
		switch n := val.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case IntValue:
		switch n := val.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		}
	case StrValue:
		if s, ok := val.(string); ok {
			return s, nil
		}
	case BoolValue:
		if b, ok := val.(bool); ok {
			return b, nil
		}
	}
	return nil, errors.Wrapf(ErrInvalidValue, "cannot hold %T value %v", val, val)
}

// Set validates val and stores it on h under the variable's codename.
// A DimensionalQuantity is first converted into the variable's own unit.
func (v *Variable) Set(h Holder, val interface{}) error {
	if v.code == "" {
		return errors.Wrapf(ErrVariableUnbound, "cannot set %s", v.name)
	}

	if q, ok := val.(DimensionalQuantity); ok {
		if v.unit == nil {
			return errors.Wrapf(ErrInvalidValue,
				"%s has no unit but got dimensional quantity %s", v.name, q)
		}
		f, err := q.In(*v.unit)
		if err != nil {
			return errors.Wrapf(err, "variable %s", v.name)
		}
		val = f
	}

	if err := v.Validate(val); err != nil {
		return err
	}

	coerced, err := coerceValue(v.kind, val)
	if err != nil {
		return errors.Wrapf(err, "variable %s", v.name)
	}

	h.slotRef().put(v.code, coerced)
	return nil
}

// Unset clears the value on h. It errors when the variable disallows
// unset values.
func (v *Variable) Unset(h Holder) error {
	if !v.allowUnset {
		return errors.Wrapf(ErrInvalidValue, "%s may not be unset", v.name)
	}
	h.slotRef().clear(v.code)
	return nil
}

// Get returns the value on h and whether it is set. The value is
// normalized to the kind's canonical type, so values restored from a
// JSON state dump read back the same as freshly set ones.
func (v *Variable) Get(h Holder) (interface{}, bool) {
	raw, ok := h.slotRef().value(v.code)
	if !ok {
		return nil, false
	}
	if c, err := coerceValue(v.kind, raw); err == nil {
		return c, true
	}
	return raw, true
}

// Float returns the float value on h, zero when unset. It must only be
// used on FloatValue variables.
func (v *Variable) Float(h Holder) float64 {
	val, ok := h.slotRef().value(v.code)
	if !ok {
		return 0
	}
	f, ok := val.(float64)
	if !ok {
		panic(fmt.Sprintf("variable %s is not float-valued", v.name))
	}
	return f
}

// FloatIn returns the value on h converted into unit u.
func (v *Variable) FloatIn(h Holder, u Unit) (float64, error) {
	if v.unit == nil {
		return 0, errors.Wrapf(ErrIncommensurable, "%s has no unit", v.name)
	}
	val, ok := h.slotRef().value(v.code)
	if !ok {
		return 0, errors.Wrapf(ErrValueUnset, "variable %s", v.name)
	}
	f, ok := val.(float64)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidValue, "%s is not float-valued", v.name)
	}
	return v.unit.Convert(f, u)
}

// SetDefault stores the declared default on every given holder.
func (v *Variable) SetDefault(hs ...Holder) error {
	if !v.hasDef {
		return errors.Wrapf(ErrInvalidValue, "%s has no default", v.name)
	}
	for _, h := range hs {
		if err := v.Set(h, v.def); err != nil {
			return err
		}
	}
	return nil
}

// SetRandom draws from the variable's uninformed prior on every holder.
func (v *Variable) SetRandom(rng *rand.Rand, hs ...Holder) error {
	if v.prior == nil {
		return errors.Wrapf(ErrInvalidValue, "%s has no uninformed prior", v.name)
	}
	for _, h := range hs {
		if err := v.Set(h, v.prior(rng)); err != nil {
			return err
		}
	}
	return nil
}

// AddDeriv accumulates a time-derivative contribution on h. It is called
// from ODE right-hand sides and panics when the variable is unbound since
// that is a composition bug, not a runtime condition.
func (v *Variable) AddDeriv(h Holder, dv float64) {
	if v.code == "" {
		panic("AddDeriv on unbound variable " + v.name)
	}
	h.slotRef().addDeriv(v.code, dv)
}

// Deriv returns the accumulated derivative on h.
func (v *Variable) Deriv(h Holder) float64 {
	return h.slotRef().deriv(v.code)
}
