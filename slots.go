package worldcore

import "sync"

type EntityKind uint8

const (
	invalidEntityKind EntityKind = iota
	WorldKind
	SocialSystemKind
	CellKind
	IndividualKind
	NatureKind
	MetabolismKind
	CultureKind
)

func (k EntityKind) String() string {
	switch k {
	case WorldKind:
		return "world"
	case SocialSystemKind:
		return "social_system"
	case CellKind:
		return "cell"
	case IndividualKind:
		return "individual"
	case NatureKind:
		return "nature"
	case MetabolismKind:
		return "metabolism"
	case CultureKind:
		return "culture"
	}
	return "invalid"
}

// Holder is anything that carries variable values: an entity or a process
// taxon. All implementations live in this package.
type Holder interface {
	slotRef() *Slots
	entityKind() EntityKind
}

// Slots is the per-instance storage of variable values and ODE derivative
// accumulators, keyed by variable codename. Values are only written through
// Variable.Set so that constraints hold.
type Slots struct {
	mu     sync.RWMutex
	vals   map[string]interface{}
	derivs map[string]float64
}

func (s *Slots) slotRef() *Slots { return s }

func (s *Slots) value(code string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[code]
	return v, ok
}

func (s *Slots) put(code string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals == nil {
		s.vals = make(map[string]interface{})
	}
	s.vals[code] = v
}

func (s *Slots) clear(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals, code)
}

func (s *Slots) addDeriv(code string, dv float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.derivs == nil {
		s.derivs = make(map[string]float64)
	}
	s.derivs[code] += dv
}

func (s *Slots) deriv(code string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.derivs[code]
}

func (s *Slots) clearDerivs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.derivs {
		delete(s.derivs, k)
	}
}

func (s *Slots) replace(vals map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals = make(map[string]interface{}, len(vals))
	for k, v := range vals {
		s.vals[k] = v
	}
}
