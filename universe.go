package worldcore

import (
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

var ErrStateShapeMismatch = errors.New("state dump does not match universe shape")

// Universe holds all entity instances of one model run plus the three
// process taxon singletons. Instances keep their creation order, which is
// also the instance order of trajectory frames and state dumps.
type Universe struct {
	worlds        []*World
	socialSystems []*SocialSystem
	cells         []*Cell
	individuals   []*Individual

	nature     *Nature
	metabolism *Metabolism
	culture    *Culture
}

func NewUniverse() *Universe {
	return &Universe{
		nature:     newNature(),
		metabolism: newMetabolism(),
		culture:    newCulture(),
	}
}

// NewWorld creates a world attached to the universe's taxa.
func (u *Universe) NewWorld() *World {
	w := &World{
		id:            len(u.worlds),
		socialSystems: make(map[*SocialSystem]struct{}),
		cells:         make(map[*Cell]struct{}),
	}
	w.SetNature(u.nature)
	w.SetMetabolism(u.metabolism)
	w.SetCulture(u.culture)
	u.worlds = append(u.worlds, w)
	return w
}

func (u *Universe) NewSocialSystem(w *World, nextHigher *SocialSystem) *SocialSystem {
	s := &SocialSystem{
		id:    len(u.socialSystems),
		cells: make(map[*Cell]struct{}),
	}
	s.SetWorld(w)
	s.SetNextHigher(nextHigher)
	u.socialSystems = append(u.socialSystems, s)
	return s
}

func (u *Universe) NewCell(w *World, s *SocialSystem) *Cell {
	c := &Cell{
		id:          len(u.cells),
		individuals: make(map[*Individual]struct{}),
	}
	c.SetWorld(w)
	c.SetSocialSystem(s)
	u.cells = append(u.cells, c)
	return c
}

// NewIndividual creates an individual in cell c and registers it as a node
// of the culture's acquaintance network.
func (u *Universe) NewIndividual(c *Cell) *Individual {
	i := &Individual{id: len(u.individuals)}
	i.SetCell(c)
	u.culture.network.AddNode(i)
	u.individuals = append(u.individuals, i)
	return i
}

func (u *Universe) Worlds() []*World               { return u.worlds }
func (u *Universe) SocialSystems() []*SocialSystem { return u.socialSystems }
func (u *Universe) Cells() []*Cell                 { return u.cells }
func (u *Universe) Individuals() []*Individual     { return u.individuals }
func (u *Universe) Nature() *Nature                { return u.nature }
func (u *Universe) Metabolism() *Metabolism        { return u.metabolism }
func (u *Universe) Culture() *Culture              { return u.culture }

// holders returns the instances of an entity kind in creation order; taxa
// yield their singleton.
func (u *Universe) holders(k EntityKind) []Holder {
	switch k {
	case WorldKind:
		out := make([]Holder, len(u.worlds))
		for i, w := range u.worlds {
			out[i] = w
		}
		return out
	case SocialSystemKind:
		out := make([]Holder, len(u.socialSystems))
		for i, s := range u.socialSystems {
			out[i] = s
		}
		return out
	case CellKind:
		out := make([]Holder, len(u.cells))
		for i, c := range u.cells {
			out[i] = c
		}
		return out
	case IndividualKind:
		out := make([]Holder, len(u.individuals))
		for i, ind := range u.individuals {
			out[i] = ind
		}
		return out
	case NatureKind:
		return []Holder{u.nature}
	case MetabolismKind:
		return []Holder{u.metabolism}
	case CultureKind:
		return []Holder{u.culture}
	}
	return nil
}

// StateDump is the serializable full state of a universe at one point in
// model time: all slot maps in instance order plus the acquaintance
// network's links by individual id.
type StateDump struct {
	T   float64 `json:"t"`
	Seq uint64  `json:"seq"`

	Worlds        []map[string]interface{} `json:"worlds"`
	SocialSystems []map[string]interface{} `json:"social_systems"`
	Cells         []map[string]interface{} `json:"cells"`
	Individuals   []map[string]interface{} `json:"individuals"`

	Nature     map[string]interface{} `json:"nature"`
	Metabolism map[string]interface{} `json:"metabolism"`
	Culture    map[string]interface{} `json:"culture"`

	Links [][2]int `json:"links"`
}

func captureSlots(h Holder) map[string]interface{} {
	s := h.slotRef()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cp map[string]interface{}
	if err := copier.Copy(&cp, s.vals); err != nil {
		panic("could not copy slot map: " + err.Error())
	}
	if cp == nil {
		cp = make(map[string]interface{})
	}
	return cp
}

// Capture deep-copies the universe state so the caller can serialize it
// while the run continues.
func (u *Universe) Capture(t float64, seq uint64) *StateDump {
	d := &StateDump{
		T:          t,
		Seq:        seq,
		Nature:     captureSlots(u.nature),
		Metabolism: captureSlots(u.metabolism),
		Culture:    captureSlots(u.culture),
	}
	for _, w := range u.worlds {
		d.Worlds = append(d.Worlds, captureSlots(w))
	}
	for _, s := range u.socialSystems {
		d.SocialSystems = append(d.SocialSystems, captureSlots(s))
	}
	for _, c := range u.cells {
		d.Cells = append(d.Cells, captureSlots(c))
	}
	for _, ind := range u.individuals {
		d.Individuals = append(d.Individuals, captureSlots(ind))
	}

	net := u.culture.network
	for _, a := range net.Nodes() {
		for _, b := range net.Neighbors(a) {
			if a.id < b.id {
				d.Links = append(d.Links, [2]int{a.id, b.id})
			}
		}
	}
	return d
}

// Restore loads a state dump into a universe of the same shape.
func (u *Universe) Restore(d *StateDump) error {
	if len(d.Worlds) != len(u.worlds) ||
		len(d.SocialSystems) != len(u.socialSystems) ||
		len(d.Cells) != len(u.cells) ||
		len(d.Individuals) != len(u.individuals) {
		return errors.Wrapf(ErrStateShapeMismatch,
			"dump has %d/%d/%d/%d instances, universe has %d/%d/%d/%d",
			len(d.Worlds), len(d.SocialSystems), len(d.Cells), len(d.Individuals),
			len(u.worlds), len(u.socialSystems), len(u.cells), len(u.individuals))
	}

	for i, w := range u.worlds {
		w.replace(d.Worlds[i])
	}
	for i, s := range u.socialSystems {
		s.replace(d.SocialSystems[i])
	}
	for i, c := range u.cells {
		c.replace(d.Cells[i])
	}
	for i, ind := range u.individuals {
		ind.replace(d.Individuals[i])
	}
	u.nature.replace(d.Nature)
	u.metabolism.replace(d.Metabolism)
	u.culture.replace(d.Culture)

	net := NewNetwork()
	for _, ind := range u.individuals {
		net.AddNode(ind)
	}
	for _, l := range d.Links {
		if l[0] >= len(u.individuals) || l[1] >= len(u.individuals) {
			return errors.Wrapf(ErrStateShapeMismatch, "link %v out of range", l)
		}
		net.Link(u.individuals[l[0]], u.individuals[l[1]])
	}
	u.culture.network = net

	return nil
}
