package worldcore

// World is the topmost entity type: one planet carrying social systems,
// cells, and the process taxa acting on it.
type World struct {
	Slots

	id int

	nature     *Nature
	metabolism *Metabolism
	culture    *Culture

	socialSystems map[*SocialSystem]struct{}
	cells         map[*Cell]struct{}

	// cache over cells, rebuilt on demand
	individuals []*Individual
	indsStale   bool
}

func (w *World) entityKind() EntityKind { return WorldKind }

func (w *World) ID() int { return w.id }

func (w *World) Nature() *Nature { return w.nature }

func (w *World) SetNature(n *Nature) {
	if w.nature != nil {
		delete(w.nature.worlds, w)
	}
	if n != nil {
		n.worlds[w] = struct{}{}
	}
	w.nature = n
}

func (w *World) Metabolism() *Metabolism { return w.metabolism }

func (w *World) SetMetabolism(m *Metabolism) {
	if w.metabolism != nil {
		delete(w.metabolism.worlds, w)
	}
	if m != nil {
		m.worlds[w] = struct{}{}
	}
	w.metabolism = m
}

func (w *World) Culture() *Culture { return w.culture }

func (w *World) SetCulture(c *Culture) {
	if w.culture != nil {
		delete(w.culture.worlds, w)
	}
	if c != nil {
		c.worlds[w] = struct{}{}
	}
	w.culture = c
}

// SocialSystems returns all social systems on this world.
func (w *World) SocialSystems() []*SocialSystem {
	out := make([]*SocialSystem, 0, len(w.socialSystems))
	for s := range w.socialSystems {
		out = append(out, s)
	}
	return out
}

// TopLevelSocialSystems returns the social systems without a higher one.
func (w *World) TopLevelSocialSystems() []*SocialSystem {
	var out []*SocialSystem
	for s := range w.socialSystems {
		if s.nextHigher == nil {
			out = append(out, s)
		}
	}
	return out
}

// Cells returns all cells on this world.
func (w *World) Cells() []*Cell {
	out := make([]*Cell, 0, len(w.cells))
	for c := range w.cells {
		out = append(out, c)
	}
	return out
}

// Individuals aggregates the individuals residing on this world from its
// cells. The result is cached until cell membership changes.
func (w *World) Individuals() []*Individual {
	if w.indsStale || w.individuals == nil {
		w.individuals = w.individuals[:0]
		for c := range w.cells {
			for i := range c.individuals {
				w.individuals = append(w.individuals, i)
			}
		}
		w.indsStale = false
	}
	return w.individuals
}

func (w *World) invalidateIndividuals() { w.indsStale = true }

// SocialSystem is a stratum of social organisation on a world; social
// systems may nest via a next-higher system.
type SocialSystem struct {
	Slots

	id int

	world      *World
	nextHigher *SocialSystem
	cells      map[*Cell]struct{}
}

func (s *SocialSystem) entityKind() EntityKind { return SocialSystemKind }

func (s *SocialSystem) ID() int { return s.id }

func (s *SocialSystem) World() *World { return s.world }

func (s *SocialSystem) SetWorld(w *World) {
	if s.world != nil {
		delete(s.world.socialSystems, s)
	}
	if w != nil {
		w.socialSystems[s] = struct{}{}
	}
	s.world = w
}

func (s *SocialSystem) NextHigher() *SocialSystem { return s.nextHigher }

func (s *SocialSystem) SetNextHigher(h *SocialSystem) { s.nextHigher = h }

func (s *SocialSystem) Cells() []*Cell {
	out := make([]*Cell, 0, len(s.cells))
	for c := range s.cells {
		out = append(out, c)
	}
	return out
}

// Cell is a piece of the planetary surface.
type Cell struct {
	Slots

	id int

	world        *World
	socialSystem *SocialSystem
	individuals  map[*Individual]struct{}
}

func (c *Cell) entityKind() EntityKind { return CellKind }

func (c *Cell) ID() int { return c.id }

func (c *Cell) World() *World { return c.world }

func (c *Cell) SetWorld(w *World) {
	if c.world != nil {
		delete(c.world.cells, c)
		c.world.invalidateIndividuals()
	}
	if w != nil {
		w.cells[c] = struct{}{}
		w.invalidateIndividuals()
	}
	c.world = w
}

func (c *Cell) SocialSystem() *SocialSystem { return c.socialSystem }

func (c *Cell) SetSocialSystem(s *SocialSystem) {
	if c.socialSystem != nil {
		delete(c.socialSystem.cells, c)
	}
	if s != nil {
		s.cells[c] = struct{}{}
	}
	c.socialSystem = s
}

func (c *Cell) Individuals() []*Individual {
	out := make([]*Individual, 0, len(c.individuals))
	for i := range c.individuals {
		out = append(out, i)
	}
	return out
}

// Individual is a representative member of a cell's population.
type Individual struct {
	Slots

	id int

	cell *Cell
}

func (i *Individual) entityKind() EntityKind { return IndividualKind }

func (i *Individual) ID() int { return i.id }

func (i *Individual) Cell() *Cell { return i.cell }

// SetCell moves the individual to another cell, keeping the cells' and
// worlds' registries consistent.
func (i *Individual) SetCell(c *Cell) {
	if i.cell != nil {
		delete(i.cell.individuals, i)
		if i.cell.world != nil {
			i.cell.world.invalidateIndividuals()
		}
	}
	if c != nil {
		c.individuals[i] = struct{}{}
		if c.world != nil {
			c.world.invalidateIndividuals()
		}
	}
	i.cell = c
}
