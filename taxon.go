package worldcore

// Process taxa are the singleton carriers of processes that are not owned
// by an individual entity: the natural, metabolic and cultural spheres of
// a model run.

type Nature struct {
	Slots

	worlds map[*World]struct{}
}

func newNature() *Nature {
	return &Nature{worlds: make(map[*World]struct{})}
}

func (n *Nature) entityKind() EntityKind { return NatureKind }

func (n *Nature) Worlds() []*World { return worldSet(n.worlds) }

type Metabolism struct {
	Slots

	worlds map[*World]struct{}
}

func newMetabolism() *Metabolism {
	return &Metabolism{worlds: make(map[*World]struct{})}
}

func (m *Metabolism) entityKind() EntityKind { return MetabolismKind }

func (m *Metabolism) Worlds() []*World { return worldSet(m.worlds) }

// Culture owns the acquaintance network between individuals.
type Culture struct {
	Slots

	worlds  map[*World]struct{}
	network *Network
}

func newCulture() *Culture {
	return &Culture{
		worlds:  make(map[*World]struct{}),
		network: NewNetwork(),
	}
}

func (c *Culture) entityKind() EntityKind { return CultureKind }

func (c *Culture) Worlds() []*World { return worldSet(c.worlds) }

// AcquaintanceNetwork returns the undirected network of who knows whom.
func (c *Culture) AcquaintanceNetwork() *Network { return c.network }

func worldSet(m map[*World]struct{}) []*World {
	out := make([]*World, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	return out
}
