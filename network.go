package worldcore

// Network is the undirected acquaintance network between individuals.
// Node order is insertion order so that runs with a fixed seed stay
// reproducible.
type Network struct {
	order     []*Individual
	neighbors map[*Individual]map[*Individual]struct{}
}

func NewNetwork() *Network {
	return &Network{
		neighbors: make(map[*Individual]map[*Individual]struct{}),
	}
}

func (n *Network) AddNode(i *Individual) {
	if _, ok := n.neighbors[i]; ok {
		return
	}
	n.neighbors[i] = make(map[*Individual]struct{})
	n.order = append(n.order, i)
}

func (n *Network) RemoveNode(i *Individual) {
	nbs, ok := n.neighbors[i]
	if !ok {
		return
	}
	for o := range nbs {
		delete(n.neighbors[o], i)
	}
	delete(n.neighbors, i)
	for k, node := range n.order {
		if node == i {
			n.order = append(n.order[:k], n.order[k+1:]...)
			break
		}
	}
}

// Link connects a and b, adding them as nodes if needed.
func (n *Network) Link(a, b *Individual) {
	if a == b {
		return
	}
	n.AddNode(a)
	n.AddNode(b)
	n.neighbors[a][b] = struct{}{}
	n.neighbors[b][a] = struct{}{}
}

func (n *Network) Unlink(a, b *Individual) {
	if nbs, ok := n.neighbors[a]; ok {
		delete(nbs, b)
	}
	if nbs, ok := n.neighbors[b]; ok {
		delete(nbs, a)
	}
}

func (n *Network) HasLink(a, b *Individual) bool {
	_, ok := n.neighbors[a][b]
	return ok
}

func (n *Network) Degree(i *Individual) int {
	return len(n.neighbors[i])
}

// Nodes returns the nodes in insertion order.
func (n *Network) Nodes() []*Individual {
	out := make([]*Individual, len(n.order))
	copy(out, n.order)
	return out
}

func (n *Network) Neighbors(i *Individual) []*Individual {
	out := make([]*Individual, 0, len(n.neighbors[i]))
	for _, o := range n.order {
		if _, ok := n.neighbors[i][o]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (n *Network) NodeCount() int { return len(n.order) }

func (n *Network) LinkCount() int {
	total := 0
	for _, nbs := range n.neighbors {
		total += len(nbs)
	}
	return total / 2
}

// AverageClustering returns the mean local clustering coefficient over all
// nodes; nodes of degree below two contribute zero.
func (n *Network) AverageClustering() float64 {
	if len(n.order) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range n.order {
		nbs := n.neighbors[i]
		k := len(nbs)
		if k < 2 {
			continue
		}
		closed := 0
		for a := range nbs {
			for b := range nbs {
				if a == b {
					continue
				}
				if _, ok := n.neighbors[a][b]; ok {
					closed++
				}
			}
		}
		sum += float64(closed) / float64(k*(k-1))
	}
	return sum / float64(len(n.order))
}

// SplitBy reports whether the network has split along the given label:
// true when no link joins two nodes with different labels.
func (n *Network) SplitBy(label func(*Individual) interface{}) bool {
	for i, nbs := range n.neighbors {
		li := label(i)
		for o := range nbs {
			if label(o) != li {
				return false
			}
		}
	}
	return true
}
