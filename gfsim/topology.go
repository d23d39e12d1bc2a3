package gfsim

// Topology wires the virtual ether: it fixes the node count and which
// pairs of nodes hear each other. Links are symmetric; implementations may
// assume 0 <= i,j < Nodes().
type Topology interface {
	Nodes() int
	Linked(i, j int) bool
}

// Line arranges N nodes in a chain, each hearing only its index neighbors.
// It is the worst case for flood latency: a packet from node 0 needs N-1
// hops to reach the far end.
type Line struct {
	N int
}

func (l Line) Nodes() int { return l.N }

func (l Line) Linked(i, j int) bool {
	d := i - j
	return d == 1 || d == -1
}

// FullMesh connects every pair of nodes: a single hop suffices and every
// relay transmission overlaps with all the others.
type FullMesh struct {
	N int
}

func (m FullMesh) Nodes() int { return m.N }

func (m FullMesh) Linked(i, j int) bool { return i != j }

// Tree arranges N nodes in layers where each non-leaf has BranchFactor
// children: node 0 is the root, nodes 1..BranchFactor its children, and so
// on layer by layer. Each node hears its parent and children only.
//
// BranchFactor must be at least 1; 1 degenerates to a Line.
type Tree struct {
	N            int
	BranchFactor int
}

func (t Tree) Nodes() int { return t.N }

func (t Tree) Linked(i, j int) bool {
	if i == j {
		return false
	}
	return t.parent(i) == j || t.parent(j) == i
}

// parent maps an index to its parent index, -1 for the root. It walks the
// layer widths until it finds the layer containing idx, then maps the
// offset within that layer BranchFactor-to-one onto the layer before it.
func (t Tree) parent(idx int) int {
	if idx == 0 {
		return -1
	}
	if idx <= t.BranchFactor {
		return 0
	}

	layerStart := 1
	width := t.BranchFactor
	for layerStart+width <= idx {
		layerStart += width
		width *= t.BranchFactor
	}

	prevStart := layerStart - width/t.BranchFactor
	return prevStart + (idx-layerStart)/t.BranchFactor
}
