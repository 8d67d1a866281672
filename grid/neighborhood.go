package grid

// MaxNeighborhood is the size of a full Moore neighborhood: the box itself,
// 6 face, 12 edge and 8 corner neighbors.
const MaxNeighborhood = 27

// Neighborhood is a fixed-capacity list of box indices. It is a plain value
// so building one does not allocate.
type Neighborhood struct {
	boxes [MaxNeighborhood]int32
	n     int
}

// Len returns the number of boxes in the neighborhood.
func (nb *Neighborhood) Len() int { return nb.n }

// At returns the k-th box index.
func (nb *Neighborhood) At(k int) int { return int(nb.boxes[k]) }

// Contains reports whether the box at idx is part of the neighborhood.
func (nb *Neighborhood) Contains(idx int) bool {
	for _, b := range nb.boxes[:nb.n] {
		if int(b) == idx {
			return true
		}
	}
	return false
}

// Append adds a box index. It panics when the neighborhood is full.
func (nb *Neighborhood) Append(idx int) {
	nb.boxes[nb.n] = int32(idx)
	nb.n++
}

// Moore returns the boxes within Chebyshev distance 1 of center, in
// ascending index order. Offsets that leave the grid on any axis are
// dropped, so boxes on a face, edge or corner have fewer than 27 neighbors.
// An out-of-range center yields an empty neighborhood.
func (g *Grid) Moore(center int) Neighborhood {
	var nb Neighborhood
	if center < 0 || center >= len(g.store.boxes) {
		return nb
	}
	c := g.Coord(center)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := c.Add(dx, dy, dz)
				// Range-check before linearizing: an out-of-range
				// coordinate can alias to a valid but unrelated index.
				if !n.In(g.dims) {
					continue
				}
				nb.Append(g.Index(n))
			}
		}
	}
	return nb
}
