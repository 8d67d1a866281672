package grid

import "iter"

// Cursor walks the members of a list of boxes, skipping empty ones. It is
// single-pass and cannot be rewound. Members of one box come out in the
// reverse of the order they were added.
//
//	it := g.NeighborsOf(i)
//	for it.Next() {
//		j := it.ID()
//		...
//	}
type Cursor struct {
	boxes []Box
	succ  []int32
	nb    Neighborhood

	pos  int   // next neighborhood slot to open
	id   int32 // current entity
	left int32 // members of the current box after id
}

// Cursor returns a cursor over the members of every box in nb.
func (g *Grid) Cursor(nb Neighborhood) Cursor {
	return Cursor{boxes: g.store.boxes, succ: g.store.succ, nb: nb}
}

// Members returns a cursor over a single box.
func (g *Grid) Members(box int) Cursor {
	var nb Neighborhood
	if box >= 0 && box < len(g.store.boxes) {
		nb.Append(box)
	}
	return g.Cursor(nb)
}

// NeighborsOf returns a cursor over every entity in the Moore neighborhood
// of entity's box. The entity itself is included; callers that want only
// the others must skip it.
func (g *Grid) NeighborsOf(entity int) Cursor {
	return g.Cursor(g.Moore(g.BoxOf(entity)))
}

// Neighbors is NeighborsOf as a range-over-func sequence.
func (g *Grid) Neighbors(entity int) iter.Seq[int] {
	return func(yield func(int) bool) {
		it := g.NeighborsOf(entity)
		for it.Next() {
			if !yield(it.ID()) {
				return
			}
		}
	}
}

// Next advances to the next entity and reports whether there is one.
func (c *Cursor) Next() bool {
	if c.left > 0 {
		c.id = c.succ[c.id]
		c.left--
		return true
	}
	for c.pos < c.nb.n {
		b := c.boxes[c.nb.boxes[c.pos]]
		c.pos++
		if b.length == 0 {
			continue
		}
		c.id = b.start
		c.left = b.length - 1
		return true
	}
	return false
}

// ID returns the current entity. Only valid after Next returned true.
func (c *Cursor) ID() int { return int(c.id) }
