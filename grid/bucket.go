package grid

// Box is one cell of the partition. It references its members by entity id
// through the successor table of the grid that owns it.
type Box struct {
	start  int32
	length int32
}

// Start returns the most recently added member. Meaningless for empty boxes.
func (b Box) Start() int { return int(b.start) }

// Len returns the number of entities in the box.
func (b Box) Len() int { return int(b.length) }

// IsEmpty reports whether the box holds no entities.
func (b Box) IsEmpty() bool { return b.length == 0 }

// add prepends id to the box chain. Traversal order is the reverse of
// insertion order.
func (b *Box) add(id int32, succ []int32) {
	if b.length > 0 {
		succ[id] = b.start
	}
	b.start = id
	b.length++
}

// buckets is the box array plus the successor table threading each box's
// members into a singly-linked chain. A chain ends after length hops; the
// successor of its last member is stale and never read.
type buckets struct {
	boxes []Box
	succ  []int32
}

func newBuckets(numBoxes, numEntities int) buckets {
	return buckets{
		boxes: make([]Box, numBoxes),
		succ:  make([]int32, numEntities),
	}
}

// add assigns entity id to the box at index box.
func (s *buckets) add(id int32, box int) {
	s.boxes[box].add(id, s.succ)
}
