package grid

import "sync"

// Visitor is called once for every (entity, neighbor) candidate pair.
type Visitor func(entity, neighbor int)

// ForEachEntity calls visit for every entity and each member of its Moore
// neighborhood, the entity itself included.
//
// Entities are split into contiguous ranges, one per worker. All calls for
// a given entity happen on the same goroutine in cursor order, so a visitor
// that writes only to per-entity slots needs no locking. ForEachEntity
// returns after every call has completed.
func (g *Grid) ForEachEntity(visit Visitor) {
	n := len(g.positions)
	if n == 0 {
		return
	}

	workers := g.opts.workers
	if n < g.opts.threshold || workers <= 1 {
		g.ForEachEntityInRange(0, n, visit)
		return
	}

	chunkSize := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.ForEachEntityInRange(start, end, visit)
		}()
	}
	wg.Wait()
}

// ForEachEntityInRange is the sequential kernel of ForEachEntity over
// entities [i0, i1). It is exported for callers that run their own worker
// pools.
func (g *Grid) ForEachEntityInRange(i0, i1 int, visit Visitor) {
	for i := i0; i < i1; i++ {
		it := g.NeighborsOf(i)
		for it.Next() {
			visit(i, it.ID())
		}
	}
}
