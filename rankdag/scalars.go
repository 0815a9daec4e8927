package rankdag

import (
	"container/heap"

	"github.com/NVIDIA/scclang/ir"
)

// ComputeChunkSteps fills in op.ChunkStep for every op in the DAG: the
// length of the longest dependency chain ending at the op, not counting the
// synthetic start node. Depends edges always point to earlier-constructed
// ops (the builder only ever links backward), so a single forward pass over
// construction order is already topological.
func (d *DAG) ComputeChunkSteps() {
	ops := d.Arena.ForRank(d.Rank)
	step := make(map[ir.OpID]int, len(ops))
	for _, op := range ops {
		best := 0
		for _, dep := range op.Depends {
			if dep == d.Start {
				continue
			}
			if s := step[dep] + 1; s > best {
				best = s
			}
		}
		step[op.ID] = best
		op.ChunkStep = best
	}
}

// SetPriorities applies a priority function to every non-start op; ops not
// covered by fn keep the spec's default of 0.
func (d *DAG) SetPriorities(fn func(op *ir.Op) int) {
	if fn == nil {
		return
	}
	for _, op := range d.Arena.ForRank(d.Rank) {
		if op.ID == d.Start {
			continue
		}
		op.Priority = fn(op)
	}
}

// Heap is a container/heap.Interface over *ir.Op using the
// (priority, chunk_step, construction id) total order from spec §4.2.
type Heap []*ir.Op

func (h Heap) Len() int            { return len(h) }
func (h Heap) Less(i, j int) bool  { return ir.HeapLess(h[i], h[j]) }
func (h Heap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *Heap) Push(x any)         { *h = append(*h, x.(*ir.Op)) }
func (h *Heap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ReadyOrder walks the DAG from Start in heap order, visiting every op
// exactly once via Next edges, mirroring the python scheduler's traversal
// ("for o in op.next: heapq.heappush(ops, o)"). skipCopy excludes copy ops
// from the returned order (both assignment variants pass true).
func (d *DAG) ReadyOrder(skipCopy bool) []*ir.Op {
	h := &Heap{}
	heap.Init(h)
	visited := make(map[ir.OpID]bool)
	start := d.Arena.Get(d.Start)
	for _, next := range start.Next {
		heap.Push(h, d.Arena.Get(next))
	}
	visited[d.Start] = true

	var order []*ir.Op
	for h.Len() > 0 {
		op := heap.Pop(h).(*ir.Op)
		if visited[op.ID] {
			continue
		}
		visited[op.ID] = true
		if !(skipCopy && op.Inst == ir.Copy) {
			order = append(order, op)
		}
		for _, next := range op.Next {
			if !visited[next] {
				heap.Push(h, d.Arena.Get(next))
			}
		}
	}
	return order
}
