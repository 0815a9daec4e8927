package ir

import "github.com/NVIDIA/scclang/stats"

// Arena owns every Op recorded across the whole program. References between
// ops (match, depends) are plain OpID indices into this single slice, so
// they stay valid across rank boundaries (a send's Match points at a recv
// owned by a different rank) without Go-level pointer cycles (Design Note,
// §9: "Cyclic handles").
type Arena struct {
	ops []*Op
}

func NewArena() *Arena { return &Arena{} }

// Counter is a monotonic, program-wide id source, shared by every rank so
// ConstructionID order matches program-wide recording order -- the final
// heap tie-break (spec §4.2, §9).
type Counter struct{ next int64 }

func (c *Counter) Next() int64 {
	id := c.next
	c.next++
	return id
}

// Add installs op into the arena, assigning its ID and ConstructionID, and
// returns the new OpID.
func (a *Arena) Add(op *Op, ctr *Counter) OpID {
	op.ID = OpID(len(a.ops))
	op.ConstructionID = ctr.Next()
	a.ops = append(a.ops, op)
	stats.OpsRecorded.WithLabelValues(op.Inst.String()).Inc()
	return op.ID
}

func (a *Arena) Get(id OpID) *Op {
	if id == NoOp {
		return nil
	}
	return a.ops[id]
}

func (a *Arena) Len() int { return len(a.ops) }

// All returns every op in construction order.
func (a *Arena) All() []*Op { return a.ops }

// ForRank returns every op owned by rank, in construction order.
func (a *Arena) ForRank(rank int) []*Op {
	var out []*Op
	for _, op := range a.ops {
		if op.Rank == rank {
			out = append(out, op)
		}
	}
	return out
}

// AddFused installs a newly-constructed op produced by a fusion rewrite. It
// behaves like Add but takes an explicit ConstructionID instead of drawing a
// fresh one, since a fused op inherits the earlier absorbed op's position in
// the heap tie-break order rather than starting a new one (spec §4.3: "keeps
// the earlier step/tb").
func (a *Arena) AddFused(op *Op, constructionID int64) OpID {
	op.ID = OpID(len(a.ops))
	op.ConstructionID = constructionID
	a.ops = append(a.ops, op)
	return op.ID
}

// Redirect replaces every occurrence of old with replacement across every
// op's Depends, Next, and Match lists, program-wide. Used after a fusion
// rewrite removes an op: anything that referenced it by OpID must now
// reference the op that absorbed it.
func (a *Arena) Redirect(old, replacement OpID) {
	redirect := func(ids []OpID) []OpID {
		out := ids[:0]
		seen := make(map[OpID]bool, len(ids))
		for _, id := range ids {
			if id == old {
				id = replacement
			}
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return out
	}
	for _, op := range a.ops {
		op.Depends = redirect(op.Depends)
		op.Next = redirect(op.Next)
		op.Match = redirect(op.Match)
	}
}
