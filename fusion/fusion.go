// Package fusion implements the peephole rewrites that collapse adjacent
// single-TB ops into combined instructions (spec §4.3). It operates on the
// op lists a prior assignment pass (package assign) has already grouped by
// tb, mutating each Threadblock's Ops list and the shared arena in place.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package fusion

import (
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/stats"
)

// Run applies every rule to every TB, repeating until a fixpoint: no further
// rewrite is possible anywhere. Order within a single pass over a TB does
// not affect the final result (spec §8, property 4: "fusion is confluent"),
// since each rewrite only ever looks at its own immediate neighbors.
func Run(arena *ir.Arena, tbs map[int]*ir.Threadblock) {
	for {
		changed := false
		for _, tb := range tbs {
			if fuseOnce(arena, tb) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// fuseOnce scans tb's op list once, applying the first rewrite it finds (the
// three-op rule takes precedence over the two-op rrc-send rule, per spec
// §4.3), and reports whether anything changed. The caller loops fuseOnce
// until it returns false, matching the fixpoint passes.rcs/rrcs_rrs are
// re-invoked with in the original scheduler.
func fuseOnce(arena *ir.Arena, tb *ir.Threadblock) bool {
	ops := tb.Ops

	for i := 0; i+2 < len(ops); i++ {
		a, b, c := arena.Get(ops[i]), arena.Get(ops[i+1]), arena.Get(ops[i+2])
		if matchRRS(a, b, c) {
			fuse(arena, tb, i, i+1, rewriteRRS(a, b))
			return true
		}
	}
	for i := 0; i+1 < len(ops); i++ {
		a, b := arena.Get(ops[i]), arena.Get(ops[i+1])
		if matchRRC(a, b) {
			fuse(arena, tb, i, i+1, rewriteRRC(a, b))
			return true
		}
		if matchRCS(a, b) {
			fuse(arena, tb, i, i+1, rewriteRCS(a, b))
			return true
		}
		if matchRRCS(a, b) {
			fuse(arena, tb, i, i+1, rewriteRRCS(a, b))
			return true
		}
	}
	return false
}

// singleChunk guards every rule against the open "no multi-chunk sends"
// precondition (spec §4.3, §9, Open Question 1): fusion only applies when
// every operand touches exactly one chunk.
func singleChunk(ops ...*ir.Op) bool {
	for _, op := range ops {
		if op.Src.Size > 1 || op.Dst.Size > 1 {
			return false
		}
	}
	return true
}

func sameSlot(a, b ir.ChunkRef) bool {
	return a.Rank == b.Rank && a.Buffer == b.Buffer && a.Index == b.Index
}

// matchRRC recognizes recv(src->X) ; reduce(X into Y) on the same TB: the
// recv's written chunk is immediately consumed as the reduce's operand.
// Not one of the three rules spec §4.3 tabulates directly, but required to
// ever produce the recv_reduce_copy op those three rules assume as their
// starting point -- recv_reduce_copy never appears from any builder call,
// only from fusing a recv into a following reduce (Design Note, open
// question on how rrc is formed).
func matchRRC(a, b *ir.Op) bool {
	return a.Inst == ir.Recv && b.Inst == ir.Reduce && a.TB == b.TB &&
		sameSlot(a.Dst, b.Src) && singleChunk(a, b)
}

func rewriteRRC(a, b *ir.Op) *ir.Op {
	op := ir.NewOp(ir.RecvReduceCopy, a.Rank, a.Src, b.Dst, union(a.Depends, b.Depends))
	op.Match = append(append([]ir.OpID{}, a.Match...), b.Match...)
	return op
}

// matchRCS recognizes recv(src->X) ; send(X->dst).
func matchRCS(a, b *ir.Op) bool {
	return a.Inst == ir.Recv && b.Inst == ir.Send && a.TB == b.TB &&
		sameSlot(a.Dst, b.Src) && singleChunk(a, b)
}

func rewriteRCS(a, b *ir.Op) *ir.Op {
	op := ir.NewOp(ir.RecvCopySend, a.Rank, a.Src, b.Dst, union(a.Depends, b.Depends))
	op.Match = append(append([]ir.OpID{}, a.Match...), b.Match...)
	return op
}

// matchRRCS recognizes recv_reduce_copy(src->X) ; send(X->dst).
func matchRRCS(a, b *ir.Op) bool {
	return a.Inst == ir.RecvReduceCopy && b.Inst == ir.Send && a.TB == b.TB &&
		sameSlot(a.Dst, b.Src) && singleChunk(a, b)
}

func rewriteRRCS(a, b *ir.Op) *ir.Op {
	op := ir.NewOp(ir.RecvReduceCopySend, a.Rank, a.Src, b.Dst, append([]ir.OpID{}, a.Depends...))
	op.Match = append(append([]ir.OpID{}, a.Match...), b.Match...)
	return op
}

// matchRRS recognizes recv_reduce_copy(src->X) ; send(X->dst) ; recv(_->X),
// the three-op rule that takes precedence over matchRRCS when both apply
// (spec §4.3): it leaves the trailing recv untouched, only folding the first
// two ops into recv_reduce_send.
func matchRRS(a, b, c *ir.Op) bool {
	return a.Inst == ir.RecvReduceCopy && b.Inst == ir.Send && a.TB == b.TB &&
		sameSlot(a.Dst, b.Src) && c.Inst == ir.Recv && sameSlot(a.Dst, c.Dst) && singleChunk(a, b, c)
}

func rewriteRRS(a, b *ir.Op) *ir.Op {
	op := ir.NewOp(ir.RecvReduceSend, a.Rank, a.Src, b.Dst, append([]ir.OpID{}, a.Depends...))
	op.Match = append(append([]ir.OpID{}, a.Match...), b.Match...)
	return op
}

// dropSelf removes self as a dependency: Redirect rewrites any op that
// depended on one of the two just-fused ops to depend on self instead, and
// the fused op itself inherited one of those same depends lists, so self can
// end up listing itself as its own predecessor.
func dropSelf(ids []ir.OpID, self ir.OpID) []ir.OpID {
	out := ids[:0]
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func union(a, b []ir.OpID) []ir.OpID {
	seen := make(map[ir.OpID]bool, len(a)+len(b))
	out := make([]ir.OpID, 0, len(a)+len(b))
	for _, ids := range [][]ir.OpID{a, b} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// fuse installs newOp in place of tb.Ops[i:j+1], inheriting the earlier op's
// TB/step/ConstructionID, redirects every arena-wide Depends/Next/Match
// reference to the two removed ops, and re-links the TB's internal depends
// chain to the immediate predecessor (spec §4.3).
func fuse(arena *ir.Arena, tb *ir.Threadblock, i, j int, newOp *ir.Op) {
	removedA, removedB := tb.Ops[i], tb.Ops[j]
	earlier := arena.Get(removedA)
	newOp.TB = earlier.TB
	newOp.Channel = earlier.Channel
	newOp.Priority = earlier.Priority
	newOp.ChunkStep = earlier.ChunkStep

	id := arena.AddFused(newOp, earlier.ConstructionID)
	arena.Redirect(removedA, id)
	arena.Redirect(removedB, id)
	newOp.Depends = dropSelf(newOp.Depends, id)
	stats.OpsFused.WithLabelValues(newOp.Inst.String()).Inc()

	next := make([]ir.OpID, 0, len(tb.Ops)-1)
	next = append(next, tb.Ops[:i]...)
	next = append(next, id)
	next = append(next, tb.Ops[j+1:]...)
	tb.Ops = next

	relinkSteps(arena, tb)
}

// relinkSteps re-numbers step and re-points each op's depends at its
// immediate predecessor within the TB, per spec §4.3 ("global ordering is
// preserved by re-linking depends to the immediate predecessor inside the
// TB after each rewrite").
func relinkSteps(arena *ir.Arena, tb *ir.Threadblock) {
	for i, id := range tb.Ops {
		op := arena.Get(id)
		op.Step = i
		if i > 0 {
			op.Depends = []ir.OpID{tb.Ops[i-1]}
		}
	}
}
