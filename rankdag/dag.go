// Package rankdag implements the per-rank dependency graph the builder
// threads operations through: a synthetic start node, slot-keyed writer
// tracking, and the derived scalars (chunk_step, priority) that drive
// deterministic heap-ordered scheduling (spec §4.2).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package rankdag

import "github.com/NVIDIA/scclang/ir"

// DAG is one rank's op graph. The builder (package program) is the only
// writer; fusion and assign only read it (plus assign mutates tb/channel/step
// on the ops themselves, per spec §3 "Lifecycles").
type DAG struct {
	Rank   int
	Arena  *ir.Arena
	Start  ir.OpID
	writer map[ir.Slot]ir.OpID
}

// New creates an empty per-rank DAG over the program-wide arena, with its
// synthetic start op already recorded. arena is shared across every rank so
// that cross-rank references (a send's Match pointing at a recv owned by a
// different rank) stay valid plain OpID indices (Design Note, §9: "Cyclic
// handles").
func New(rank int, arena *ir.Arena, ctr *ir.Counter) *DAG {
	start := ir.NewOp(ir.Start, rank, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	id := arena.Add(start, ctr)
	return &DAG{
		Rank:   rank,
		Arena:  arena,
		Start:  id,
		writer: make(map[ir.Slot]ir.OpID),
	}
}

// Append records op into the DAG: every slot in reads gets the op linked as
// a dependent of its last writer (or Start, if the slot has never been
// written on this rank); op is then added to the arena; every slot in reads
// or writes is updated to name op as its new last writer.
//
// This is the mechanism spec §4.1 describes: "When an op writes slot s, the
// builder records it as the writer of s. When an op reads slot s, it lists
// the current writer in depends and updates the writer to itself."
func (d *DAG) Append(op *ir.Op, ctr *ir.Counter, reads, writes []ir.Slot) ir.OpID {
	seen := make(map[ir.OpID]bool, len(op.Depends))
	for _, dep := range op.Depends {
		seen[dep] = true
	}
	addDep := func(pred ir.OpID) {
		if !seen[pred] {
			seen[pred] = true
			op.Depends = append(op.Depends, pred)
		}
	}

	for _, s := range reads {
		pred, ok := d.writer[s]
		if !ok {
			pred = d.Start
		}
		addDep(pred)
	}
	if len(reads) == 0 && len(writes) > 0 {
		// A pure-write op (e.g. the first write into a fresh slot on a
		// rank that already has other ops) still needs an edge from
		// start so the scheduler can reach it.
		addDep(d.Start)
	}

	id := d.Arena.Add(op, ctr)

	for _, dep := range op.Depends {
		predOp := d.Arena.Get(dep)
		predOp.Next = append(predOp.Next, id)
	}
	for _, s := range reads {
		d.writer[s] = id
	}
	for _, s := range writes {
		d.writer[s] = id
	}
	return id
}

// LastWriter reports the op currently responsible for slot s, or Start if
// nothing has written it yet on this rank.
func (d *DAG) LastWriter(s ir.Slot) ir.OpID {
	if id, ok := d.writer[s]; ok {
		return id
	}
	return d.Start
}

// Ops returns every op recorded on this rank (including Start) in
// construction order.
func (d *DAG) Ops() []*ir.Op { return d.Arena.ForRank(d.Rank) }
