// Package program is the builder surface: the scoped Program context,
// per-rank buffer state, and the operation-recording methods on Ref (send,
// copy, reduce, group, split). It corresponds to sccl/language/__init__.py's
// SCCLProgram/Process/Ref.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package program

import (
	"github.com/NVIDIA/scclang/cmn/errkind"
	"github.com/NVIDIA/scclang/cmn/nlog"
	"github.com/NVIDIA/scclang/collective"
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/rankdag"
	"github.com/NVIDIA/scclang/topology"
)

// Builder is the explicit handle threaded through the surface (Design Note
// §9: "Context-scoped builder" -- the process-wide slot below is a
// convenience wrapper kept only for ergonomic parity with the original
// `with SCCLProgram(...) as p:` usage).
type Builder struct {
	Name       string
	Collective collective.Collective
	Topology   topology.Topology
	Protocol   string

	ctr   *ir.Counter
	arena *ir.Arena
	ranks []*RankState
}

// New seeds every rank's input buffer from the collective's precondition,
// exactly as SCCLProgram.__init__ does.
func New(name string, coll collective.Collective, topo topology.Topology) *Builder {
	b := &Builder{Name: name, Collective: coll, Topology: topo, ctr: &ir.Counter{}, arena: ir.NewArena()}
	for _, r := range coll.Ranks() {
		rs := newRankState(r, b)
		for _, c := range coll.Chunks() {
			if coll.Precondition(r, c) {
				ref := &Ref{
					ChunkRef: ir.ChunkRef{Rank: r, Buffer: ir.BufInput, Index: c, Size: 1},
					Creator:  ir.NoOp,
					b:        b,
				}
				rs.input[c] = ref
				rs.chunks[ref.Slot()] = &ir.Chunk{OriginRank: r, OriginIndex: c, Rank: r, Buffer: ir.BufInput, Index: c}
			}
		}
		b.ranks = append(b.ranks, rs)
	}
	return b
}

// Rank returns the per-rank builder state for r.
func (b *Builder) Rank(r int) *RankState { return b.ranks[r] }

// DAG exposes the per-rank dependency graph for downstream fusion/assign.
func (b *Builder) DAG(r int) *rankdag.DAG { return b.ranks[r].dag }

// Counter returns the shared monotonic construction-id source.
func (b *Builder) Counter() *ir.Counter { return b.ctr }

// Arena returns the program-wide op arena shared by every rank's DAG.
func (b *Builder) Arena() *ir.Arena { return b.arena }

// current is the process-wide "current program" slot (spec §4.1, §5):
// strictly single-writer, entered once and exited exactly once.
var current *Builder

// Enter installs b as the current program. Fails NestedContext if another
// program is already in context.
func (b *Builder) Enter() error {
	if current != nil {
		return errkind.New(errkind.NestedContext, -1, -1, "a program is already in context")
	}
	current = b
	return nil
}

// Exit clears the current program slot. Fails NoContext if nothing (or a
// different builder) is in context.
func (b *Builder) Exit() error {
	if current == nil {
		return errkind.New(errkind.NoContext, -1, -1, "no program in context")
	}
	if current != b {
		return errkind.New(errkind.NoContext, -1, -1, "exiting a program that is not the current context")
	}
	current = nil
	return nil
}

// Current returns the builder in scope, or NoContext if none.
func Current() (*Builder, error) {
	if current == nil {
		return nil, errkind.New(errkind.NoContext, -1, -1, "no program in context")
	}
	return current, nil
}

// Rank is the package-level convenience mirroring the original `Rank(r)`
// top-level function, resolving through the current-program slot.
func Rank(r int) (*RankState, error) {
	b, err := Current()
	if err != nil {
		return nil, err
	}
	return b.Rank(r), nil
}

// With runs fn with a freshly entered program in scope, always exiting
// afterward -- the ergonomic wrapper around Enter/Exit (Design Note §9).
func With(name string, coll collective.Collective, topo topology.Topology, fn func(*Builder) error) error {
	b := New(name, coll, topo)
	if err := b.Enter(); err != nil {
		return err
	}
	defer func() {
		if err := b.Exit(); err != nil {
			nlog.Errorln("exiting program context:", err)
		}
	}()
	return fn(b)
}
