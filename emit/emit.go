// Package emit is the emitter facade (spec §4.5): it reads the per-rank TB
// tables a prior assignment pass produced, validates them, and hands the
// resulting GPU records off to an xmlio.Writer.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package emit

import (
	"fmt"
	"io"
	"sort"

	"github.com/NVIDIA/scclang/assign"
	"github.com/NVIDIA/scclang/cmn/errkind"
	"github.com/NVIDIA/scclang/fusion"
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/program"
	"github.com/NVIDIA/scclang/xmlio"
)

// Compile runs the full middle-end pipeline over every rank in b: manual
// assignment first (grouping ops by the tb/channel the builder recorded),
// then fusion to a fixpoint, then -- if auto is set -- automatic assignment
// over the now-fused op set (Design Note, Open Question decision on
// fusion/assignment ordering). It returns the resolved per-rank TB tables,
// ready for Program.
func Compile(b *program.Builder, auto bool) (map[int]map[int]*ir.Threadblock, error) {
	perRank := make(map[int]map[int]*ir.Threadblock, b.Collective.NumRanks())
	for _, r := range b.Collective.Ranks() {
		dag := b.DAG(r)
		dag.ComputeChunkSteps()

		tbs, err := assign.ManualAssign(dag)
		if err != nil {
			return nil, err
		}
		fusion.Run(b.Arena(), tbs)
		if auto {
			tbs, err = assign.AutoAssign(dag)
			if err != nil {
				return nil, err
			}
		}
		perRank[r] = tbs
	}
	return perRank, nil
}

// Rank builds the ir.Gpu record for one rank's assigned thread-blocks, TBs
// sorted by id for deterministic output. Each TB's ops are copied in their
// Ops order, which assign and fusion keep equal to step order; Rank does not
// re-sort them by the ops' Step fields.
func Rank(rank int, tbs map[int]*ir.Threadblock) *ir.Gpu {
	g := &ir.Gpu{Rank: rank}
	ids := make([]int, 0, len(tbs))
	for id := range tbs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		tb := tbs[id]
		sorted := append([]ir.OpID{}, tb.Ops...)
		g.TBs = append(g.TBs, &ir.Threadblock{
			ID: tb.ID, Send: tb.Send, Recv: tb.Recv, Channel: tb.Channel, Ops: sorted,
		})
	}
	return g
}

// Validate checks spec §8 property 1: every send has exactly one matching
// recv with identical (src, dst) ChunkRef and identical channel. Fused ops
// (rcs, rrcs, rrs) are skipped on the "send" side of the check since their
// Src/Dst no longer name a single peer's ChunkRef; their correctness is
// instead guaranteed by fusion only ever combining already-matched ops.
func Validate(arena *ir.Arena, rank int, g *ir.Gpu) error {
	for _, tb := range g.TBs {
		for _, id := range tb.Ops {
			op := arena.Get(id)
			if op.Inst != ir.Send {
				continue
			}
			if len(op.Match) != 1 {
				return errkind.New(errkind.Unmatched, rank, int(op.ID),
					fmt.Sprintf("send has %d match partners, want 1", len(op.Match)))
			}
			partner := arena.Get(op.Match[0])
			if partner.Inst != ir.Recv {
				return errkind.New(errkind.Unmatched, rank, int(op.ID), "match partner is not a recv")
			}
			if partner.Src != op.Src || partner.Dst != op.Dst {
				return errkind.New(errkind.Unmatched, rank, int(op.ID), "matched send/recv disagree on src/dst chunk")
			}
			if partner.Channel != op.Channel {
				return errkind.New(errkind.Unmatched, rank, int(op.ID),
					fmt.Sprintf("matched send/recv disagree on channel (%d vs %d)", op.Channel, partner.Channel))
			}
		}
	}
	return nil
}

// Program builds and validates the full program across every rank, then
// hands it to w.
func Program(w io.Writer, xw xmlio.Writer, arena *ir.Arena, name, collective, topology string, perRankTBs map[int]map[int]*ir.Threadblock) error {
	p := &ir.Program{Name: name, Collective: collective, Topology: topology}

	ranks := make([]int, 0, len(perRankTBs))
	for r := range perRankTBs {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)

	for _, r := range ranks {
		g := Rank(r, perRankTBs[r])
		if err := Validate(arena, r, g); err != nil {
			return err
		}
		p.Gpus = append(p.Gpus, g)
	}
	return xw.Write(w, p, arena)
}
