// Package assign implements both thread-block/channel assignment
// algorithms (spec §4.4): manual assignment, which honors tb/channel values
// the builder already recorded on each op, and automatic assignment, which
// derives them from scratch via base-TB allocation plus greedy scheduling.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package assign

import (
	"fmt"

	"github.com/NVIDIA/scclang/cmn/debug"
	"github.com/NVIDIA/scclang/cmn/errkind"
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/rankdag"
	"github.com/NVIDIA/scclang/stats"
)

// Compatible implements the compatibility predicate every assignment
// variant enforces (spec §4.4).
func Compatible(tb *ir.Threadblock, op *ir.Op) bool {
	sendOK := true
	if op.Inst.IsSend() {
		sendOK = tb.Send == -1 || tb.Send == op.Dst.Rank
	}
	recvOK := true
	if op.Inst.IsRecv() {
		recvOK = tb.Recv == -1 || tb.Recv == op.Src.Rank
	}
	channelOK := tb.Channel == -1 || op.Channel == -1 || tb.Channel == op.Channel
	return sendOK && recvOK && channelOK
}

func conflictErr(rank int, op *ir.Op, tb *ir.Threadblock) error {
	stats.TBConflicts.Inc()
	return errkind.New(errkind.TBConflict, rank, int(op.ID), fmt.Sprintf(
		"tb %d (send=%d recv=%d channel=%d) incompatible with op %s (dst=%d src=%d channel=%d)",
		tb.ID, tb.Send, tb.Recv, tb.Channel, op.Inst, op.Dst.Rank, op.Src.Rank, op.Channel))
}

func updatePeers(tb *ir.Threadblock, op *ir.Op) {
	if op.Inst.IsSend() {
		tb.Send = op.Dst.Rank
	}
	if op.Inst.IsRecv() {
		tb.Recv = op.Src.Rank
	}
}

// ManualAssign honors the tb/channel the builder already attached to every
// non-copy op. It iterates ops in heap order, creating a Threadblock the
// first time a tb id is seen and checking compatibility on every subsequent
// op assigned to it (spec §4.4, "Manual assignment").
func ManualAssign(dag *rankdag.DAG) (map[int]*ir.Threadblock, error) {
	tbs := make(map[int]*ir.Threadblock)
	for _, op := range dag.ReadyOrder(true) {
		tb, ok := tbs[op.TB]
		if !ok {
			tb = ir.NewThreadblock(op.TB, -1, -1, op.Channel)
			updatePeers(tb, op)
			tbs[op.TB] = tb
		} else {
			if !Compatible(tb, op) {
				return nil, conflictErr(dag.Rank, op, tb)
			}
			updatePeers(tb, op)
		}
		tb.Ops = append(tb.Ops, op.ID)
		op.Step = len(tb.Ops) - 1
		stats.OpsAssigned.WithLabelValues("manual").Inc()
	}
	assertDenseSteps(dag, tbs)
	return tbs, nil
}

// assertDenseSteps checks that every TB's op.Step values form a dense
// 0..len(tb.Ops)-1 run matching its Ops order -- the invariant a non-dense
// step would silently break downstream in emit.Rank's per-TB ordering.
func assertDenseSteps(dag *rankdag.DAG, tbs map[int]*ir.Threadblock) {
	if !debug.Enabled {
		return
	}
	for _, tb := range tbs {
		for i, id := range tb.Ops {
			op := dag.Arena.Get(id)
			debug.Assertf(op.Step == i, "tb %d op %d has step %d, want dense index %d", tb.ID, op.ID, op.Step, i)
		}
	}
}

// peerKey is the (send-rank, recv-rank, channel) triple base allocation and
// greedy scheduling key candidate TBs by.
type peerKey struct{ send, recv, channel int }

func peersOf(op *ir.Op) (send, recv int) {
	send, recv = -1, -1
	if op.Inst.IsSend() {
		send = op.Dst.Rank
	}
	if op.Inst.IsRecv() {
		recv = op.Src.Rank
	}
	return send, recv
}

// baseAllocate is phase 1 of automatic assignment: walk ops in DAG order,
// mapping every distinct (send, recv, channel) triple that appears to a
// fresh TB id (spec §4.4, "Base TB allocation").
func baseAllocate(dag *rankdag.DAG) (map[peerKey]int, int, int) {
	mapping := make(map[peerKey]int)
	tbid := 0
	numChannels := 1
	for _, op := range dag.ReadyOrder(true) {
		send, recv := peersOf(op)
		ch := op.Channel
		if ch < 0 {
			ch = 0
		}
		if op.Channel+1 > numChannels {
			numChannels = op.Channel + 1
		}
		if send == -1 && recv == -1 {
			continue
		}
		key := peerKey{send, recv, ch}
		if _, ok := mapping[key]; !ok {
			mapping[key] = tbid
			tbid++
		}
	}
	return mapping, tbid, numChannels
}

// tbOptions is _get_tb_options translated: the candidate TB ids op may be
// scheduled onto (spec §4.4, "Greedy scheduling").
func tbOptions(mapping map[peerKey]int, send, recv, channel, numTBs, numChannels int) []int {
	if send == -1 && recv == -1 {
		opts := make([]int, numTBs)
		for i := range opts {
			opts[i] = i
		}
		return opts
	}
	if channel == -1 {
		var opts []int
		for ch := 0; ch < numChannels; ch++ {
			if id, ok := mapping[peerKey{send, recv, ch}]; ok {
				opts = append(opts, id)
			}
		}
		return opts
	}
	if id, ok := mapping[peerKey{send, recv, channel}]; ok {
		return []int{id}
	}
	return nil
}

// AutoAssign derives tb/channel/step from scratch: base TB allocation
// followed by a greedy heap-ordered scheduling pass that picks, among
// compatible candidate TBs, the one at the lowest current_step, then
// propagates the chosen channel to every matched op (spec §4.4, "Automatic
// assignment").
func AutoAssign(dag *rankdag.DAG) (map[int]*ir.Threadblock, error) {
	mapping, numTBs, numChannels := baseAllocate(dag)
	tbs := make(map[int]*ir.Threadblock, numTBs)
	for key, id := range mapping {
		tbs[id] = ir.NewThreadblock(id, key.send, key.recv, key.channel)
	}
	currentStep := make(map[int]int, numTBs)

	arena := dag.Arena
	for _, op := range dag.ReadyOrder(true) {
		send, recv := peersOf(op)
		options := tbOptions(mapping, send, recv, op.Channel, numTBs, numChannels)
		if len(options) == 0 {
			return nil, errkind.New(errkind.NoAssignment, dag.Rank, int(op.ID), fmt.Sprintf(
				"no base tb for send=%d recv=%d channel=%d", send, recv, op.Channel))
		}
		best := options[0]
		for _, cand := range options[1:] {
			if currentStep[cand] < currentStep[best] && Compatible(tbs[cand], op) {
				best = cand
			}
		}
		tb := tbs[best]
		if !Compatible(tb, op) {
			return nil, conflictErr(dag.Rank, op, tb)
		}

		tb.Ops = append(tb.Ops, op.ID)
		updatePeers(tb, op)
		op.Step = len(tb.Ops) - 1
		op.Channel = tb.Channel
		op.TB = best
		currentStep[best] = op.ChunkStep
		stats.OpsAssigned.WithLabelValues("auto").Inc()

		for _, m := range op.Match {
			arena.Get(m).Channel = tb.Channel
		}
	}
	assertDenseSteps(dag, tbs)
	return tbs, nil
}
