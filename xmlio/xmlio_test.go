package xmlio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/NVIDIA/scclang/ir"
)

func TestDefaultWriteProducesWellFormedSchedule(t *testing.T) {
	arena := ir.NewArena()
	ctr := &ir.Counter{}

	op := ir.NewOp(ir.Send, 0, ir.ChunkRef{Rank: 0, Buffer: ir.BufInput, Index: 0, Size: 1},
		ir.ChunkRef{Rank: 1, Buffer: ir.BufOutput, Index: 0, Size: 1}, nil)
	op.TB, op.Channel, op.Step = 0, 0, 0
	id := arena.Add(op, ctr)

	tb := ir.NewThreadblock(0, 1, -1, 0)
	tb.Ops = []ir.OpID{id}

	p := &ir.Program{
		Name:       "allreduce",
		Collective: "allreduce",
		Topology:   "fully_connected",
		Gpus:       []*ir.Gpu{{Rank: 0, TBs: []*ir.Threadblock{tb}}},
	}

	var buf bytes.Buffer
	if err := (Default{}).Write(&buf, p, arena); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<program name="allreduce" collective="allreduce" topology="fully_connected">`,
		`<gpu rank="0">`,
		`<tb id="0" send="1" recv="-1" channel="0">`,
		`type="send"`,
		`srcrank="0"`,
		`dstrank="1"`,
		`srcbuffer="input"`,
		`dstbuffer="output"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\nfull output:\n%s", want, out)
		}
	}
}

func TestDefaultWriteOmitsEmptyDepends(t *testing.T) {
	arena := ir.NewArena()
	ctr := &ir.Counter{}
	op := ir.NewOp(ir.Copy, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	id := arena.Add(op, ctr)
	tb := ir.NewThreadblock(0, -1, -1, -1)
	tb.Ops = []ir.OpID{id}
	p := &ir.Program{Gpus: []*ir.Gpu{{Rank: 0, TBs: []*ir.Threadblock{tb}}}}

	var buf bytes.Buffer
	if err := (Default{}).Write(&buf, p, arena); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if strings.Contains(buf.String(), "depends=") {
		t.Fatal("an op with no depends must not emit a depends attribute")
	}
}

func TestDefaultWriteJoinsDependsIntoOneAttribute(t *testing.T) {
	arena := ir.NewArena()
	ctr := &ir.Counter{}

	first := ir.NewOp(ir.Copy, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	firstID := arena.Add(first, ctr)
	second := ir.NewOp(ir.Copy, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	secondID := arena.Add(second, ctr)

	op := ir.NewOp(ir.Copy, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	op.Depends = []ir.OpID{firstID, secondID}
	id := arena.Add(op, ctr)

	tb := ir.NewThreadblock(0, -1, -1, -1)
	tb.Ops = []ir.OpID{firstID, secondID, id}
	p := &ir.Program{Gpus: []*ir.Gpu{{Rank: 0, TBs: []*ir.Threadblock{tb}}}}

	var buf bytes.Buffer
	if err := (Default{}).Write(&buf, p, arena); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	want := `depends="0,1"`
	if !strings.Contains(buf.String(), want) {
		t.Fatalf("output missing %q\nfull output:\n%s", want, buf.String())
	}
}
