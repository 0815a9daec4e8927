package rankdag

import (
	"testing"

	"github.com/NVIDIA/scclang/ir"
)

func TestNewRecordsSyntheticStart(t *testing.T) {
	arena := ir.NewArena()
	ctr := &ir.Counter{}
	d := New(0, arena, ctr)

	start := arena.Get(d.Start)
	if start == nil || start.Inst != ir.Start {
		t.Fatalf("New() did not record a Start op, got %v", start)
	}
	if d.LastWriter(ir.Slot{Rank: 0, Buffer: ir.BufInput, Index: 0}) != d.Start {
		t.Fatal("an unwritten slot's writer should default to Start")
	}
}

func TestAppendLinksReadsToPriorWriterAndUpdatesWriter(t *testing.T) {
	arena := ir.NewArena()
	ctr := &ir.Counter{}
	d := New(0, arena, ctr)

	slot := ir.Slot{Rank: 0, Buffer: ir.BufOutput, Index: 0}

	first := ir.NewOp(ir.Copy, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	firstID := d.Append(first, ctr, nil, []ir.Slot{slot})
	if first.Depends[0] != d.Start {
		t.Fatalf("first writer of a fresh slot should depend on Start, got %v", first.Depends)
	}

	second := ir.NewOp(ir.Copy, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil)
	d.Append(second, ctr, []ir.Slot{slot}, []ir.Slot{slot})
	if len(second.Depends) != 1 || second.Depends[0] != firstID {
		t.Fatalf("reader must depend on the slot's last writer, got %v", second.Depends)
	}
	if d.LastWriter(slot) != second.ID {
		t.Fatal("writer map should now point at the second op")
	}
	startOp := arena.Get(d.Start)
	if len(startOp.Next) != 1 || startOp.Next[0] != firstID {
		t.Fatalf("Start.Next should list the first writer, got %v", startOp.Next)
	}
}

func TestOpsScopesToOwningRank(t *testing.T) {
	arena := ir.NewArena()
	ctr := &ir.Counter{}
	d0 := New(0, arena, ctr)
	d1 := New(1, arena, ctr)

	d0.Append(ir.NewOp(ir.Send, 0, ir.ChunkRef{}, ir.ChunkRef{}, nil), ctr, nil, nil)
	d1.Append(ir.NewOp(ir.Recv, 1, ir.ChunkRef{}, ir.ChunkRef{}, nil), ctr, nil, nil)

	if len(d0.Ops()) != 2 { // start + the one op
		t.Fatalf("rank 0 should see 2 ops (start+send), got %d", len(d0.Ops()))
	}
	if len(d1.Ops()) != 2 {
		t.Fatalf("rank 1 should see 2 ops (start+recv), got %d", len(d1.Ops()))
	}
}
