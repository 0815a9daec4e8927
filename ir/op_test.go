package ir

import "testing"

func TestInstructionClassification(t *testing.T) {
	cases := []struct {
		inst           Instruction
		isSend, isRecv bool
		str            string
	}{
		{Start, false, false, "start"},
		{Send, true, false, "send"},
		{Recv, false, true, "recv"},
		{Copy, false, false, "copy"},
		{Reduce, false, false, "reduce"},
		{RecvCopySend, true, true, "rcs"},
		{RecvReduceCopy, false, true, "rrc"},
		{RecvReduceSend, true, true, "rrs"},
		{RecvReduceCopySend, true, true, "rrcs"},
	}
	for _, c := range cases {
		if got := c.inst.IsSend(); got != c.isSend {
			t.Errorf("%s.IsSend() = %v, want %v", c.inst, got, c.isSend)
		}
		if got := c.inst.IsRecv(); got != c.isRecv {
			t.Errorf("%s.IsRecv() = %v, want %v", c.inst, got, c.isRecv)
		}
		if got := c.inst.String(); got != c.str {
			t.Errorf("String() = %q, want %q", got, c.str)
		}
	}
}

func TestNewOpDefaults(t *testing.T) {
	src := ChunkRef{Rank: 0, Buffer: BufInput, Index: 0, Size: 1}
	dst := ChunkRef{Rank: 1, Buffer: BufOutput, Index: 0, Size: 1}
	op := NewOp(Send, 0, src, dst, nil)

	if op.TB != -1 || op.Channel != -1 || op.Step != -1 {
		t.Fatalf("new op should start unassigned: tb=%d channel=%d step=%d", op.TB, op.Channel, op.Step)
	}
	if op.Match != nil {
		t.Fatalf("new op should start with no match partners, got %v", op.Match)
	}
}

func TestHeapLessOrdering(t *testing.T) {
	a := &Op{Priority: 0, ChunkStep: 5, ConstructionID: 10}
	b := &Op{Priority: 1, ChunkStep: 0, ConstructionID: 0}
	if !HeapLess(a, b) {
		t.Fatal("lower priority must sort first regardless of chunk_step/construction_id")
	}

	c := &Op{Priority: 0, ChunkStep: 1, ConstructionID: 99}
	d := &Op{Priority: 0, ChunkStep: 2, ConstructionID: 0}
	if !HeapLess(c, d) {
		t.Fatal("equal priority: lower chunk_step must sort first")
	}

	e := &Op{Priority: 0, ChunkStep: 0, ConstructionID: 1}
	f := &Op{Priority: 0, ChunkStep: 0, ConstructionID: 2}
	if !HeapLess(e, f) {
		t.Fatal("equal priority and chunk_step: lower construction id must sort first")
	}
}
