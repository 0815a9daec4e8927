package ir

import "testing"

func TestArenaAddAssignsStableIDsAndConstructionOrder(t *testing.T) {
	arena := NewArena()
	ctr := &Counter{}

	op0 := NewOp(Send, 0, ChunkRef{}, ChunkRef{}, nil)
	op1 := NewOp(Recv, 1, ChunkRef{}, ChunkRef{}, nil)

	id0 := arena.Add(op0, ctr)
	id1 := arena.Add(op1, ctr)

	if id0 != 0 || id1 != 1 {
		t.Fatalf("expected sequential ids 0,1, got %d,%d", id0, id1)
	}
	if op0.ConstructionID != 0 || op1.ConstructionID != 1 {
		t.Fatalf("expected monotonic construction ids 0,1, got %d,%d", op0.ConstructionID, op1.ConstructionID)
	}
	if arena.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", arena.Len())
	}
	if arena.Get(id0) != op0 || arena.Get(id1) != op1 {
		t.Fatal("Get did not round-trip the stored ops")
	}
	if arena.Get(NoOp) != nil {
		t.Fatal("Get(NoOp) must return nil")
	}
}

func TestArenaForRankFiltersByOwner(t *testing.T) {
	arena := NewArena()
	ctr := &Counter{}

	arena.Add(NewOp(Send, 0, ChunkRef{}, ChunkRef{}, nil), ctr)
	arena.Add(NewOp(Recv, 1, ChunkRef{}, ChunkRef{}, nil), ctr)
	arena.Add(NewOp(Copy, 0, ChunkRef{}, ChunkRef{}, nil), ctr)

	rank0 := arena.ForRank(0)
	if len(rank0) != 2 {
		t.Fatalf("ForRank(0) returned %d ops, want 2", len(rank0))
	}
	for _, op := range rank0 {
		if op.Rank != 0 {
			t.Fatalf("ForRank(0) returned an op owned by rank %d", op.Rank)
		}
	}
	if len(arena.ForRank(1)) != 1 {
		t.Fatalf("ForRank(1) returned %d ops, want 1", len(arena.ForRank(1)))
	}
}

func TestArenaRedirectSweepsDependsNextAndMatch(t *testing.T) {
	arena := NewArena()
	ctr := &Counter{}

	removed := NewOp(Recv, 0, ChunkRef{}, ChunkRef{}, nil)
	removedID := arena.Add(removed, ctr)

	dependent := NewOp(Send, 0, ChunkRef{}, ChunkRef{}, []OpID{removedID})
	dependent.Next = []OpID{removedID}
	dependent.Match = []OpID{removedID}
	depID := arena.Add(dependent, ctr)
	_ = depID

	replacement := NewOp(RecvCopySend, 0, ChunkRef{}, ChunkRef{}, nil)
	replacementID := arena.AddFused(replacement, removed.ConstructionID)

	arena.Redirect(removedID, replacementID)

	if len(dependent.Depends) != 1 || dependent.Depends[0] != replacementID {
		t.Fatalf("Depends not redirected: %v", dependent.Depends)
	}
	if len(dependent.Next) != 1 || dependent.Next[0] != replacementID {
		t.Fatalf("Next not redirected: %v", dependent.Next)
	}
	if len(dependent.Match) != 1 || dependent.Match[0] != replacementID {
		t.Fatalf("Match not redirected: %v", dependent.Match)
	}
}

func TestArenaRedirectDedupes(t *testing.T) {
	arena := NewArena()
	ctr := &Counter{}

	a := arena.Add(NewOp(Recv, 0, ChunkRef{}, ChunkRef{}, nil), ctr)
	b := arena.Add(NewOp(Recv, 0, ChunkRef{}, ChunkRef{}, nil), ctr)
	dependent := NewOp(Send, 0, ChunkRef{}, ChunkRef{}, []OpID{a, b})
	arena.Add(dependent, ctr)

	arena.Redirect(a, b)

	if len(dependent.Depends) != 1 {
		t.Fatalf("expected duplicate references to collapse to one, got %v", dependent.Depends)
	}
}
