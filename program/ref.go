package program

import (
	"github.com/NVIDIA/scclang/cmn/errkind"
	"github.com/NVIDIA/scclang/ir"
)

// Ref is the builder-surface handle returned by every recording operation:
// an immutable ChunkRef plus the bookkeeping spec §4.1 attaches to it (hops
// traveled, and the op that created it -- used to resolve the next op's
// dependency on the same chunk's lineage).
type Ref struct {
	ir.ChunkRef
	Hops    int
	Creator ir.OpID
	b       *Builder
}

// Send appends a send op on ref.Rank and a matching recv op on dst, and
// returns a new Ref at the destination with Hops = ref.Hops+1 (spec §4.1).
// Pass -1 for index/size to inherit ref's own; -1 for sendtb/recvtb/channel
// to take the documented defaults (channel 0, sendtb = dst, recvtb =
// ref.Rank).
func (ref *Ref) Send(dst int, buf ir.Buffer, index, size, sendtb, recvtb, channel int) (*Ref, error) {
	if index == -1 {
		index = ref.Index
	}
	if size == -1 {
		size = ref.Size
	}
	if channel == -1 {
		channel = 0
	}
	if sendtb == -1 {
		sendtb = dst
	}
	if recvtb == -1 {
		recvtb = ref.Rank
	}

	b := ref.b
	dstChunk := ir.ChunkRef{Rank: dst, Buffer: buf, Index: index, Size: size}
	dstRef := &Ref{ChunkRef: dstChunk, Hops: ref.Hops + 1, b: b}

	sendOp := ir.NewOp(ir.Send, ref.Rank, ref.ChunkRef, dstChunk, nil)
	sendOp.TB, sendOp.Channel = sendtb, channel
	sendID := b.DAG(ref.Rank).Append(sendOp, b.ctr, ref.Slots(), nil)

	recvOp := ir.NewOp(ir.Recv, dst, ref.ChunkRef, dstChunk, nil)
	recvOp.TB, recvOp.Channel = recvtb, channel
	recvID := b.DAG(dst).Append(recvOp, b.ctr, nil, dstChunk.Slots())

	sendOp.Match, recvOp.Match = []ir.OpID{recvID}, []ir.OpID{sendID}
	dstRef.Creator = recvID

	b.ranks[dst].land(dstRef, func(i int) (int, int) {
		src := b.ranks[ref.Rank].chunkAt(ir.Slot{Rank: ref.Rank, Buffer: ref.Buffer, Index: ref.Index + i})
		if src == nil {
			return ref.Rank, ref.Index + i
		}
		return src.OriginRank, src.OriginIndex
	})

	return dstRef, nil
}

// Copy appends a copy op on ref.Rank; the destination rank always equals
// the source rank (spec §4.1).
func (ref *Ref) Copy(buf ir.Buffer, index, size, tb, channel int) (*Ref, error) {
	if index == -1 {
		index = ref.Index
	}
	if size == -1 {
		size = ref.Size
	}
	if channel == -1 {
		channel = 0
	}

	b := ref.b
	dstChunk := ir.ChunkRef{Rank: ref.Rank, Buffer: buf, Index: index, Size: size}
	dstRef := &Ref{ChunkRef: dstChunk, Hops: ref.Hops + 1, b: b}

	op := ir.NewOp(ir.Copy, ref.Rank, ref.ChunkRef, dstChunk, nil)
	op.TB, op.Channel = tb, channel
	id := b.DAG(ref.Rank).Append(op, b.ctr, ref.Slots(), dstChunk.Slots())
	dstRef.Creator = id

	b.ranks[ref.Rank].land(dstRef, func(i int) (int, int) {
		src := b.ranks[ref.Rank].chunkAt(ir.Slot{Rank: ref.Rank, Buffer: ref.Buffer, Index: ref.Index + i})
		if src == nil {
			return ref.Rank, ref.Index + i
		}
		return src.OriginRank, src.OriginIndex
	})

	return dstRef, nil
}

// Reduce accumulates other into ref's own slot: ref is the destination
// (spec §4.1: "the destination accumulates other into ref's slot"). Both
// refs must live on the same rank -- an unfused reduce is a purely local
// combine; fusion (package fusion) turns it into recv_reduce_copy(_send)
// when it directly follows a matching recv.
func (ref *Ref) Reduce(other *Ref, tb, channel int) (*Ref, error) {
	if ref.Rank != other.Rank {
		return nil, errkind.New(errkind.MissingChunk, ref.Rank, -1, "reduce operands must live on the same rank")
	}
	if channel == -1 {
		channel = 0
	}

	b := ref.b
	dstRef := &Ref{ChunkRef: ref.ChunkRef, Hops: ref.Hops + 1, b: b}

	op := ir.NewOp(ir.Reduce, ref.Rank, other.ChunkRef, ref.ChunkRef, nil)
	op.TB, op.Channel = tb, channel
	reads := append(append([]ir.Slot{}, other.Slots()...), ref.Slots()...)
	id := b.DAG(ref.Rank).Append(op, b.ctr, reads, ref.Slots())
	dstRef.Creator = id

	b.ranks[ref.Rank].land(dstRef, func(i int) (int, int) {
		cur := b.ranks[ref.Rank].chunkAt(ref.Slot())
		if cur == nil {
			return ref.Rank, ref.Index
		}
		return cur.OriginRank, cur.OriginIndex
	})

	return dstRef, nil
}

// Group widens ref's size to include other, which must be contiguous in the
// same buffer (same rank). Purely bookkeeping -- no IR op is recorded.
func (ref *Ref) Group(other *Ref) (*Ref, error) {
	if ref.Rank != other.Rank || ref.Buffer != other.Buffer {
		return nil, errkind.New(errkind.BadSplit, ref.Rank, -1, "group operands must share rank and buffer")
	}
	switch {
	case other.Index == ref.Index+ref.Size:
		return &Ref{ChunkRef: ir.ChunkRef{Rank: ref.Rank, Buffer: ref.Buffer, Index: ref.Index, Size: ref.Size + other.Size},
			Hops: ref.Hops, Creator: ref.Creator, b: ref.b}, nil
	case ref.Index == other.Index+other.Size:
		return &Ref{ChunkRef: ir.ChunkRef{Rank: ref.Rank, Buffer: ref.Buffer, Index: other.Index, Size: ref.Size + other.Size},
			Hops: other.Hops, Creator: other.Creator, b: ref.b}, nil
	default:
		return nil, errkind.New(errkind.BadSplit, ref.Rank, -1, "group operands are not contiguous")
	}
}

// Split yields k equally sized sub-references over ref's contiguous range.
// Fails BadSplit if size % k != 0 (spec §4.1).
func (ref *Ref) Split(k int) ([]*Ref, error) {
	if k <= 0 || ref.Size%k != 0 {
		return nil, errkind.New(errkind.BadSplit, ref.Rank, -1, "split size does not divide evenly")
	}
	each := ref.Size / k
	out := make([]*Ref, k)
	for i := 0; i < k; i++ {
		out[i] = &Ref{
			ChunkRef: ir.ChunkRef{Rank: ref.Rank, Buffer: ref.Buffer, Index: ref.Index + i*each, Size: each},
			Hops:     ref.Hops,
			Creator:  ref.Creator,
			b:        ref.b,
		}
	}
	return out, nil
}

// Wait is a no-op synchronization hint (Design Note §9, Open Questions):
// the dependency on the slot's previous writer is already captured the next
// time any op reads this ref's slot, via rankdag.DAG.Append's own writer
// tracking, so there is nothing further to record here.
func (ref *Ref) Wait() *Ref { return ref }
