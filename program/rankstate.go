package program

import (
	"github.com/NVIDIA/scclang/cmn/cos"
	"github.com/NVIDIA/scclang/cmn/errkind"
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/rankdag"
)

// RankState is the per-rank allocation the builder maintains on
// construction: three chunk maps (input, output, scratch-by-name) plus the
// rank's dependency DAG (spec §4.1 "Per-rank state on construction").
type RankState struct {
	Rank int
	b    *Builder

	input  map[int]*Ref
	output map[int]*Ref
	// scratch holds one []*Ref per canonical scratch name, sized at
	// create_scratch time.
	scratch map[string][]*Ref

	// chunks tracks the value-level Chunk state purely for Check(); it is
	// never read by fusion or assignment.
	chunks map[ir.Slot]*ir.Chunk

	dag *rankdag.DAG
}

func newRankState(r int, b *Builder) *RankState {
	return &RankState{
		Rank:    r,
		b:       b,
		input:   make(map[int]*Ref),
		output:  make(map[int]*Ref),
		scratch: make(map[string][]*Ref),
		chunks:  make(map[ir.Slot]*ir.Chunk),
		dag:     rankdag.New(r, b.arena, b.ctr),
	}
}

// Input returns the ChunkRef for input[index..index+size]. Fails
// MissingChunk if any covered slot is empty (spec §4.1).
func (rs *RankState) Input(index int, size int) (*Ref, error) {
	if size <= 0 {
		size = 1
	}
	for i := index; i < index+size; i++ {
		if rs.input[i] == nil {
			return nil, errkind.New(errkind.MissingChunk, rs.Rank, -1, "input slot has no chunk")
		}
	}
	return &Ref{
		ChunkRef: ir.ChunkRef{Rank: rs.Rank, Buffer: ir.BufInput, Index: index, Size: size},
		Creator:  ir.NoOp,
		b:        rs.b,
	}, nil
}

// CreateScratch allocates a named scratch buffer of the given size. nameParts
// are canonicalized via cmn/cos.ScratchKey so tuple-shaped names (e.g.
// (n1, n2, ch), per Design Note §9) compare and hash deterministically.
// Fails DuplicateScratch if the canonical name was already created on this
// rank.
func (rs *RankState) CreateScratch(size int, nameParts ...any) (string, error) {
	key := cos.ScratchKey(nameParts...)
	if _, ok := rs.scratch[key]; ok {
		return "", errkind.New(errkind.DuplicateScratch, rs.Rank, -1, "scratch name "+key+" already created on this rank")
	}
	rs.scratch[key] = make([]*Ref, size)
	return key, nil
}

// Scratch returns a handle into the named scratch buffer at index. Fails
// MissingChunk if the slot has not yet been populated by a prior
// send/copy/reduce landing there.
func (rs *RankState) Scratch(index int, nameParts ...any) (*Ref, error) {
	key := cos.ScratchKey(nameParts...)
	buf, ok := rs.scratch[key]
	if !ok || index < 0 || index >= len(buf) || buf[index] == nil {
		return nil, errkind.New(errkind.MissingChunk, rs.Rank, -1, "scratch slot "+key+" has no chunk")
	}
	return buf[index], nil
}

// chunkAt returns the Chunk value currently occupying s, or nil.
func (rs *RankState) chunkAt(s ir.Slot) *ir.Chunk { return rs.chunks[s] }

// place registers ref in whichever of input/output/scratch applies, so a
// later Input/Scratch lookup covering any of its indices succeeds.
func (rs *RankState) place(ref *Ref) {
	switch ref.Buffer.Kind {
	case ir.Input:
		for i := 0; i < ref.Size; i++ {
			rs.input[ref.Index+i] = ref
		}
	case ir.Output:
		for i := 0; i < ref.Size; i++ {
			rs.output[ref.Index+i] = ref
		}
	case ir.Scratch:
		buf := rs.scratch[ref.Buffer.Name]
		for i := 0; i < ref.Size && ref.Index+i < len(buf); i++ {
			buf[ref.Index+i] = ref
		}
	}
}

// land is place plus the per-slot Chunk-value bookkeeping Check() reads.
// originOf supplies the origin (rank, index) each covered slot inherits.
func (rs *RankState) land(ref *Ref, originOf func(i int) (originRank, originIndex int)) {
	rs.place(ref)
	for i := 0; i < ref.Size; i++ {
		or, oi := originOf(i)
		s := ir.Slot{Rank: ref.Rank, Buffer: ref.Buffer, Index: ref.Index + i}
		rs.chunks[s] = &ir.Chunk{OriginRank: or, OriginIndex: oi, Rank: s.Rank, Buffer: s.Buffer, Index: s.Index}
	}
}
