package ir

// Instruction is the closed, small tagged union of op kinds (spec §3). A
// single dispatch point switches over it in fusion and emit rather than
// giving each kind its own type (Design Note, §9: "Dynamic dispatch").
type Instruction uint8

const (
	Start Instruction = iota
	Send
	Recv
	Copy
	Reduce
	RecvCopySend       // rcs
	RecvReduceCopy     // rrc
	RecvReduceSend     // rrs
	RecvReduceCopySend // rrcs
)

func (i Instruction) String() string {
	switch i {
	case Start:
		return "start"
	case Send:
		return "send"
	case Recv:
		return "recv"
	case Copy:
		return "copy"
	case Reduce:
		return "reduce"
	case RecvCopySend:
		return "rcs"
	case RecvReduceCopy:
		return "rrc"
	case RecvReduceSend:
		return "rrs"
	case RecvReduceCopySend:
		return "rrcs"
	default:
		return "unknown"
	}
}

// IsSend reports whether the op's primary effect is sending to op.Dst.Rank.
func (i Instruction) IsSend() bool {
	switch i {
	case Send, RecvCopySend, RecvReduceSend, RecvReduceCopySend:
		return true
	default:
		return false
	}
}

// IsRecv reports whether the op's primary effect is receiving from op.Src.Rank.
func (i Instruction) IsRecv() bool {
	switch i {
	case Recv, RecvCopySend, RecvReduceCopy, RecvReduceSend, RecvReduceCopySend:
		return true
	default:
		return false
	}
}

// OpID is a stable, arena-relative index. Using plain ints instead of
// pointers resolves the match/depends/creator reference cycle (Design Note,
// §9: "Cyclic handles") without Go's GC ever seeing a cycle.
type OpID int

const NoOp OpID = -1

// Op is a single IR operation. Fields are as specified in spec §3; `tb`,
// `channel`, and `step` start unassigned (-1). The builder records the
// requested tb/channel, assign sets all three, and fusion renumbers `step`.
type Op struct {
	ID    OpID
	Inst  Instruction
	Rank  int // the rank this op lives on
	Src   ChunkRef
	Dst   ChunkRef

	Depends []OpID // predecessors this op must follow
	Next    []OpID // successors (inverse of Depends), built by rankdag
	// Match holds every externally-paired op: a plain send/recv has exactly
	// one entry (its counterpart on the other rank); a fused op (rcs, rrs,
	// rrcs) holds one entry per endpoint it still exposes. Channel
	// propagation during automatic assignment walks this list (spec §4.4:
	// "for m in op.match: m.channel <- tb.channel").
	Match []OpID

	TB      int // assigned thread-block id, -1 if unassigned
	Channel int // assigned channel id, -1 if unassigned/wildcard
	Step    int // position within its TB's ordered op list after assignment

	ChunkStep int // heap tie-break: longest chain touching this op's chunk lineage
	Priority  int // user/policy scalar, lower scheduled earlier; default 0

	ConstructionID int64 // monotonic, assigned at construction; final heap tie-break
}

// NewOp returns a freshly constructed, unassigned op. Callers must still
// assign ID/ConstructionID via an Arena.
func NewOp(inst Instruction, rank int, src, dst ChunkRef, depends []OpID) *Op {
	return &Op{
		Inst:    inst,
		Rank:    rank,
		Src:     src,
		Dst:     dst,
		Depends: depends,
		TB:      -1,
		Channel: -1,
		Step:    -1,
	}
}

// HeapLess implements the total order from spec §4.2:
// (priority, chunk_step, construction id), lexicographic, minimum-first.
func HeapLess(a, b *Op) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.ChunkStep != b.ChunkStep {
		return a.ChunkStep < b.ChunkStep
	}
	return a.ConstructionID < b.ConstructionID
}
