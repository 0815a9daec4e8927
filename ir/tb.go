package ir

// Threadblock is a serialized lane of ops pinned to at most one send peer,
// one recv peer, and one channel (spec §3). Peer fields hold -1 (wildcard)
// until the first op that constrains them is appended.
type Threadblock struct {
	ID      int
	Send    int // peer rank, or -1
	Recv    int // peer rank, or -1
	Channel int // channel id, or -1
	Ops     []OpID
}

func NewThreadblock(id, send, recv, channel int) *Threadblock {
	return &Threadblock{ID: id, Send: send, Recv: recv, Channel: channel}
}

// Gpu is the per-rank record the emitter consumes: a rank id and its
// ordered collection of thread-blocks (spec §3 "GPU record").
type Gpu struct {
	Rank int
	TBs  []*Threadblock
}

// Program is the top-level emission unit: name, collective, topology, and
// the ordered per-rank GPU records (spec §3 "Program").
type Program struct {
	Name       string
	Collective string
	Topology   string
	Gpus       []*Gpu
}
