package ir

import jsoniter "github.com/json-iterator/go"

// opView is the stable, hand-picked projection of an Op dumped by --dump-ir.
// It leaves out the scheduling-internal fields (Next, ChunkStep, Priority,
// ConstructionID); Depends and Match are dumped as program-wide arena OpIDs.
type opView struct {
	ID      OpID        `json:"id"`
	Inst    string      `json:"inst"`
	Rank    int         `json:"rank"`
	Src     ChunkRef    `json:"src"`
	Dst     ChunkRef    `json:"dst"`
	Depends []OpID      `json:"depends"`
	Match   []OpID      `json:"match"`
	TB      int         `json:"tb"`
	Channel int         `json:"channel"`
	Step    int         `json:"step"`
}

func viewOf(op *Op) opView {
	return opView{
		ID: op.ID, Inst: op.Inst.String(), Rank: op.Rank,
		Src: op.Src, Dst: op.Dst, Depends: op.Depends, Match: op.Match,
		TB: op.TB, Channel: op.Channel, Step: op.Step,
	}
}

// DumpJSON renders the program's resolved GPU records as JSON, for the
// `--dump-ir` flag on the cmd/* harnesses. Uses json-iterator for parity
// with the rest of the tree instead of encoding/json.
func (p *Program) DumpJSON(arena *Arena) (string, error) {
	type tbView struct {
		ID      int      `json:"id"`
		Send    int      `json:"send"`
		Recv    int      `json:"recv"`
		Channel int      `json:"channel"`
		Ops     []opView `json:"ops"`
	}
	type gpuView struct {
		Rank int      `json:"rank"`
		TBs  []tbView `json:"tbs"`
	}
	out := struct {
		Name       string    `json:"name"`
		Collective string    `json:"collective"`
		Topology   string    `json:"topology"`
		Gpus       []gpuView `json:"gpus"`
	}{Name: p.Name, Collective: p.Collective, Topology: p.Topology}

	for _, g := range p.Gpus {
		gv := gpuView{Rank: g.Rank}
		for _, tb := range g.TBs {
			tv := tbView{ID: tb.ID, Send: tb.Send, Recv: tb.Recv, Channel: tb.Channel}
			for _, id := range tb.Ops {
				tv.Ops = append(tv.Ops, viewOf(arena.Get(id)))
			}
			gv.TBs = append(gv.TBs, tv)
		}
		out.Gpus = append(out.Gpus, gv)
	}

	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
	return string(b), err
}
