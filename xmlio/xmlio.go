// Package xmlio is the external XML back-end stand-in (spec §6.3): it
// consumes a resolved ir.Program and renders it to the wire format the
// runtime loads. The format itself is opaque to the core -- this package is
// the only thing that knows its shape.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package xmlio

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/NVIDIA/scclang/ir"
)

// Writer renders a resolved program. arena resolves each Threadblock's
// []OpID op list back to concrete ops. The default implementation uses
// encoding/xml; tests substitute a recording stub.
type Writer interface {
	Write(w io.Writer, p *ir.Program, arena *ir.Arena) error
}

type xmlProgram struct {
	XMLName    xml.Name `xml:"program"`
	Name       string   `xml:"name,attr"`
	Collective string   `xml:"collective,attr"`
	Topology   string   `xml:"topology,attr"`
	Gpus       []xmlGpu `xml:"gpu"`
}

type xmlGpu struct {
	Rank int      `xml:"rank,attr"`
	TBs  []xmlTB  `xml:"tb"`
}

type xmlTB struct {
	ID      int    `xml:"id,attr"`
	Send    int    `xml:"send,attr"`
	Recv    int    `xml:"recv,attr"`
	Channel int    `xml:"channel,attr"`
	Ops     []xmlOp `xml:"op"`
}

type xmlOp struct {
	Step    int    `xml:"step,attr"`
	Inst    string `xml:"type,attr"`
	SrcRank int    `xml:"srcrank,attr"`
	SrcBuf  string `xml:"srcbuffer,attr"`
	SrcIdx  int    `xml:"srcoffset,attr"`
	DstRank int    `xml:"dstrank,attr"`
	DstBuf  string `xml:"dstbuffer,attr"`
	DstIdx  int    `xml:"dstoffset,attr"`
	Count   int    `xml:"count,attr"`
	// Depends is a comma-joined list of OpIDs: encoding/xml can't marshal an
	// attribute of slice type other than []byte.
	Depends string `xml:"depends,attr,omitempty"`
}

// Default is the encoding/xml-backed Writer.
type Default struct{}

func (Default) Write(w io.Writer, p *ir.Program, arena *ir.Arena) error {
	out := xmlProgram{Name: p.Name, Collective: p.Collective, Topology: p.Topology}
	for _, g := range p.Gpus {
		xg := xmlGpu{Rank: g.Rank}
		for _, tb := range g.TBs {
			xtb := xmlTB{ID: tb.ID, Send: tb.Send, Recv: tb.Recv, Channel: tb.Channel}
			for _, id := range tb.Ops {
				op := arena.Get(id)
				xtb.Ops = append(xtb.Ops, xmlOp{
					Step:    op.Step,
					Inst:    op.Inst.String(),
					SrcRank: op.Src.Rank,
					SrcBuf:  op.Src.Buffer.String(),
					SrcIdx:  op.Src.Index,
					DstRank: op.Dst.Rank,
					DstBuf:  op.Dst.Buffer.String(),
					DstIdx:  op.Dst.Index,
					Count:   op.Dst.Size,
					Depends: joinDeps(op.Depends),
				})
			}
			xg.TBs = append(xg.TBs, xtb)
		}
		out.Gpus = append(out.Gpus, xg)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(out)
}

func joinDeps(ids []ir.OpID) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}
