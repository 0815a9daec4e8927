package program

import (
	"github.com/NVIDIA/scclang/cmn/nlog"
	"github.com/NVIDIA/scclang/ir"
)

// Check verifies the postcondition pass (spec §8, property 5): true iff
// every (r, c) with Postcondition(r, c) has a written output slot. It is
// advisory -- it returns a boolean and logs diagnostics rather than
// aborting (spec §7).
func (b *Builder) Check() bool {
	correct := true
	for _, rs := range b.ranks {
		for _, c := range b.Collective.Chunks() {
			if !b.Collective.Postcondition(rs.Rank, c) {
				continue
			}
			slot := ir.Slot{Rank: rs.Rank, Buffer: ir.BufOutput, Index: c}
			if rs.chunkAt(slot) == nil {
				nlog.Warningln("rank", rs.Rank, "chunk", c, "is missing")
				correct = false
			}
		}
	}
	return correct
}
