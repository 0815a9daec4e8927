// Package ir defines the intermediate representation this compiler builds,
// fuses, and assigns: buffers, chunk references, operations, thread-blocks,
// and the per-rank/per-program records the emitter walks.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package ir

import "fmt"

// BufferKind tags which of a rank's three buffers a ChunkRef addresses.
type BufferKind uint8

const (
	Input BufferKind = iota
	Output
	Scratch
)

func (k BufferKind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	case Scratch:
		return "scratch"
	default:
		return "unknown"
	}
}

// Buffer is the tagged enum from spec §3: input/output are singletons per
// rank, scratch carries a user-provided canonical name (see cmn/cos.ScratchKey).
type Buffer struct {
	Kind BufferKind
	Name string // only meaningful when Kind == Scratch
}

func (b Buffer) String() string {
	if b.Kind == Scratch {
		return fmt.Sprintf("scratch(%s)", b.Name)
	}
	return b.Kind.String()
}

var (
	BufInput  = Buffer{Kind: Input}
	BufOutput = Buffer{Kind: Output}
)

func BufScratch(name string) Buffer { return Buffer{Kind: Scratch, Name: name} }
