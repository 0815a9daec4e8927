// Package errkind enumerates the fatal error kinds raised by the compiler
// (spec §7) and wraps them with github.com/pkg/errors so every raised error
// carries a stack trace the way ais/prxs3.go wraps its own sentinel errors.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package errkind

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	NoContext         Kind = "NoContext"
	NestedContext     Kind = "NestedContext"
	MissingChunk      Kind = "MissingChunk"
	DuplicateScratch  Kind = "DuplicateScratch"
	BadSplit          Kind = "BadSplit"
	TBConflict        Kind = "TBConflict"
	NoAssignment      Kind = "NoAssignment"
	Unmatched         Kind = "Unmatched"
	PostconditionFail Kind = "PostconditionFail"
)

// Error carries the rank, the offending op id (or -1 if not op-scoped), and
// the violated invariant's description, per spec §7.
type Error struct {
	Kind      Kind
	Rank      int
	OpID      int
	Invariant string
	cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: rank=%d op=%d: %s", e.Kind, e.Rank, e.OpID, e.Invariant)
}

func (e *Error) Unwrap() error { return e.cause }

// New raises a fresh, stack-wrapped error of the given kind.
func New(kind Kind, rank, opID int, invariant string) error {
	e := &Error{Kind: kind, Rank: rank, OpID: opID, Invariant: invariant}
	return errors.WithStack(e)
}

// Is reports whether err (or anything it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
