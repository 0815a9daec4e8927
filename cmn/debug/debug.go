// Package debug implements cheap runtime assertions, compiled into debug
// builds only -- the teacher's cmn/debug package follows the same "assert,
// don't validate" split between debug and production builds.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "github.com/NVIDIA/scclang/cmn/nlog"

// Enabled is flipped by the "debug" build tag in debug_on.go; absent that
// tag this file's own zero value keeps assertions compiled out of release
// builds.
var Enabled = false

// Assert panics with msg if cond is false and debug assertions are enabled.
func Assert(cond bool, msg string) {
	if !Enabled || cond {
		return
	}
	nlog.Errorln("assertion failed:", msg)
	panic(msg)
}

// Assertf is the formatted variant of Assert.
func Assertf(cond bool, format string, args ...any) {
	if !Enabled || cond {
		return
	}
	nlog.Errorf(format, args...)
	panic(format)
}
