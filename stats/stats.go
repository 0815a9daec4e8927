// Package stats exposes prometheus counters for the middle-end passes: how
// many ops each pass recorded, fused, or assigned. It is purely observational
// -- nothing in the compiler reads these back.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import "github.com/prometheus/client_golang/prometheus"

var (
	OpsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scclang",
		Subsystem: "ir",
		Name:      "ops_recorded_total",
		Help:      "Ops appended to a rank's DAG, by instruction kind.",
	}, []string{"inst"})

	OpsFused = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scclang",
		Subsystem: "fusion",
		Name:      "ops_fused_total",
		Help:      "Peephole rewrites applied, by resulting instruction kind.",
	}, []string{"inst"})

	OpsAssigned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scclang",
		Subsystem: "assign",
		Name:      "ops_assigned_total",
		Help:      "Ops appended to a thread-block, by assignment mode (manual/auto).",
	}, []string{"mode"})

	TBConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scclang",
		Subsystem: "assign",
		Name:      "tb_conflicts_total",
		Help:      "TBConflict errors raised during assignment.",
	})
)

func init() {
	prometheus.MustRegister(OpsRecorded, OpsFused, OpsAssigned, TBConflicts)
}
