// Package registry is a buntdb-backed synthesis-plan registry: callers
// register which machine/collective/size-range combinations a named plan
// covers, then look up the plan that applies to a given invocation.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"fmt"
	"strings"

	"github.com/tidwall/buntdb"
)

// SizeRange is an inclusive lower bound and optional exclusive upper bound,
// in bytes; Hi == 0 means unbounded above.
type SizeRange struct {
	Lo, Hi int64
}

func (r SizeRange) contains(size int64) bool {
	return size >= r.Lo && (r.Hi == 0 || size < r.Hi)
}

func (r SizeRange) String() string { return fmt.Sprintf("%d-%d", r.Lo, r.Hi) }

// Registry is the open handle over an in-memory buntdb store, keyed
// "<machine>|<collective>|<lo>-<hi>" -> plan name.
type Registry struct {
	db *buntdb.DB
}

// Open creates a fresh in-memory registry (":memory:", matching the
// process-lifetime scope a compiler invocation needs -- no plan survives
// across processes).
func Open() (*Registry, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

func key(machine, collective string, rng SizeRange) string {
	return strings.Join([]string{machine, collective, rng.String()}, "|")
}

// Register records that plan covers every (machine, size) pair in machines x
// sizes for collective, mirroring register_synthesis_plan's ability to take
// either a single machine/size or a list of each.
func (r *Registry) Register(collective string, machines []string, sizes []SizeRange, plan string) error {
	return r.db.Update(func(tx *buntdb.Tx) error {
		for _, m := range machines {
			for _, sz := range sizes {
				if _, _, err := tx.Set(key(m, collective, sz), plan, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Lookup finds the plan registered for machine/collective whose size range
// contains size. Returns ("", false) if nothing matches -- callers print
// "No plan found", matching sccl.init's behavior in the original source.
func (r *Registry) Lookup(machine, collective string, size int64) (string, bool) {
	prefix := machine + "|" + collective + "|"
	var plan string
	var found bool
	_ = r.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(k, v string) bool {
			rngStr := strings.TrimPrefix(k, prefix)
			var lo, hi int64
			if _, err := fmt.Sscanf(rngStr, "%d-%d", &lo, &hi); err != nil {
				return true
			}
			if (SizeRange{Lo: lo, Hi: hi}).contains(size) {
				plan, found = v, true
				return false
			}
			return true
		})
	})
	return plan, found
}
