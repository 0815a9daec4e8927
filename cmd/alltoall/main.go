// Command alltoall ports original_source/examples/scclang_ring.py's
// alltoall_hierarchical: a two-level exchange that gathers each node's
// contributions to every other node into one scratch buffer, relays that
// buffer across the IB link once, then scatters it locally. Same-node
// traffic goes straight to the destination's output.
//
// One deviation from the original script: its ib_chunks map is built once,
// outside the per-instance loop, so on instance ch>0 the "IB send" step
// re-iterates entries from every earlier instance too (their keys never
// collide, since each key embeds ch, but the loop still walks stale
// already-sent entries every instance). That looks like an artifact of the
// script rather than intended behavior, so this port scopes the gather
// results to one instance at a time instead.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/urfave/cli"

	"github.com/NVIDIA/scclang/cmn/cos"
	"github.com/NVIDIA/scclang/cmn/nlog"
	"github.com/NVIDIA/scclang/collective"
	"github.com/NVIDIA/scclang/emit"
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/program"
	"github.com/NVIDIA/scclang/registry"
	"github.com/NVIDIA/scclang/topology"
	"github.com/NVIDIA/scclang/xmlio"
)

// resolvePlan registers and looks up this binary's plan under the
// autosynth-style registry, mirroring sccl.init's machine/collective/size
// resolution (spec §6.4); there is only ever one plan to find.
func resolvePlan(machine, collective string, size int64) error {
	reg, err := registry.Open()
	if err != nil {
		return err
	}
	defer reg.Close()

	if err := reg.Register(collective, []string{machine}, []registry.SizeRange{{Lo: 0}}, "hierarchical"); err != nil {
		return err
	}
	plan, ok := reg.Lookup(machine, collective, size)
	if !ok {
		nlog.Warningln("no plan found for", machine, collective, size)
		return nil
	}
	nlog.Infoln("using plan", plan, "for", machine, collective)
	return nil
}

type ibKey struct{ n1, n2, ch int }

func (k ibKey) buffer() ir.Buffer { return ir.BufScratch(cos.ScratchKey(k.n1, k.n2, k.ch)) }

func crossNodeRouter(n1, n2, gpusPerNode int) int {
	if n1 > n2 {
		return n2 % gpusPerNode
	}
	return (n2 - 1) % gpusPerNode
}

func run(numNodes, gpusPerNode, instances int, autoAssign, dumpIR bool) error {
	numRanks := numNodes * gpusPerNode
	rankOf := func(n, g int) int { return n*gpusPerNode + g }
	scratchSize := gpusPerNode * gpusPerNode

	coll := collective.AllToAll(numRanks, instances)
	topo := topology.FullyConnected(numRanks, "fully_connected")

	if err := resolvePlan("a100", coll.Name(), int64(numRanks)); err != nil {
		return err
	}

	var tbs map[int]map[int]*ir.Threadblock
	var b *program.Builder
	err := program.With("hierarchical_all_to_all", coll, topo, func(prog *program.Builder) error {
		b = prog

		for ch := 0; ch < instances; ch++ {
			for n1 := 0; n1 < numNodes; n1++ {
				for n2 := 0; n2 < numNodes; n2++ {
					if n1 == n2 {
						continue
					}
					h1 := crossNodeRouter(n1, n2, gpusPerNode)
					h2 := crossNodeRouter(n2, n1, gpusPerNode)
					r1, r2 := rankOf(n1, h1), rankOf(n2, h2)
					if _, err := b.Rank(r1).CreateScratch(scratchSize, n1, n2, ch); err != nil {
						return err
					}
					if _, err := b.Rank(r2).CreateScratch(scratchSize, n1, n2, ch); err != nil {
						return err
					}
				}
			}
		}

		for ch := 0; ch < instances; ch++ {
			ibParts := make(map[ibKey][]*program.Ref)

			for n1 := 0; n1 < numNodes; n1++ {
				for g1 := 0; g1 < gpusPerNode; g1++ {
					for n2 := 0; n2 < numNodes; n2++ {
						for g2 := 0; g2 < gpusPerNode; g2++ {
							r1, r2 := rankOf(n1, g1), rankOf(n2, g2)
							ref, err := b.Rank(r1).Input(r2+ch*numRanks, 1)
							if err != nil {
								return err
							}
							switch {
							case n1 != n2:
								h1 := crossNodeRouter(n1, n2, gpusPerNode)
								next := rankOf(n1, h1)
								scratchIndex := g2*gpusPerNode + g1
								key := ibKey{n1, n2, ch}
								sent, err := ref.Send(next, key.buffer(), scratchIndex, 1, -1, -1, ch)
								if err != nil {
									return err
								}
								ibParts[key] = append(ibParts[key], sent)
							case g1 != g2:
								if _, err := ref.Send(r2, ir.BufOutput, r1+ch*numRanks, 1, -1, -1, ch); err != nil {
									return err
								}
							default:
								if _, err := ref.Send(r1, ir.BufOutput, -1, -1, -1, -1, ch); err != nil {
									return err
								}
							}
						}
					}
				}
			}

			keys := make([]ibKey, 0, len(ibParts))
			for k := range ibParts {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool {
				if keys[i].n1 != keys[j].n1 {
					return keys[i].n1 < keys[j].n1
				}
				return keys[i].n2 < keys[j].n2
			})

			ibChunks := make(map[ibKey]*program.Ref, len(keys))
			for _, key := range keys {
				parts := ibParts[key]
				sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
				merged := parts[0]
				for _, p := range parts[1:] {
					var err error
					merged, err = merged.Group(p)
					if err != nil {
						return err
					}
				}
				ibChunks[key] = merged
			}

			for _, key := range keys {
				h2 := crossNodeRouter(key.n2, key.n1, gpusPerNode)
				next2 := rankOf(key.n2, h2)
				sent, err := ibChunks[key].Send(next2, key.buffer(), -1, -1, -1, -1, ch)
				if err != nil {
					return err
				}
				ibChunks[key] = sent
			}

			for _, key := range keys {
				parts, err := ibChunks[key].Split(gpusPerNode)
				if err != nil {
					return err
				}
				for g2, c := range parts {
					next3 := rankOf(key.n2, g2)
					index := key.n1*gpusPerNode + ch*numRanks
					if _, err := c.Send(next3, ir.BufOutput, index, -1, -1, -1, ch); err != nil {
						return err
					}
				}
			}
		}

		var err error
		tbs, err = emit.Compile(b, autoAssign)
		return err
	})
	if err != nil {
		return err
	}
	if !b.Check() {
		nlog.Warningln("postcondition check failed")
	}

	p := &ir.Program{Name: "hierarchical_all_to_all", Collective: coll.Name(), Topology: topo.Name()}
	for _, r := range coll.Ranks() {
		g := emit.Rank(r, tbs[r])
		if err := emit.Validate(b.Arena(), r, g); err != nil {
			return err
		}
		p.Gpus = append(p.Gpus, g)
	}
	if dumpIR {
		js, err := p.DumpJSON(b.Arena())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, js)
	}
	return (xmlio.Default{}).Write(os.Stdout, p, b.Arena())
}

func main() {
	app := cli.NewApp()
	app.Name = "alltoall"
	app.Usage = "emit a hierarchical AllToAll schedule"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "auto", Usage: "use automatic TB/channel assignment instead of manual"},
		cli.BoolFlag{Name: "dump-ir", Usage: "print the resolved IR as JSON to stderr before emitting XML"},
	}
	app.Action = func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.NewExitError("usage: alltoall <num_nodes> <gpus_per_node> <instances>", 1)
		}
		numNodes, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid num_nodes: %v", err), 1)
		}
		gpusPerNode, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid gpus_per_node: %v", err), 1)
		}
		instances, err := strconv.Atoi(c.Args().Get(2))
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid instances: %v", err), 1)
		}
		if err := run(numNodes, gpusPerNode, instances, c.Bool("auto"), c.Bool("dump-ir")); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		nlog.Errorln(err)
		os.Exit(1)
	}
}
