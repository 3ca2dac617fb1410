package dataflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Cluster drives one graph per worker through epochs in lockstep. Every
// worker steps the same round in parallel, envelopes are exchanged, and the
// round repeats until no worker has work queued at it; then the cluster
// moves to the lowest round any worker still holds. Workers never run
// different rounds concurrently, which is what lets operators reason about
// one iteration at a time.
type Cluster struct {
	graphs []*Graph
}

// NewCluster assembles pre-built worker graphs. The graphs must have been
// constructed identically, worker w holding Graph(w, len(graphs)).
func NewCluster(graphs ...*Graph) *Cluster {
	if len(graphs) == 0 {
		panic("dataflow: cluster needs at least one worker")
	}
	for w, g := range graphs {
		if g.Worker() != w || g.Workers() != len(graphs) {
			panic(fmt.Sprintf("dataflow: graph %d built for worker %d of %d", w, g.Worker(), g.Workers()))
		}
	}
	return &Cluster{graphs: graphs}
}

// Workers returns the number of workers.
func (c *Cluster) Workers() int { return len(c.graphs) }

// Graph returns worker w's graph.
func (c *Cluster) Graph(w int) *Graph { return c.graphs[w] }

// Epoch returns the epoch the next RunEpoch will process.
func (c *Cluster) Epoch() Time { return c.graphs[0].Epoch() }

// Frontier returns the time through which results are complete.
func (c *Cluster) Frontier() Time { return c.graphs[0].Frontier() }

// EpochStats summarizes one epoch's scheduling.
type EpochStats struct {
	Epoch     Time
	Rounds    int // distinct iteration rounds stepped
	Steps     int // worker steps that found work
	Envelopes int // cross-worker envelopes routed
}

// RunEpoch ingests everything staged on the workers' inputs, iterates all
// recursive regions to fixpoint, flushes epoch totals through the outer
// graph, and seals the epoch. On return every trace is sealed through the
// new frontier.
func (c *Cluster) RunEpoch(ctx context.Context) (EpochStats, error) {
	stats := EpochStats{Epoch: c.Epoch()}
	for _, g := range c.graphs {
		g.BeginEpoch()
	}
	stats.Envelopes += c.route()
	for {
		round, ok := c.minPending()
		if !ok || round == flushRound {
			break
		}
		stats.Rounds++
		for c.pendingAt(round) {
			if err := c.stepAll(ctx, round, &stats); err != nil {
				return stats, err
			}
			stats.Envelopes += c.route()
		}
	}
	for _, g := range c.graphs {
		g.BeginFlush()
	}
	stats.Envelopes += c.route()
	for c.pendingAt(flushRound) {
		if err := c.stepAll(ctx, flushRound, &stats); err != nil {
			return stats, err
		}
		stats.Envelopes += c.route()
	}
	for _, g := range c.graphs {
		g.FinishEpoch()
	}
	return stats, nil
}

// stepAll runs one round on every worker in parallel. Graphs touch only
// their own state during a step; all cross-worker movement goes through
// route afterward.
func (c *Cluster) stepAll(ctx context.Context, round uint32, stats *EpochStats) error {
	eg, ectx := errgroup.WithContext(ctx)
	ran := make([]bool, len(c.graphs))
	for w, g := range c.graphs {
		w, g := w, g
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			ran[w] = g.StepRound(round)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for _, r := range ran {
		if r {
			stats.Steps++
		}
	}
	return nil
}

// route moves every worker's outbound envelopes to their destinations.
// Serial on purpose: delivery order into each inbox must not depend on
// goroutine scheduling.
func (c *Cluster) route() int {
	n := 0
	for _, g := range c.graphs {
		for _, env := range g.TakeOutbound() {
			c.graphs[env.Worker].Deliver(env)
			n++
		}
	}
	return n
}

func (c *Cluster) minPending() (uint32, bool) {
	var min uint32
	found := false
	for _, g := range c.graphs {
		if r, ok := g.MinPending(); ok && (!found || r < min) {
			min, found = r, true
		}
	}
	return min, found
}

func (c *Cluster) pendingAt(round uint32) bool {
	for _, g := range c.graphs {
		if r, ok := g.MinPending(); ok && r == round {
			return true
		}
	}
	return false
}
