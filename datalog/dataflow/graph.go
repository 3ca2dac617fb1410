package dataflow

import (
	"fmt"
	"math"
)

// flushRound is the reserved round number for post-convergence epoch
// finalization. Region egress and everything downstream of it (traces, the
// count operator, inspectors) runs at this round only.
const flushRound = math.MaxUint32

// NodeID identifies an operator within a worker's graph. IDs are assigned
// sequentially during construction, which is what correlates operators
// positionally across workers.
type NodeID int32

// exchangeKind says how an edge partitions records across workers.
type exchangeKind uint8

const (
	exchNone   exchangeKind = iota // stay on the producing worker
	exchByKey                      // route by hash of Pair.Key
	exchByPair                     // route by hash of the whole record
)

// node is an operator instance. step is invoked whenever the node has
// deliveries queued for the executing round; it must not block, and it must
// emit deterministically given its deliveries and state.
type node interface {
	step(g *Graph, round uint32, in []delivery)
	endEpoch(g *Graph)
}

// flusher is implemented by nodes that hold converged per-epoch results back
// until the flush round (region egress).
type flusher interface {
	beginFlush(g *Graph)
}

// baseNode supplies the no-op end-of-epoch hook.
type baseNode struct {
	id NodeID
}

func (n *baseNode) endEpoch(*Graph) {}

// delivery is a batch of updates arriving on one input port. seq carries the
// arrangement commit sequence on index broadcast edges and is zero
// elsewhere. A negative port is a self-wakeup with no payload (used by
// operators that schedule re-examination of historical times).
type delivery struct {
	port int
	seq  uint64
	ups  []Update
}

// edge is one wiring from a producer to a consumer port.
type edge struct {
	dst   NodeID
	port  int
	shift uint32 // added to the emitting round; +1 on feedback into a variable
	exch  exchangeKind
}

// Envelope is a batch crossing workers. The cluster routes envelopes between
// rounds; (Node, Port) addressing only lines up because all workers
// constructed their graphs in the same order.
type Envelope struct {
	Worker int
	Node   NodeID
	Port   int
	Round  uint32
	Seq    uint64
	Ups    []Update
}

// Graph is one worker's copy of the dataflow: the operator list, the wiring,
// and all runtime state. Construction and execution are both single
// threaded; distinct workers' graphs never share memory.
type Graph struct {
	worker  int
	workers int

	nodes []node
	edges [][]edge

	inbox    []map[uint32][]delivery
	outbound []Envelope

	inputs   []*Input
	flush    []flusher
	epoch    Time
	frontier Time
}

// NewGraph creates the empty graph for one worker of a cluster of the given
// size.
func NewGraph(worker, workers int) *Graph {
	if workers <= 0 {
		panic("dataflow: cluster size must be positive")
	}
	if worker < 0 || worker >= workers {
		panic(fmt.Sprintf("dataflow: worker index %d out of range [0,%d)", worker, workers))
	}
	return &Graph{worker: worker, workers: workers}
}

// Worker returns this graph's worker index.
func (g *Graph) Worker() int { return g.worker }

// Workers returns the cluster size the graph was built for.
func (g *Graph) Workers() int { return g.workers }

// Epoch returns the epoch currently being computed.
func (g *Graph) Epoch() Time { return g.epoch }

// Frontier returns the first epoch that is not yet complete. Snapshot reads
// are valid strictly below it.
func (g *Graph) Frontier() Time { return g.frontier }

// add registers a node and returns its positional identity.
func (g *Graph) add(n node) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.edges = append(g.edges, nil)
	g.inbox = append(g.inbox, make(map[uint32][]delivery))
	return id
}

// connect wires src's output to an input port of dst.
func (g *Graph) connect(src, dst NodeID, port int, shift uint32, exch exchangeKind) {
	g.edges[src] = append(g.edges[src], edge{dst: dst, port: port, shift: shift, exch: exch})
}

// emit distributes a consolidated batch produced by src at the given round
// along all of src's outgoing edges, partitioning on exchange edges.
func (g *Graph) emit(src NodeID, round uint32, ups []Update) {
	g.emitSeq(src, round, 0, ups)
}

func (g *Graph) emitSeq(src NodeID, round uint32, seq uint64, ups []Update) {
	if len(ups) == 0 {
		return
	}
	for _, e := range g.edges[src] {
		at := round
		if e.shift != 0 && round != flushRound {
			at = round + e.shift
		}
		if e.exch == exchNone || g.workers == 1 {
			g.deliver(e.dst, delivery{port: e.port, seq: seq, ups: ups}, at)
			continue
		}
		parts := make([][]Update, g.workers)
		for _, u := range ups {
			var w int
			if e.exch == exchByKey {
				w = PartitionKey(u.Pair.Key, g.workers)
			} else {
				w = PartitionRecord(u.Pair, g.workers)
			}
			parts[w] = append(parts[w], u)
		}
		for w, part := range parts {
			if len(part) == 0 {
				continue
			}
			if w == g.worker {
				g.deliver(e.dst, delivery{port: e.port, seq: seq, ups: part}, at)
				continue
			}
			g.outbound = append(g.outbound, Envelope{
				Worker: w, Node: e.dst, Port: e.port, Round: at, Seq: seq, Ups: part,
			})
		}
	}
}

// deliver queues a batch for a node at a round. Delivered work is picked up
// by the next sub-round at that round number.
func (g *Graph) deliver(dst NodeID, d delivery, round uint32) {
	g.inbox[dst][round] = append(g.inbox[dst][round], d)
}

// wake schedules a node to run at a future round with no payload.
func (g *Graph) wake(dst NodeID, round uint32) {
	g.deliver(dst, delivery{port: -1}, round)
}

// Deliver accepts an envelope routed from another worker.
func (g *Graph) Deliver(env Envelope) {
	g.deliver(env.Node, delivery{port: env.Port, seq: env.Seq, ups: env.Ups}, env.Round)
}

// TakeOutbound returns and clears the cross-worker batches produced since
// the last call.
func (g *Graph) TakeOutbound() []Envelope {
	out := g.outbound
	g.outbound = nil
	return out
}

// BeginEpoch moves staged input changes into round zero.
func (g *Graph) BeginEpoch() {
	for _, in := range g.inputs {
		in.ingest(g)
	}
}

// StepRound runs every node that has deliveries queued for the round, in
// positional order, and reports whether any work was done. Emissions go to
// inboxes (or outbound envelopes) and become visible to the next sub-round.
func (g *Graph) StepRound(round uint32) bool {
	worked := false
	for id, n := range g.nodes {
		box := g.inbox[id]
		ds, ok := box[round]
		if !ok {
			continue
		}
		delete(box, round)
		if len(ds) == 0 {
			continue
		}
		worked = true
		n.step(g, round, ds)
	}
	return worked
}

// MinPending reports the lowest round with queued work, if any. A result of
// flushRound means only post-convergence work remains.
func (g *Graph) MinPending() (uint32, bool) {
	var min uint32
	found := false
	for _, box := range g.inbox {
		for r, ds := range box {
			if len(ds) == 0 {
				continue
			}
			if !found || r < min {
				min, found = r, true
			}
		}
	}
	return min, found
}

// BeginFlush asks region egress nodes to release their converged epoch
// deltas into the flush round.
func (g *Graph) BeginFlush() {
	for _, f := range g.flush {
		f.beginFlush(g)
	}
}

// FinishEpoch commits the epoch on every node, advances the frontier and
// makes the next epoch current.
func (g *Graph) FinishEpoch() {
	for _, n := range g.nodes {
		n.endEpoch(g)
	}
	g.epoch++
	g.frontier = g.epoch
}

// drain consolidates the payloads of a set of deliveries into one batch.
func drain(ds []delivery) []Update {
	var ups []Update
	for _, d := range ds {
		ups = append(ups, d.ups...)
	}
	return Consolidate(ups)
}
