package dataflow

// Input is the mutable end of a base collection on one worker. Callers stage
// signed changes at any time; staged changes take effect together when the
// cluster begins the next epoch.
//
// CONCURRENCY: an Input belongs to its worker's graph and is staged from the
// driving goroutine between epochs. It is not safe for use while the cluster
// is executing an epoch.
type Input struct {
	baseNode
	staged []Update
}

// NewInput creates an input node and returns its handle together with the
// collection of its changes.
func (g *Graph) NewInput() (*Input, Collection) {
	in := &Input{}
	in.id = g.add(in)
	g.inputs = append(g.inputs, in)
	return in, Collection{g: g, id: in.id}
}

// Stage queues one signed change for the next epoch.
func (in *Input) Stage(p Pair, diff int64) {
	if diff == 0 {
		return
	}
	in.staged = append(in.staged, Update{Pair: p, Diff: diff})
}

// ingest moves staged changes into round zero of the current epoch.
func (in *Input) ingest(g *Graph) {
	if len(in.staged) == 0 {
		return
	}
	ups := Consolidate(in.staged)
	in.staged = nil
	if len(ups) == 0 {
		return
	}
	g.deliver(in.id, delivery{port: 0, ups: ups}, 0)
}

// step forwards the ingested batch to downstream consumers.
func (in *Input) step(g *Graph, round uint32, ds []delivery) {
	g.emit(in.id, round, drain(ds))
}
