// Package dataflow is the incremental execution substrate underneath the
// query compiler. It hosts collections of integer pairs with signed
// multiplicities, evolving over totally ordered epoch timestamps, and
// provides the generic operators the compiler wires together: map-style
// reorientations, union, deduplication, arranged (indexed) joins, and
// recursive fixpoint regions.
//
// Execution is replicated across a fixed set of workers. Every worker builds
// a structurally identical copy of the operator graph; records move between
// workers only through explicit hash-partitioned exchange on the edges that
// need co-location (arrangements, deduplication). Because operator and
// channel identities are assigned positionally during construction, graph
// construction MUST be deterministic across workers: any name-to-operator
// iteration that feeds construction has to run in a canonical order. A
// violation does not surface as an error; it misroutes exchanged records and
// corrupts relation contents.
//
// Scheduling is round-based. One epoch is in flight at a time. Inside a
// recursive region, changes are timestamped with (epoch, iteration) under
// the product partial order; rounds execute iterations in ascending order
// until no operator holds pending work, which is when the region has
// re-converged to its fixpoint for the epoch. Operator state carries full
// per-iteration histories so that retractions cascade correctly through
// cycles of derived facts; see the distinct and join operators for the
// details. Once an epoch commits the frontier advances past it and read
// snapshots observe the new contents.
package dataflow
