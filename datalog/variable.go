package datalog

import (
	"github.com/wbrown/delta-datalog/datalog/dataflow"
)

// Variable is one relation's content while its recursive definition is
// under construction. It is created from the relation's base input,
// accumulates one contribution per production that names the relation as
// its head, and is sealed exactly once, fixing the definition as the
// deduplicated union of base and contributions.
//
// Productions consume a variable through Forward and Reverse, which build
// the by-source and by-destination indexes of its evolving content on first
// use and memoize them. However many productions reference the relation, in
// either orientation, it is indexed at most twice.
//
// An unsealed variable would silently behave as its base input alone, so
// the compiler seals every variable in one sweep and Seal panics if it runs
// twice.
type Variable struct {
	reg    *dataflow.Region
	base   dataflow.Collection
	fb     *dataflow.Feedback
	terms  []dataflow.Collection
	sealed bool
	fwd    *dataflow.Index
	rev    *dataflow.Index
}

// NewVariable starts a relation's definition from its base input, lifting
// the base into the recursive region.
func NewVariable(reg *dataflow.Region, base dataflow.Collection) *Variable {
	return &Variable{
		reg:  reg,
		base: reg.Enter(base),
		fb:   reg.NewFeedback(),
	}
}

// Collection returns the variable's recursive reference: the stream of its
// eventual sealed definition, usable before sealing to close cycles.
func (v *Variable) Collection() dataflow.Collection {
	return v.fb.Collection()
}

// AddProduction registers one production's output as a union term. Panics
// after sealing; contributions are fixed once the definition is.
func (v *Variable) AddProduction(c dataflow.Collection) {
	if v.sealed {
		panic("datalog: AddProduction on a sealed variable")
	}
	v.terms = append(v.terms, c)
}

// Seal fixes the definition as distinct(base + contributions) and feeds it
// back as the variable's own reference. Contributions re-enter one
// iteration later than they were derived, which is what lets the fixpoint
// iteration terminate. Panics if called twice.
func (v *Variable) Seal() {
	if v.sealed {
		panic("datalog: variable sealed twice")
	}
	v.sealed = true
	delayed := make([]dataflow.Collection, len(v.terms))
	for i, t := range v.terms {
		delayed[i] = t.Delayed()
	}
	v.fb.Set(v.base.Concat(delayed...).Distinct())
}

// Forward returns the variable's content indexed by edge source, building
// it on first use.
func (v *Variable) Forward() *dataflow.Index {
	if v.fwd == nil {
		v.fwd = v.Collection().IndexByKey()
	}
	return v.fwd
}

// Reverse returns the variable's content indexed by edge destination,
// building it on first use.
func (v *Variable) Reverse() *dataflow.Index {
	if v.rev == nil {
		v.rev = v.Collection().Swapped().IndexByKey()
	}
	return v.rev
}
