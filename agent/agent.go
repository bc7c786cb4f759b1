// Package agent owns the process-wide state that outlives any single
// compile-and-run cycle: the interned string table that gives every
// identifier and string literal a stable small integer id, the registry of
// still-open upvalues the interpreter consults at frame return, and the
// passive module map external driver code populates and consults.
package agent

import (
	"github.com/ktstephano/corevm/value"
)

// Agent is the single owner of interned strings, live upvalues, and the
// module registry for one compile+run session. It is not safe for
// concurrent use.
type Agent struct {
	strings  []string
	index    map[string]uint64
	upvalues []*value.Upvalue
	modules  map[uint64]any
}

// New returns an empty Agent.
func New() *Agent {
	return &Agent{
		index:   make(map[string]uint64),
		modules: make(map[uint64]any),
	}
}

// InternString returns the stable id for s, interning it if this is the
// first time s has been seen. Ids are dense, start at 0, and are stable for
// the lifetime of the agent.
func (a *Agent) InternString(s string) uint64 {
	if id, ok := a.index[s]; ok {
		return id
	}
	id := uint64(len(a.strings))
	a.strings = append(a.strings, s)
	a.index[s] = id
	return id
}

// String returns the interned string at id. Panics if id is out of range --
// callers only ever pass ids that were themselves produced by InternString
// or embedded in already-validated bytecode.
func (a *Agent) String(id uint64) string {
	return a.strings[id]
}

// StringCount returns the number of distinct strings interned so far.
func (a *Agent) StringCount() int {
	return len(a.strings)
}

// PushUpvalue registers a newly created open upvalue with the agent so the
// interpreter can find it again at frame return.
func (a *Agent) PushUpvalue(u *value.Upvalue) {
	a.upvalues = append(a.upvalues, u)
}

// OpenUpvalues returns the live open-upvalue registry, ordered oldest-first.
// The interpreter scans from the end (most recently opened) when closing
// upvalues at Return.
func (a *Agent) OpenUpvalues() []*value.Upvalue {
	return a.upvalues
}

// PopUpvalue removes and returns the most recently pushed open upvalue. Used
// by the interpreter while closing upvalues at Return.
func (a *Agent) PopUpvalue() *value.Upvalue {
	n := len(a.upvalues)
	if n == 0 {
		return nil
	}
	u := a.upvalues[n-1]
	a.upvalues = a.upvalues[:n-1]
	return u
}

// Modules exposes the opaque module registry, keyed by interned name id.
// The core never reads or writes through it itself -- it is a passive map a
// driver populates.
func (a *Agent) Modules() map[uint64]any {
	return a.modules
}
