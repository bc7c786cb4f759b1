// Package code defines the immutable, finalized instruction buffer the
// bytecode builder produces and the interpreter/disassembler consume.
package code

// Object is an immutable sequence of instruction bytes with every label
// reference already resolved to an absolute offset. It carries no alignment
// requirements and no source-location metadata.
type Object struct {
	bytes []byte
}

// New wraps an already-finalized instruction buffer. Only bytecode.Builder
// should normally call this -- tests that hand-assemble expected output are
// the other legitimate caller.
func New(bytes []byte) *Object {
	return &Object{bytes: bytes}
}

// Len returns the number of instruction bytes.
func (o *Object) Len() int { return len(o.bytes) }

// At returns the byte at absolute offset i.
func (o *Object) At(i int) byte { return o.bytes[i] }

// Slice returns the raw bytes from i to j (used by the interpreter's operand
// decoder and the disassembler).
func (o *Object) Slice(i, j int) []byte { return o.bytes[i:j] }

// Bytes returns the full underlying buffer. Callers must not mutate it.
func (o *Object) Bytes() []byte { return o.bytes }
