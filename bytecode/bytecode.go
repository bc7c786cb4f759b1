// Package bytecode implements the append-only instruction builder: opcode
// emission, label allocation, and deferred patching of forward references,
// finalized into an immutable code.Object.
package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/opcode"
)

// ErrUnresolvedLabel is the CompileError raised by Finalize when a patch
// site references a label that was never marked.
var ErrUnresolvedLabel = errors.New("CompileError: label referenced but never marked")

// ErrLabelAlreadyMarked is raised by MarkLabel when called twice for the
// same label.
var ErrLabelAlreadyMarked = errors.New("CompileError: label already marked")

// Label is an opaque handle to a not-yet-resolved (or already resolved)
// byte position in the instruction buffer.
type Label int

type patch struct {
	label Label
	pos   int // position in buf where the 8-byte address operand starts
}

// Builder accumulates instruction bytes and a label table; call Finalize
// once the full program has been emitted to obtain a code.Object with every
// label reference resolved to an absolute offset.
type Builder struct {
	buf      []byte
	labelPos map[Label]int // marked labels only
	pending  []patch
	nextLbl  Label
	lastOp   opcode.Code
	hasLast  bool
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{labelPos: make(map[Label]int)}
}

// Len returns the number of bytes emitted so far.
func (b *Builder) Len() int { return len(b.buf) }

// NewLabel allocates a fresh label with no position yet.
func (b *Builder) NewLabel() Label {
	l := b.nextLbl
	b.nextLbl++
	return l
}

// MarkLabel records the current buffer length as l's target position.
func (b *Builder) MarkLabel(l Label) error {
	if _, ok := b.labelPos[l]; ok {
		return errors.Wrapf(ErrLabelAlreadyMarked, "label %d", l)
	}
	b.labelPos[l] = len(b.buf)
	return nil
}

// LastOpcode returns the most recently emitted opcode and whether any
// instruction has been emitted yet. The compiler uses this to decide whether
// a function body already ends in Return before appending an implicit
// ConstNull;Return.
func (b *Builder) LastOpcode() (opcode.Code, bool) {
	return b.lastOp, b.hasLast
}

func (b *Builder) emitOp(c opcode.Code) *Builder {
	b.buf = append(b.buf, byte(c))
	b.lastOp = c
	b.hasLast = true
	return b
}

func (b *Builder) emitU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Builder) emitI64(v int64)    { b.emitU64(uint64(v)) }
func (b *Builder) emitF64(v float64)  { b.emitU64(math.Float64bits(v)) }

// AddressOf emits an 8-byte address operand for l at the current position.
// If l is already marked, the resolved offset is written immediately;
// otherwise the site is recorded in the patch list for Finalize.
func (b *Builder) AddressOf(l Label) *Builder {
	if pos, ok := b.labelPos[l]; ok {
		b.emitU64(uint64(pos))
	} else {
		b.pending = append(b.pending, patch{label: l, pos: len(b.buf)})
		b.emitU64(0) // placeholder, patched by Finalize
	}
	return b
}

// Finalize walks the patch list, writes each target, and returns a read-only
// code.Object. It is an error (ErrUnresolvedLabel, a CompileError) if any
// referenced label was never marked.
func (b *Builder) Finalize() (*code.Object, error) {
	for _, p := range b.pending {
		pos, ok := b.labelPos[p.label]
		if !ok {
			return nil, errors.Wrapf(ErrUnresolvedLabel, "label %d at byte offset %d", p.label, p.pos)
		}
		binary.LittleEndian.PutUint64(b.buf[p.pos:p.pos+8], uint64(pos))
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return code.New(out), nil
}

// --- opcode emission ---------------------------------------------------

func (b *Builder) Halt() *Builder { return b.emitOp(opcode.Halt) }

func (b *Builder) ConstInt(v int64) *Builder {
	b.emitOp(opcode.ConstInt)
	b.emitI64(v)
	return b
}

func (b *Builder) ConstDouble(v float64) *Builder {
	b.emitOp(opcode.ConstDouble)
	b.emitF64(v)
	return b
}

func (b *Builder) ConstNull() *Builder  { return b.emitOp(opcode.ConstNull) }
func (b *Builder) ConstTrue() *Builder  { return b.emitOp(opcode.ConstTrue) }
func (b *Builder) ConstFalse() *Builder { return b.emitOp(opcode.ConstFalse) }

func (b *Builder) ConstString(id uint64) *Builder {
	b.emitOp(opcode.ConstString)
	b.emitU64(id)
	return b
}

func (b *Builder) Add() *Builder { return b.emitOp(opcode.Add) }
func (b *Builder) Sub() *Builder { return b.emitOp(opcode.Sub) }
func (b *Builder) Mul() *Builder { return b.emitOp(opcode.Mul) }
func (b *Builder) Div() *Builder { return b.emitOp(opcode.Div) }
func (b *Builder) Mod() *Builder { return b.emitOp(opcode.Mod) }
func (b *Builder) Exp() *Builder { return b.emitOp(opcode.Exp) }

func (b *Builder) Neg() *Builder { return b.emitOp(opcode.Neg) }
func (b *Builder) Not() *Builder { return b.emitOp(opcode.Not) }
func (b *Builder) And() *Builder { return b.emitOp(opcode.And) }
func (b *Builder) Or() *Builder  { return b.emitOp(opcode.Or) }

func (b *Builder) CmpEq() *Builder        { return b.emitOp(opcode.CmpEq) }
func (b *Builder) CmpNotEq() *Builder     { return b.emitOp(opcode.CmpNotEq) }
func (b *Builder) CmpLess() *Builder      { return b.emitOp(opcode.CmpLess) }
func (b *Builder) CmpLessEq() *Builder    { return b.emitOp(opcode.CmpLessEq) }
func (b *Builder) CmpGreater() *Builder   { return b.emitOp(opcode.CmpGreater) }
func (b *Builder) CmpGreaterEq() *Builder { return b.emitOp(opcode.CmpGreaterEq) }

func (b *Builder) Jump(l Label) *Builder {
	b.emitOp(opcode.Jump)
	return b.AddressOf(l)
}

func (b *Builder) JumpIfTrue(l Label) *Builder {
	b.emitOp(opcode.JumpIfTrue)
	return b.AddressOf(l)
}

func (b *Builder) JumpIfFalse(l Label) *Builder {
	b.emitOp(opcode.JumpIfFalse)
	return b.AddressOf(l)
}

func (b *Builder) Pop() *Builder { return b.emitOp(opcode.Pop) }

func (b *Builder) LoadLocal(slot uint64) *Builder {
	b.emitOp(opcode.LoadLocal)
	b.emitU64(slot)
	return b
}

func (b *Builder) StoreLocal(slot uint64) *Builder {
	b.emitOp(opcode.StoreLocal)
	b.emitU64(slot)
	return b
}

func (b *Builder) LoadArgument(slot uint64) *Builder {
	b.emitOp(opcode.LoadArgument)
	b.emitU64(slot)
	return b
}

func (b *Builder) StoreArgument(slot uint64) *Builder {
	b.emitOp(opcode.StoreArgument)
	b.emitU64(slot)
	return b
}

func (b *Builder) LoadUpvalue(index uint64) *Builder {
	b.emitOp(opcode.LoadUpvalue)
	b.emitU64(index)
	return b
}

func (b *Builder) StoreUpvalue(index uint64) *Builder {
	b.emitOp(opcode.StoreUpvalue)
	b.emitU64(index)
	return b
}

func (b *Builder) LoadGlobal(id uint64) *Builder {
	b.emitOp(opcode.LoadGlobal)
	b.emitU64(id)
	return b
}

func (b *Builder) StoreGlobal(id uint64) *Builder {
	b.emitOp(opcode.StoreGlobal)
	b.emitU64(id)
	return b
}

func (b *Builder) DeclareGlobal(id uint64) *Builder {
	b.emitOp(opcode.DeclareGlobal)
	b.emitU64(id)
	return b
}

// NewFunc emits NewFunction with the given arity and the address of the
// (possibly still-forward) label marking the function body's entry point.
func (b *Builder) NewFunc(arity uint64, entry Label) *Builder {
	b.emitOp(opcode.NewFunction)
	b.emitU64(arity)
	return b.AddressOf(entry)
}

func (b *Builder) BindLocal(slot uint64) *Builder {
	b.emitOp(opcode.BindLocal)
	b.emitU64(slot)
	return b
}

func (b *Builder) BindArgument(slot uint64) *Builder {
	b.emitOp(opcode.BindArgument)
	b.emitU64(slot)
	return b
}

func (b *Builder) BindUpvalue(index uint64) *Builder {
	b.emitOp(opcode.BindUpvalue)
	b.emitU64(index)
	return b
}

func (b *Builder) Call(nargs uint64) *Builder {
	b.emitOp(opcode.Call)
	b.emitU64(nargs)
	return b
}

func (b *Builder) Return() *Builder { return b.emitOp(opcode.Return) }
