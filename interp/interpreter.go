// Package interp implements the fetch-decode-dispatch loop over a finalized
// code.Object: a single value stack doubling as both the expression
// evaluation stack and the storage for every live frame's arguments and
// locals, addressed through a base pointer the call-frame stack restores on
// return, plus the upvalue open/close protocol that lets closures outlive
// the frame that created them.
package interp

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/opcode"
	"github.com/ktstephano/corevm/value"
)

// Sentinel error categories. Every runtime failure is wrapped from one of
// these via errors.Wrapf so callers can still errors.Is against the
// category while getting a human-readable location in the message.
var (
	ErrDecode          = errors.New("DecodeError")
	ErrStackUnderflow  = errors.New("StackUnderflow")
	ErrType            = errors.New("TypeError")
	ErrArity           = errors.New("ArityError")
	ErrIntegerOverflow = errors.New("IntegerOverflow")
	ErrReference       = errors.New("Reference")
	ErrInternal        = errors.New("InternalInvariant")
)

// frame is one entry in the auxiliary call-frame stack: enough to resume
// the caller exactly where it left off once the callee returns.
type frame struct {
	returnIP   int
	savedBP    int
	savedNargs int
	savedFn    *value.Func
	returnSlot int // stack index to truncate to and overwrite with the result
}

// Interpreter executes one code.Object against one agent's interned strings
// and upvalue registry. It is not safe for concurrent use.
type Interpreter struct {
	ag      *agent.Agent
	globals map[uint64]value.Value
	stack   []value.Value
	frames  []frame

	bp    int         // base of the current frame's argument+local region
	nargs int         // argument count of the current frame
	curFn *value.Func // function object of the current frame, nil at top level

	// Out is where the print builtin writes its output. Defaults to
	// os.Stdout; tests substitute a bytes.Buffer so they can assert on
	// printed output without capturing the real stdout.
	Out io.Writer

	// StepHook, if set, is invoked before each instruction executes. It
	// exists for the CLI's single-step debugger (cmd "debug"): a hook can
	// print VM state, block on stdin, and return a non-nil error (e.g.
	// ErrDebugQuit) to unwind Run early.
	StepHook func(it *Interpreter, ip int, op opcode.Code) error
}

// ErrDebugQuit is the sentinel a StepHook returns to stop Run cleanly
// (not a VM fault) when the user quits an interactive debug session.
var ErrDebugQuit = errors.New("debug session quit")

// StackDepth reports the current operand/frame stack depth, for debug
// tooling that wants to show progress without reaching into internals.
func (it *Interpreter) StackDepth() int { return len(it.stack) }

// TopOfStack returns the current top-of-stack value, if any.
func (it *Interpreter) TopOfStack() (value.Value, bool) {
	if len(it.stack) == 0 {
		return value.Nil, false
	}
	return it.stack[len(it.stack)-1], true
}

// New returns an Interpreter with the builtin functions installed into its
// global table.
func New(ag *agent.Agent) *Interpreter {
	it := &Interpreter{ag: ag, globals: make(map[uint64]value.Value), Out: os.Stdout}
	installBuiltins(it)
	return it
}

// Global looks up a global by interned name id, for embedding code that
// wants to inspect results after Run returns.
func (it *Interpreter) Global(id uint64) (value.Value, bool) {
	v, ok := it.globals[id]
	return v, ok
}

func (it *Interpreter) push(v value.Value) { it.stack = append(it.stack, v) }

func (it *Interpreter) pop() (value.Value, error) {
	n := len(it.stack)
	if n == 0 {
		return value.Nil, ErrStackUnderflow
	}
	v := it.stack[n-1]
	it.stack = it.stack[:n-1]
	return v, nil
}

func (it *Interpreter) peek() (value.Value, error) {
	n := len(it.stack)
	if n == 0 {
		return value.Nil, ErrStackUnderflow
	}
	return it.stack[n-1], nil
}

// ensureLen grows the stack with Nil placeholders so index n-1 is
// addressable -- used by local slot stores the first time a slot is
// written, since locals are not pre-reserved at function entry.
func (it *Interpreter) ensureLen(n int) {
	for len(it.stack) < n {
		it.stack = append(it.stack, value.Nil)
	}
}

// readU64 decodes the 8-byte little-endian operand at *ip, advancing it past
// the operand on success. A truncated operand tail (fewer than 8 bytes left
// in obj) is a DecodeError rather than a panic.
func readU64(obj *code.Object, ip *int) (uint64, error) {
	if *ip+8 > obj.Len() {
		return 0, errors.Wrapf(ErrDecode, "truncated operand at offset %d: need 8 bytes, have %d", *ip, obj.Len()-*ip)
	}
	b := obj.Slice(*ip, *ip+8)
	*ip += 8
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func readI64(obj *code.Object, ip *int) (int64, error) {
	v, err := readU64(obj, ip)
	return int64(v), err
}

func readF64(obj *code.Object, ip *int) (float64, error) {
	v, err := readU64(obj, ip)
	return math.Float64frombits(v), err
}

// Run executes obj from offset zero until Halt. It returns the top-of-stack
// value at Halt (or Nil if the stack is empty), which matters only to
// embedders and tests -- ordinary top-level statements always balance their
// own stack effect down to nothing.
func (it *Interpreter) Run(obj *code.Object) (value.Value, error) {
	ip := 0
	for {
		if ip < 0 || ip >= obj.Len() {
			return value.Nil, errors.Wrapf(ErrDecode, "ip %d out of range", ip)
		}
		opByte := obj.At(ip)
		op := opcode.Code(opByte)
		if !op.Valid() {
			return value.Nil, errors.Wrapf(ErrDecode, "invalid opcode byte %d at offset %d", opByte, ip)
		}

		if it.StepHook != nil {
			if err := it.StepHook(it, ip, op); err != nil {
				return value.Nil, err
			}
		}

		ip++

		switch op {
		case opcode.Halt:
			if len(it.stack) > 0 {
				return it.stack[len(it.stack)-1], nil
			}
			return value.Nil, nil

		case opcode.ConstInt:
			n, err := readI64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Int(n))
		case opcode.ConstDouble:
			f, err := readF64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Dbl(f))
		case opcode.ConstNull:
			it.push(value.Nil)
		case opcode.ConstTrue:
			it.push(value.Bool(true))
		case opcode.ConstFalse:
			it.push(value.Bool(false))
		case opcode.ConstString:
			id, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Str(id))

		case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Mod, opcode.Exp:
			if err := it.execArith(op); err != nil {
				return value.Nil, err
			}
		case opcode.Neg:
			if err := it.execNeg(); err != nil {
				return value.Nil, err
			}
		case opcode.Not:
			v, err := it.pop()
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Bool(!v.IsTruthy()))
		case opcode.And:
			r, l, err := it.popPair()
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Bool(l.IsTruthy() && r.IsTruthy()))
		case opcode.Or:
			r, l, err := it.popPair()
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Bool(l.IsTruthy() || r.IsTruthy()))

		case opcode.CmpEq, opcode.CmpNotEq, opcode.CmpLess, opcode.CmpLessEq, opcode.CmpGreater, opcode.CmpGreaterEq:
			if err := it.execCompare(op); err != nil {
				return value.Nil, err
			}

		case opcode.Jump:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			ip = int(raw)
		case opcode.JumpIfTrue:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			v, err := it.peek()
			if err != nil {
				return value.Nil, err
			}
			if v.IsTruthy() {
				ip = int(raw)
			}
		case opcode.JumpIfFalse:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			v, err := it.peek()
			if err != nil {
				return value.Nil, err
			}
			if !v.IsTruthy() {
				ip = int(raw)
			}

		case opcode.Pop:
			if _, err := it.pop(); err != nil {
				return value.Nil, err
			}

		case opcode.LoadLocal:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			idx := it.bp + it.nargs + int(raw)
			if idx >= len(it.stack) {
				return value.Nil, errors.Wrapf(ErrInternal, "read of local slot %d before it was stored", raw)
			}
			it.push(it.stack[idx])
		case opcode.StoreLocal:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			idx := it.bp + it.nargs + int(raw)
			v, err := it.peek()
			if err != nil {
				return value.Nil, err
			}
			it.ensureLen(idx + 1)
			it.stack[idx] = v

		case opcode.LoadArgument:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			idx := it.bp + int(raw)
			if idx >= len(it.stack) {
				return value.Nil, errors.Wrapf(ErrInternal, "read of argument slot %d out of range", raw)
			}
			it.push(it.stack[idx])
		case opcode.StoreArgument:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			idx := it.bp + int(raw)
			v, err := it.peek()
			if err != nil {
				return value.Nil, err
			}
			it.ensureLen(idx + 1)
			it.stack[idx] = v

		case opcode.LoadUpvalue:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			v, err := it.loadUpvalue(int(raw))
			if err != nil {
				return value.Nil, err
			}
			it.push(v)
		case opcode.StoreUpvalue:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			v, err := it.peek()
			if err != nil {
				return value.Nil, err
			}
			if err := it.storeUpvalue(int(raw), v); err != nil {
				return value.Nil, err
			}

		case opcode.LoadGlobal:
			id, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			v, ok := it.globals[id]
			if !ok {
				return value.Nil, errors.Wrapf(ErrReference, "undeclared global #%d", id)
			}
			it.push(v)
		case opcode.StoreGlobal:
			id, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			v, err := it.pop()
			if err != nil {
				return value.Nil, err
			}
			if _, ok := it.globals[id]; !ok {
				return value.Nil, errors.Wrapf(ErrReference, "store to undeclared global #%d", id)
			}
			it.globals[id] = v
		case opcode.DeclareGlobal:
			id, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			if _, ok := it.globals[id]; !ok {
				it.globals[id] = value.Nil
			}

		case opcode.NewFunction:
			arity, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			entry, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			it.push(value.Fn(&value.Func{Arity: int(arity), EntryAddress: entry}))
		case opcode.BindLocal:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			if err := it.bindStackSlot(it.bp + it.nargs + int(raw)); err != nil {
				return value.Nil, err
			}
		case opcode.BindArgument:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			if err := it.bindStackSlot(it.bp + int(raw)); err != nil {
				return value.Nil, err
			}
		case opcode.BindUpvalue:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			if err := it.bindCapturedUpvalue(int(raw)); err != nil {
				return value.Nil, err
			}

		case opcode.Call:
			raw, err := readU64(obj, &ip)
			if err != nil {
				return value.Nil, err
			}
			if err := it.execCall(int(raw), &ip); err != nil {
				return value.Nil, err
			}
		case opcode.Return:
			if err := it.execReturn(&ip); err != nil {
				return value.Nil, err
			}
		}
	}
}

// popPair pops right then left (right was pushed after left by every binary
// expression the compiler emits) and returns them in (right, left) order.
func (it *Interpreter) popPair() (value.Value, value.Value, error) {
	r, err := it.pop()
	if err != nil {
		return value.Nil, value.Nil, err
	}
	l, err := it.pop()
	if err != nil {
		return value.Nil, value.Nil, err
	}
	return r, l, nil
}

func asFloats(l, r value.Value) (float64, float64, bool) {
	toF := func(v value.Value) (float64, bool) {
		switch v.Kind() {
		case value.Integer:
			return float64(v.AsInt()), true
		case value.Double:
			return v.AsDouble(), true
		default:
			return 0, false
		}
	}
	lf, ok := toF(l)
	if !ok {
		return 0, 0, false
	}
	rf, ok := toF(r)
	if !ok {
		return 0, 0, false
	}
	return lf, rf, true
}

func bothInt(l, r value.Value) (int64, int64, bool) {
	if l.Kind() != value.Integer || r.Kind() != value.Integer {
		return 0, 0, false
	}
	return l.AsInt(), r.AsInt(), true
}

func addOverflowI64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subOverflowI64(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func mulOverflowI64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

// intPow implements checked integer exponentiation by squaring. The
// exponent must fit a uint32; a negative exponent is rejected the same way
// since this VM has no rational/double-coercing pow for the integer path.
func intPow(base, exp int64) (int64, error) {
	if exp < 0 || exp > math.MaxUint32 {
		return 0, errors.Wrapf(ErrIntegerOverflow, "exponent %d does not fit u32", exp)
	}
	result := int64(1)
	b := base
	e := uint64(exp)
	for e > 0 {
		if e&1 == 1 {
			p, ok := mulOverflowI64(result, b)
			if !ok {
				return 0, errors.Wrap(ErrIntegerOverflow, "Exp result overflow")
			}
			result = p
		}
		e >>= 1
		if e > 0 {
			p, ok := mulOverflowI64(b, b)
			if !ok {
				return 0, errors.Wrap(ErrIntegerOverflow, "Exp intermediate overflow")
			}
			b = p
		}
	}
	return result, nil
}

func (it *Interpreter) execArith(op opcode.Code) error {
	r, l, err := it.popPair()
	if err != nil {
		return err
	}

	if li, ri, ok := bothInt(l, r); ok {
		switch op {
		case opcode.Add:
			v, ok := addOverflowI64(li, ri)
			if !ok {
				return errors.Wrap(ErrIntegerOverflow, "Add overflow")
			}
			it.push(value.Int(v))
			return nil
		case opcode.Sub:
			v, ok := subOverflowI64(li, ri)
			if !ok {
				return errors.Wrap(ErrIntegerOverflow, "Sub overflow")
			}
			it.push(value.Int(v))
			return nil
		case opcode.Mul:
			v, ok := mulOverflowI64(li, ri)
			if !ok {
				return errors.Wrap(ErrIntegerOverflow, "Mul overflow")
			}
			it.push(value.Int(v))
			return nil
		case opcode.Div:
			if ri == 0 {
				return errors.Wrap(ErrIntegerOverflow, "integer division by zero")
			}
			if li == math.MinInt64 && ri == -1 {
				return errors.Wrap(ErrIntegerOverflow, "Div overflow")
			}
			it.push(value.Int(li / ri))
			return nil
		case opcode.Mod:
			if ri == 0 {
				return errors.Wrap(ErrIntegerOverflow, "integer modulo by zero")
			}
			it.push(value.Int(li % ri))
			return nil
		case opcode.Exp:
			v, err := intPow(li, ri)
			if err != nil {
				return err
			}
			it.push(value.Int(v))
			return nil
		}
	}

	lf, rf, ok := asFloats(l, r)
	if !ok {
		return errors.Wrapf(ErrType, "arithmetic operand is not numeric (%s, %s)", l.Kind(), r.Kind())
	}
	switch op {
	case opcode.Add:
		it.push(value.Dbl(lf + rf))
	case opcode.Sub:
		it.push(value.Dbl(lf - rf))
	case opcode.Mul:
		it.push(value.Dbl(lf * rf))
	case opcode.Div:
		it.push(value.Dbl(lf / rf))
	case opcode.Mod:
		it.push(value.Dbl(math.Mod(lf, rf)))
	case opcode.Exp:
		it.push(value.Dbl(math.Pow(lf, rf)))
	}
	return nil
}

func (it *Interpreter) execNeg() error {
	v, err := it.pop()
	if err != nil {
		return err
	}
	switch v.Kind() {
	case value.Integer:
		if v.AsInt() == math.MinInt64 {
			return errors.Wrap(ErrIntegerOverflow, "Neg overflow")
		}
		it.push(value.Int(-v.AsInt()))
	case value.Double:
		it.push(value.Dbl(-v.AsDouble()))
	default:
		return errors.Wrapf(ErrType, "Neg operand is not numeric (%s)", v.Kind())
	}
	return nil
}

func (it *Interpreter) execCompare(op opcode.Code) error {
	r, l, err := it.popPair()
	if err != nil {
		return err
	}
	if op == opcode.CmpEq {
		it.push(value.Bool(l.Equal(r)))
		return nil
	}
	if op == opcode.CmpNotEq {
		it.push(value.Bool(!l.Equal(r)))
		return nil
	}
	lf, rf, ok := asFloats(l, r)
	if !ok {
		return errors.Wrapf(ErrType, "relational operand is not numeric (%s, %s)", l.Kind(), r.Kind())
	}
	switch op {
	case opcode.CmpLess:
		it.push(value.Bool(lf < rf))
	case opcode.CmpLessEq:
		it.push(value.Bool(lf <= rf))
	case opcode.CmpGreater:
		it.push(value.Bool(lf > rf))
	case opcode.CmpGreaterEq:
		it.push(value.Bool(lf >= rf))
	}
	return nil
}

// bindStackSlot attaches an upvalue aliasing an absolute stack index to the
// function value currently on top of the stack, reusing an already-open
// upvalue at that index if the agent's registry has one.
func (it *Interpreter) bindStackSlot(idx int) error {
	var u *value.Upvalue
	for _, cand := range it.ag.OpenUpvalues() {
		if cand.State == value.Open && cand.StackIndex == idx {
			u = cand
			break
		}
	}
	if u == nil {
		u = value.NewOpenUpvalue(idx)
		it.ag.PushUpvalue(u)
	}
	return it.attachUpvalueToTop(u)
}

// bindCapturedUpvalue attaches the current frame's own upvalue at index
// (itself already open-or-closed, shared by pointer) to the function value
// on top of the stack -- the multi-level-capture case, where an inner
// function closes over a variable two or more function boundaries away.
func (it *Interpreter) bindCapturedUpvalue(index int) error {
	if it.curFn == nil || index < 0 || index >= len(it.curFn.Upvalues) {
		return errors.Wrapf(ErrInternal, "BindUpvalue index %d out of range", index)
	}
	return it.attachUpvalueToTop(it.curFn.Upvalues[index])
}

func (it *Interpreter) attachUpvalueToTop(u *value.Upvalue) error {
	fnVal, err := it.pop()
	if err != nil {
		return err
	}
	if fnVal.Kind() != value.Function {
		return errors.Wrapf(ErrInternal, "Bind target is not a function (%s)", fnVal.Kind())
	}
	f := fnVal.AsFunc()
	f.Upvalues = append(f.Upvalues, u)
	it.push(fnVal)
	return nil
}

func (it *Interpreter) loadUpvalue(index int) (value.Value, error) {
	if it.curFn == nil || index < 0 || index >= len(it.curFn.Upvalues) {
		return value.Nil, errors.Wrapf(ErrInternal, "upvalue index %d out of range", index)
	}
	u := it.curFn.Upvalues[index]
	if u.State == value.Closed {
		return u.Closed, nil
	}
	if u.StackIndex >= len(it.stack) {
		return value.Nil, errors.Wrap(ErrInternal, "open upvalue references a discarded stack slot")
	}
	return it.stack[u.StackIndex], nil
}

func (it *Interpreter) storeUpvalue(index int, v value.Value) error {
	if it.curFn == nil || index < 0 || index >= len(it.curFn.Upvalues) {
		return errors.Wrapf(ErrInternal, "upvalue index %d out of range", index)
	}
	u := it.curFn.Upvalues[index]
	if u.State == value.Closed {
		u.Closed = v
		return nil
	}
	if u.StackIndex >= len(it.stack) {
		return errors.Wrap(ErrInternal, "open upvalue references a discarded stack slot")
	}
	it.stack[u.StackIndex] = v
	return nil
}

// execCall invokes the function sitting one slot below its arguments,
// compiled there exactly once by the call lowering. Call reads that
// slot in place (it is not popped) since it also serves as the eventual
// return-value slot; popping it would both consume the compiler's only copy
// of the callee and disturb the argument region above it.
func (it *Interpreter) execCall(nargs int, ip *int) error {
	if len(it.stack) < nargs+1 {
		return ErrStackUnderflow
	}
	argsStart := len(it.stack) - nargs
	returnSlot := argsStart - 1
	fnVal := it.stack[returnSlot]
	if fnVal.Kind() != value.Function {
		return errors.Wrapf(ErrType, "call target is not a function (%s)", fnVal.Kind())
	}
	fn := fnVal.AsFunc()
	// Only under-application is an error; extra arguments are permitted and
	// simply remain on the stack, inaccessible since the compiler never
	// emits a Load for a slot beyond the callee's declared arity.
	if nargs < fn.Arity {
		return errors.Wrapf(ErrArity, "expected at least %d arguments, got %d", fn.Arity, nargs)
	}

	if fn.IsBuiltin {
		args := append([]value.Value(nil), it.stack[argsStart:]...)
		result, herr := fn.Host(args)
		it.stack = it.stack[:returnSlot]
		if herr != nil {
			return herr
		}
		it.push(result)
		return nil
	}

	it.frames = append(it.frames, frame{
		returnIP:   *ip,
		savedBP:    it.bp,
		savedNargs: it.nargs,
		savedFn:    it.curFn,
		returnSlot: returnSlot,
	})
	it.bp = argsStart
	it.nargs = nargs
	it.curFn = fn
	*ip = int(fn.EntryAddress)
	return nil
}

// execReturn closes every upvalue still open within the returning frame
// before discarding its stack region: an upvalue survives its defining
// frame exactly when some closure still references it, in which case it was
// already attached via Bind* and only needs its current value copied out
// before the stack memory disappears.
func (it *Interpreter) execReturn(ip *int) error {
	retVal, err := it.pop()
	if err != nil {
		return err
	}

	for {
		regs := it.ag.OpenUpvalues()
		if len(regs) == 0 {
			break
		}
		top := regs[len(regs)-1]
		if top.State == value.Closed {
			return errors.Wrap(ErrInternal, "closed upvalue found in open registry")
		}
		if top.StackIndex < it.bp {
			break
		}
		u := it.ag.PopUpvalue()
		if u.StackIndex >= len(it.stack) {
			return errors.Wrap(ErrInternal, "open upvalue references a discarded stack slot")
		}
		u.Close(it.stack[u.StackIndex])
	}

	if len(it.frames) == 0 {
		return errors.Wrap(ErrInternal, "Return with no active call frame")
	}
	f := it.frames[len(it.frames)-1]
	it.frames = it.frames[:len(it.frames)-1]

	if f.returnSlot > len(it.stack) {
		return errors.Wrap(ErrInternal, "frame's stack region already discarded at Return")
	}
	it.stack = it.stack[:f.returnSlot]
	it.push(retVal)

	*ip = f.returnIP
	it.bp = f.savedBP
	it.nargs = f.savedNargs
	it.curFn = f.savedFn
	return nil
}
