// Package value defines the runtime value representation shared by the
// compiler, interpreter, and disassembler: the tagged Value sum, function
// objects (both user-defined and builtin), and the upvalue cell that lets
// closures capture bindings beyond the lifetime of their defining frame.
package value

import (
	"fmt"
)

// Kind tags which variant a Value currently holds.
type Kind byte

const (
	Null Kind = iota
	Boolean
	Integer
	Double
	String
	Function
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Double:
		return "double"
	case String:
		return "string"
	case Function:
		return "function"
	default:
		return "?unknown?"
	}
}

// Value is a tagged union over the small set of runtime types this VM
// understands. Only one of the payload fields is meaningful, selected by
// Kind. Strings are never copied into Value directly -- they live in the
// agent's intern table and Value only borrows the id.
type Value struct {
	kind   Kind
	bval   bool
	ival   int64
	dval   float64
	sid    uint64
	fn     *Func
}

// Nil is the zero Value -- the default "no value".
var Nil = Value{kind: Null}

func Bool(b bool) Value   { return Value{kind: Boolean, bval: b} }
func Int(i int64) Value   { return Value{kind: Integer, ival: i} }
func Dbl(f float64) Value { return Value{kind: Double, dval: f} }
func Str(id uint64) Value { return Value{kind: String, sid: id} }
func Fn(f *Func) Value    { return Value{kind: Function, fn: f} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() bool       { return v.bval }
func (v Value) AsInt() int64       { return v.ival }
func (v Value) AsDouble() float64  { return v.dval }
func (v Value) AsStringID() uint64 { return v.sid }
func (v Value) AsFunc() *Func      { return v.fn }

// IsTruthy reports the language's truthiness rule: Null and Boolean(false)
// are false; every other value, including Integer(0) and the empty string,
// is true.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case Null:
		return false
	case Boolean:
		return v.bval
	default:
		return true
	}
}

// Equal implements same-variant equality. Cross-variant comparisons are
// always false (never an error) -- ordering comparisons are the caller's
// concern; the interpreter accepts any mix of Integer and Double there and
// errors on any other operand.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Boolean:
		return v.bval == o.bval
	case Integer:
		return v.ival == o.ival
	case Double:
		return v.dval == o.dval
	case String:
		return v.sid == o.sid
	case Function:
		return v.fn == o.fn
	default:
		return false
	}
}

func (v Value) GoString() string {
	switch v.kind {
	case Null:
		return "Null"
	case Boolean:
		return fmt.Sprintf("Boolean(%v)", v.bval)
	case Integer:
		return fmt.Sprintf("Integer(%d)", v.ival)
	case Double:
		return fmt.Sprintf("Double(%v)", v.dval)
	case String:
		return fmt.Sprintf("String(#%d)", v.sid)
	case Function:
		return fmt.Sprintf("Function(%v)", v.fn)
	default:
		return "?unknown?"
	}
}

// Func is the runtime function object. Exactly one of the two halves is
// populated depending on whether this is a user-defined or builtin function
// -- kept as one struct rather than an interface since both variants share
// the Name/Arity fields and callers branch on IsBuiltin rather than needing
// dynamic dispatch.
type Func struct {
	Name     *uint64 // optional interned id
	Arity    int
	IsBuiltin bool

	// User function fields.
	EntryAddress uint64
	Upvalues     []*Upvalue

	// Builtin function fields.
	Host func(args []Value) (Value, error)
}

func (f *Func) String() string {
	if f == nil {
		return "<nil func>"
	}
	kind := "user"
	if f.IsBuiltin {
		kind = "builtin"
	}
	return fmt.Sprintf("<function %s arity=%d>", kind, f.Arity)
}

// UpvalueState tracks whether an Upvalue still aliases a live stack slot or
// has been closed into an owned copy.
type UpvalueState byte

const (
	Open UpvalueState = iota
	Closed
)

// Upvalue is a cell shared between the agent's open-upvalue registry and
// every Func that captured it. While Open it holds the absolute stack index
// where the value currently lives; once Closed it holds its own copy and is
// never again reachable from the registry.
type Upvalue struct {
	State      UpvalueState
	StackIndex int // meaningful only while Open
	Closed     Value
}

// NewOpenUpvalue creates an upvalue aliasing the given absolute stack index.
func NewOpenUpvalue(stackIndex int) *Upvalue {
	return &Upvalue{State: Open, StackIndex: stackIndex}
}

// Close transitions the upvalue from Open to Closed, capturing val as its
// owned copy. Closing an already-closed upvalue is a programmer error in the
// caller (the interpreter treats it as InternalInvariant) -- it does not
// happen here because distinguishing "close of an already closed cell" from
// "legitimate reclose" needs interpreter-level context the value package
// doesn't have.
func (u *Upvalue) Close(val Value) {
	u.State = Closed
	u.Closed = val
}
