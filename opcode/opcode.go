// Package opcode defines the instruction set the bytecode builder emits and
// the interpreter dispatches on: one byte tag per operation plus the operand
// schema needed to decode it.
package opcode

// Code is a single-byte instruction tag -- the first byte of every
// instruction in a code.Object.
type Code byte

const (
	Halt Code = iota

	ConstInt
	ConstDouble
	ConstNull
	ConstTrue
	ConstFalse
	ConstString

	Add
	Sub
	Mul
	Div
	Mod
	Exp

	Neg
	Not
	And
	Or

	CmpEq
	CmpNotEq
	CmpLess
	CmpLessEq
	CmpGreater
	CmpGreaterEq

	Jump
	JumpIfTrue
	JumpIfFalse

	Pop

	LoadLocal
	StoreLocal
	LoadArgument
	StoreArgument
	LoadUpvalue
	StoreUpvalue
	LoadGlobal
	StoreGlobal
	DeclareGlobal

	NewFunction
	BindLocal
	BindArgument
	BindUpvalue

	Call
	Return
)

var names = map[Code]string{
	Halt:          "Halt",
	ConstInt:      "ConstInt",
	ConstDouble:   "ConstDouble",
	ConstNull:     "ConstNull",
	ConstTrue:     "ConstTrue",
	ConstFalse:    "ConstFalse",
	ConstString:   "ConstString",
	Add:           "Add",
	Sub:           "Sub",
	Mul:           "Mul",
	Div:           "Div",
	Mod:           "Mod",
	Exp:           "Exp",
	Neg:           "Neg",
	Not:           "Not",
	And:           "And",
	Or:            "Or",
	CmpEq:         "CmpEq",
	CmpNotEq:      "CmpNotEq",
	CmpLess:       "CmpLess",
	CmpLessEq:     "CmpLessEq",
	CmpGreater:    "CmpGreater",
	CmpGreaterEq:  "CmpGreaterEq",
	Jump:          "Jump",
	JumpIfTrue:    "JumpIfTrue",
	JumpIfFalse:   "JumpIfFalse",
	Pop:           "Pop",
	LoadLocal:     "LoadLocal",
	StoreLocal:    "StoreLocal",
	LoadArgument:  "LoadArgument",
	StoreArgument: "StoreArgument",
	LoadUpvalue:   "LoadUpvalue",
	StoreUpvalue:  "StoreUpvalue",
	LoadGlobal:    "LoadGlobal",
	StoreGlobal:   "StoreGlobal",
	DeclareGlobal: "DeclareGlobal",
	NewFunction:   "NewFunction",
	BindLocal:     "BindLocal",
	BindArgument:  "BindArgument",
	BindUpvalue:   "BindUpvalue",
	Call:          "Call",
	Return:        "Return",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "?unknown?"
}

// Valid reports whether c is a recognized opcode tag. The interpreter and
// disassembler both use this to produce DecodeError on garbage bytes.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// OperandWidth returns the number of bytes of operand data that follow this
// opcode's tag byte in the instruction stream (0 for opcodes with no
// operand). All multi-byte operands are 8-byte little-endian; NewFunction
// carries two, an 8-byte arity followed by an 8-byte address.
func (c Code) OperandWidth() int {
	switch c {
	case Halt, ConstNull, ConstTrue, ConstFalse,
		Add, Sub, Mul, Div, Mod, Exp, Neg, Not, And, Or,
		CmpEq, CmpNotEq, CmpLess, CmpLessEq, CmpGreater, CmpGreaterEq,
		Pop, Return:
		return 0
	case NewFunction:
		return 16
	default:
		return 8
	}
}
