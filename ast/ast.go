// Package ast defines the typed abstract syntax the lexer/parser produce
// and the compiler consumes: a finite ordered sequence of Statement values,
// each an enumerated variant. Identifiers already carry an interned id by
// the time they reach this tree, not a raw string.
package ast

// StatementKind enumerates the statement shapes the parser produces.
type StatementKind int

const (
	Let StatementKind = iota
	FunctionDecl
	If
	For
	While
	Break
	Continue
	ExprStatement
)

// Statement is one node in the top-level or function-body statement
// sequence. Only the fields relevant to Kind are populated.
type Statement struct {
	Kind StatementKind

	// Let
	LetName  uint64
	LetValue *Expression // nil if no initializer

	// FunctionDecl
	FuncName   uint64
	Parameters []uint64 // interned parameter names, declaration order
	Body       []Statement

	// If
	Condition *Expression
	Then      []Statement
	Else      []Statement // nil if no else clause

	// For
	ForInit      *Statement // nil if omitted
	ForCond      *Expression
	ForIncrement *Expression
	ForBody      []Statement

	// While reuses Condition/Body (Then)

	// ExprStatement
	Expr *Expression
}

// ExpressionKind enumerates the expression shapes the parser produces.
type ExpressionKind int

const (
	Identifier ExpressionKind = iota
	IntLiteral
	DoubleLiteral
	StringLiteral
	BoolLiteral
	NullLiteral
	Binary
	Logical
	Unary
	Assignment
	Call
)

// BinaryOp enumerates the arithmetic and relational operators a Binary
// expression may carry.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpEq
	OpNotEq
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
)

// LogicalOp enumerates the short-circuiting operators a Logical expression
// may carry.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

// UnaryOp enumerates the unary operators a Unary expression may carry.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

// Expression is one node in an expression tree. Only the fields relevant to
// Kind are populated.
type Expression struct {
	Kind ExpressionKind

	// Identifier
	Name uint64

	// IntLiteral
	IntValue int64

	// DoubleLiteral
	DoubleValue float64

	// StringLiteral
	StringID uint64

	// BoolLiteral
	BoolValue bool

	// Binary
	BinOp BinaryOp
	Left  *Expression
	Right *Expression

	// Logical
	LogOp LogicalOp

	// Unary
	UnOp    UnaryOp
	Operand *Expression

	// Assignment (Left is the target identifier expression, Right the value)

	// Call
	Callee    *Expression
	Arguments []*Expression
}
