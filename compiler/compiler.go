// Package compiler performs the single pass from a parsed statement
// sequence to a finalized code.Object: resolving every identifier to a
// Local, Argument, Upvalue, or Global access, lowering control flow to
// labels and jumps, and closing over free variables at each function
// boundary.
package compiler

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/ast"
	"github.com/ktstephano/corevm/bytecode"
	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/opcode"
)

// ErrBreakOutsideLoop and ErrContinueOutsideLoop are CompileErrors raised
// when break/continue appear outside any enclosing loop.
var (
	ErrBreakOutsideLoop    = errors.New("CompileError: break outside loop")
	ErrContinueOutsideLoop = errors.New("CompileError: continue outside loop")
	ErrInvalidAssignTarget = errors.New("CompileError: invalid assignment target")
)

type bindKind int

const (
	bindLocal bindKind = iota
	bindArgument
	bindUpvalue
)

// binding is one entry in a block scope: a name visible from the point it
// was declared to the end of its enclosing block.
type binding struct {
	kind bindKind
	name uint64
	slot uint64
}

type blockScope struct {
	bindings []binding
}

// freeVar records one entry in a function's free-variable list: the kind
// and slot/index it resolved to in the *enclosing* function, replayed as a
// Bind instruction once the function's own body has been compiled.
type freeVar struct {
	kind bindKind
	slot uint64
}

type loopCtx struct {
	parent        *loopCtx
	breakLabel    bytecode.Label
	continueLabel bytecode.Label
}

// funcCtx is the compiler's notion of "current function being compiled":
// its block-scope chain, slot counters, free-variable list, and innermost
// loop. The outermost funcCtx (isGlobal == true, parent == nil) represents
// top-level script code, where Let/FunctionDecl declare globals instead of
// allocating local slots.
type funcCtx struct {
	parent    *funcCtx
	isGlobal  bool
	scopes    []*blockScope
	nextLocal uint64
	nextArg   uint64
	freeVars  []freeVar
	loop      *loopCtx
}

func (f *funcCtx) pushScope() { f.scopes = append(f.scopes, &blockScope{}) }
func (f *funcCtx) popScope()  { f.scopes = f.scopes[:len(f.scopes)-1] }

func (f *funcCtx) declareLocal(name uint64) uint64 {
	slot := f.nextLocal
	f.nextLocal++
	top := f.scopes[len(f.scopes)-1]
	top.bindings = append(top.bindings, binding{kind: bindLocal, name: name, slot: slot})
	return slot
}

func (f *funcCtx) declareArgument(name uint64) uint64 {
	slot := f.nextArg
	f.nextArg++
	top := f.scopes[len(f.scopes)-1]
	top.bindings = append(top.bindings, binding{kind: bindArgument, name: name, slot: slot})
	return slot
}

// lookupOwn searches only f's own scope chain, innermost block and
// most-recently-declared binding first (shadowing).
func (f *funcCtx) lookupOwn(name uint64) (bindKind, uint64, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		bs := f.scopes[i]
		for j := len(bs.bindings) - 1; j >= 0; j-- {
			b := bs.bindings[j]
			if b.name == name {
				return b.kind, b.slot, true
			}
		}
	}
	return 0, 0, false
}

// resolveVariable finds name starting in f, then walking enclosing
// functions. A name found in an enclosing function is captured as an
// upvalue in every function between its definition and f, reusing an
// existing capture instead of recording the same free variable twice.
func resolveVariable(f *funcCtx, name uint64) (bindKind, uint64, bool) {
	if kind, slot, ok := f.lookupOwn(name); ok {
		return kind, slot, true
	}
	if f.parent == nil {
		return 0, 0, false
	}
	pkind, pslot, ok := resolveVariable(f.parent, name)
	if !ok {
		return 0, 0, false
	}
	for idx, fv := range f.freeVars {
		if fv.kind == pkind && fv.slot == pslot {
			return bindUpvalue, uint64(idx), true
		}
	}
	idx := uint64(len(f.freeVars))
	f.freeVars = append(f.freeVars, freeVar{kind: pkind, slot: pslot})
	return bindUpvalue, idx, true
}

// Compiler drives one compile pass: a single bytecode.Builder and the
// current funcCtx being compiled into it.
type Compiler struct {
	ag *agent.Agent
	b  *bytecode.Builder
	fn *funcCtx
}

// New returns a Compiler ready to compile top-level statements.
func New(ag *agent.Agent) *Compiler {
	top := &funcCtx{isGlobal: true}
	top.pushScope()
	return &Compiler{ag: ag, b: bytecode.New(), fn: top}
}

// Compile compiles an entire top-level statement sequence into a finalized
// code.Object. Per-statement compile errors are aggregated rather than
// aborting at the first one, matching the parser's accumulation style.
func Compile(ag *agent.Agent, stmts []ast.Statement) (*code.Object, error) {
	c := New(ag)
	var errs *multierror.Error
	for _, s := range stmts {
		if err := c.compileStatement(s); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}
	if op, ok := c.b.LastOpcode(); !ok || op != opcode.Halt {
		c.b.Halt()
	}
	return c.b.Finalize()
}

func (c *Compiler) compileStatements(stmts []ast.Statement) error {
	var errs *multierror.Error
	for _, s := range stmts {
		if err := c.compileStatement(s); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (c *Compiler) compileStatement(s ast.Statement) error {
	switch s.Kind {
	case ast.Let:
		return c.compileLet(s)
	case ast.FunctionDecl:
		return c.compileFunctionDecl(s)
	case ast.If:
		return c.compileIf(s)
	case ast.While:
		return c.compileWhile(s)
	case ast.For:
		return c.compileFor(s)
	case ast.Break:
		if c.fn.loop == nil {
			return ErrBreakOutsideLoop
		}
		c.b.Jump(c.fn.loop.breakLabel)
		return nil
	case ast.Continue:
		if c.fn.loop == nil {
			return ErrContinueOutsideLoop
		}
		c.b.Jump(c.fn.loop.continueLabel)
		return nil
	case ast.ExprStatement:
		if err := c.compileExpr(s.Expr); err != nil {
			return err
		}
		c.b.Pop()
		return nil
	default:
		return errors.Errorf("CompileError: unrecognized statement kind %d", s.Kind)
	}
}

func (c *Compiler) compileLet(s ast.Statement) error {
	if s.LetValue != nil {
		if err := c.compileExpr(s.LetValue); err != nil {
			return err
		}
	} else {
		c.b.ConstNull()
	}
	if c.fn.isGlobal {
		c.b.DeclareGlobal(s.LetName)
		c.b.StoreGlobal(s.LetName)
	} else {
		slot := c.fn.declareLocal(s.LetName)
		c.b.StoreLocal(slot)
	}
	return nil
}

// compileFunctionDecl declares the function's own name before compiling its
// body, so a function may call itself recursively whether the call is
// resolved as a global lookup or captured as an upvalue of an enclosing
// local binding.
func (c *Compiler) compileFunctionDecl(s ast.Statement) error {
	if c.fn.isGlobal {
		c.b.DeclareGlobal(s.FuncName)
		if err := c.compileFunctionValue(s.Parameters, s.Body); err != nil {
			return err
		}
		c.b.StoreGlobal(s.FuncName)
		return nil
	}
	slot := c.fn.declareLocal(s.FuncName)
	if err := c.compileFunctionValue(s.Parameters, s.Body); err != nil {
		return err
	}
	c.b.StoreLocal(slot)
	return nil
}

// compileFunctionValue emits a function body out-of-line (skipped over by an
// unconditional jump at the call site) and leaves the constructed, fully
// closed-over function value on top of the stack. Free variables recorded
// while compiling the body are replayed as Bind instructions in the
// enclosing function, where the captured slots are still live.
func (c *Compiler) compileFunctionValue(params []uint64, body []ast.Statement) error {
	entry := c.b.NewLabel()
	end := c.b.NewLabel()
	c.b.Jump(end)

	child := &funcCtx{parent: c.fn}
	child.pushScope()
	for _, p := range params {
		child.declareArgument(p)
	}

	c.fn = child
	if err := c.b.MarkLabel(entry); err != nil {
		return err
	}
	bodyErr := c.compileFunctionBody(body)
	if op, ok := c.b.LastOpcode(); !ok || op != opcode.Return {
		c.b.ConstNull()
		c.b.Return()
	}
	if err := c.b.MarkLabel(end); err != nil {
		return err
	}
	c.fn = child.parent

	if bodyErr != nil {
		return bodyErr
	}

	c.b.NewFunc(uint64(len(params)), entry)
	for _, fv := range child.freeVars {
		switch fv.kind {
		case bindLocal:
			c.b.BindLocal(fv.slot)
		case bindArgument:
			c.b.BindArgument(fv.slot)
		case bindUpvalue:
			c.b.BindUpvalue(fv.slot)
		}
	}
	return nil
}

// compileFunctionBody compiles a function body with one refinement over
// compileStatements: if the body's last statement is a bare expression
// statement, its value becomes the function's result (an explicit Return
// right after it) instead of being popped and discarded like every other
// expression statement. This is the only route to a function returning
// anything other than Null, since this language has no `return` keyword.
func (c *Compiler) compileFunctionBody(body []ast.Statement) error {
	if len(body) == 0 {
		return nil
	}
	last := body[len(body)-1]
	if last.Kind != ast.ExprStatement {
		return c.compileStatements(body)
	}
	if err := c.compileStatements(body[:len(body)-1]); err != nil {
		return err
	}
	if err := c.compileExpr(last.Expr); err != nil {
		return err
	}
	c.b.Return()
	return nil
}

// compileIf lowers to: evaluate condition, JumpIfFalse (a peeking jump, see
// bytecode's Jump* opcodes) to the else branch, Pop the peeked true value,
// compile then-branch, jump past else, Pop the peeked false value, compile
// else-branch.
func (c *Compiler) compileIf(s ast.Statement) error {
	elseLbl := c.b.NewLabel()
	endLbl := c.b.NewLabel()

	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	c.b.JumpIfFalse(elseLbl)
	c.b.Pop()

	c.fn.pushScope()
	thenErr := c.compileStatements(s.Then)
	c.fn.popScope()
	if thenErr != nil {
		return thenErr
	}

	c.b.Jump(endLbl)
	if err := c.b.MarkLabel(elseLbl); err != nil {
		return err
	}
	c.b.Pop()

	if s.Else != nil {
		c.fn.pushScope()
		elseErr := c.compileStatements(s.Else)
		c.fn.popScope()
		if elseErr != nil {
			return elseErr
		}
	}
	return c.b.MarkLabel(endLbl)
}

// compileWhile places the break target after the natural-exit Pop so a
// break jumping directly out of the body (which never pushed the peeked
// condition value) leaves the stack exactly as balanced as a normal
// condition-false exit does.
func (c *Compiler) compileWhile(s ast.Statement) error {
	start := c.b.NewLabel()
	falseExit := c.b.NewLabel()
	end := c.b.NewLabel()

	loop := &loopCtx{parent: c.fn.loop, breakLabel: end, continueLabel: start}
	c.fn.loop = loop
	defer func() { c.fn.loop = loop.parent }()

	if err := c.b.MarkLabel(start); err != nil {
		return err
	}
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	c.b.JumpIfFalse(falseExit)
	c.b.Pop()

	c.fn.pushScope()
	bodyErr := c.compileStatements(s.Then)
	c.fn.popScope()
	if bodyErr != nil {
		return bodyErr
	}

	c.b.Jump(start)
	if err := c.b.MarkLabel(falseExit); err != nil {
		return err
	}
	c.b.Pop()
	return c.b.MarkLabel(end)
}

func (c *Compiler) compileFor(s ast.Statement) error {
	c.fn.pushScope()
	defer c.fn.popScope()

	if s.ForInit != nil {
		if err := c.compileStatement(*s.ForInit); err != nil {
			return err
		}
	}

	start := c.b.NewLabel()
	incr := c.b.NewLabel()
	falseExit := c.b.NewLabel()
	end := c.b.NewLabel()

	loop := &loopCtx{parent: c.fn.loop, breakLabel: end, continueLabel: incr}
	c.fn.loop = loop
	defer func() { c.fn.loop = loop.parent }()

	if err := c.b.MarkLabel(start); err != nil {
		return err
	}
	if s.ForCond != nil {
		if err := c.compileExpr(s.ForCond); err != nil {
			return err
		}
		c.b.JumpIfFalse(falseExit)
		c.b.Pop()
	}

	c.fn.pushScope()
	bodyErr := c.compileStatements(s.ForBody)
	c.fn.popScope()
	if bodyErr != nil {
		return bodyErr
	}

	if err := c.b.MarkLabel(incr); err != nil {
		return err
	}
	if s.ForIncrement != nil {
		if err := c.compileExpr(s.ForIncrement); err != nil {
			return err
		}
		c.b.Pop()
	}
	c.b.Jump(start)

	if err := c.b.MarkLabel(falseExit); err != nil {
		return err
	}
	if s.ForCond != nil {
		c.b.Pop()
	}
	return c.b.MarkLabel(end)
}

func (c *Compiler) emitLoad(name uint64) {
	kind, slot, ok := resolveVariable(c.fn, name)
	if !ok {
		c.b.LoadGlobal(name)
		return
	}
	switch kind {
	case bindLocal:
		c.b.LoadLocal(slot)
	case bindArgument:
		c.b.LoadArgument(slot)
	case bindUpvalue:
		c.b.LoadUpvalue(slot)
	}
}

// emitStore emits the Store* opcode for name and reports whether the target
// was a Local/Argument/Upvalue (those Store opcodes are non-consuming: the
// assigned value is left on top of the stack) as opposed to a Global (whose
// StoreGlobal consumes its operand).
func (c *Compiler) emitStore(name uint64) (localLike bool) {
	kind, slot, ok := resolveVariable(c.fn, name)
	if !ok {
		c.b.StoreGlobal(name)
		return false
	}
	switch kind {
	case bindLocal:
		c.b.StoreLocal(slot)
	case bindArgument:
		c.b.StoreArgument(slot)
	case bindUpvalue:
		c.b.StoreUpvalue(slot)
	}
	return true
}

func (c *Compiler) compileExpr(e *ast.Expression) error {
	switch e.Kind {
	case ast.IntLiteral:
		c.b.ConstInt(e.IntValue)
		return nil
	case ast.DoubleLiteral:
		c.b.ConstDouble(e.DoubleValue)
		return nil
	case ast.StringLiteral:
		c.b.ConstString(e.StringID)
		return nil
	case ast.BoolLiteral:
		if e.BoolValue {
			c.b.ConstTrue()
		} else {
			c.b.ConstFalse()
		}
		return nil
	case ast.NullLiteral:
		c.b.ConstNull()
		return nil
	case ast.Identifier:
		c.emitLoad(e.Name)
		return nil
	case ast.Binary:
		return c.compileBinary(e)
	case ast.Logical:
		return c.compileLogical(e)
	case ast.Unary:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		switch e.UnOp {
		case ast.OpNeg:
			c.b.Neg()
		case ast.OpNot:
			c.b.Not()
		}
		return nil
	case ast.Assignment:
		if e.Left.Kind != ast.Identifier {
			return ErrInvalidAssignTarget
		}
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		// Store{Local,Argument,Upvalue} are non-consuming, so the assigned
		// value is already the expression's result. StoreGlobal consumes
		// its operand, so an explicit reload is needed to produce one.
		if localLike := c.emitStore(e.Left.Name); !localLike {
			c.emitLoad(e.Left.Name)
		}
		return nil
	case ast.Call:
		return c.compileCall(e)
	default:
		return errors.Errorf("CompileError: unrecognized expression kind %d", e.Kind)
	}
}

func (c *Compiler) compileBinary(e *ast.Expression) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	switch e.BinOp {
	case ast.OpAdd:
		c.b.Add()
	case ast.OpSub:
		c.b.Sub()
	case ast.OpMul:
		c.b.Mul()
	case ast.OpDiv:
		c.b.Div()
	case ast.OpMod:
		c.b.Mod()
	case ast.OpExp:
		c.b.Exp()
	case ast.OpEq:
		c.b.CmpEq()
	case ast.OpNotEq:
		c.b.CmpNotEq()
	case ast.OpLess:
		c.b.CmpLess()
	case ast.OpLessEq:
		c.b.CmpLessEq()
	case ast.OpGreater:
		c.b.CmpGreater()
	case ast.OpGreaterEq:
		c.b.CmpGreaterEq()
	default:
		return errors.Errorf("CompileError: unrecognized binary operator %d", e.BinOp)
	}
	return nil
}

// compileLogical lowers short-circuit && and || using a peeking jump
// followed by an explicit Pop along the fallthrough side -- there is no Dup
// opcode, so the peeked value itself becomes the short-circuit result.
func (c *Compiler) compileLogical(e *ast.Expression) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	end := c.b.NewLabel()
	switch e.LogOp {
	case ast.OpAnd:
		c.b.JumpIfFalse(end)
	case ast.OpOr:
		c.b.JumpIfTrue(end)
	default:
		return errors.Errorf("CompileError: unrecognized logical operator %d", e.LogOp)
	}
	c.b.Pop()
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	return c.b.MarkLabel(end)
}

// compileCall compiles the callee exactly once, leaving it one slot below
// its arguments. That slot
// doubles as the eventual return-value slot and as where Call itself finds
// the function to invoke -- Call reads it in place rather than popping a
// second, separately-evaluated copy, since the callee may be an arbitrary
// expression (a chained call, a parenthesized assignment) that must not run
// twice.
func (c *Compiler) compileCall(e *ast.Expression) error {
	if err := c.compileExpr(e.Callee); err != nil {
		return err
	}
	for _, a := range e.Arguments {
		if err := c.compileExpr(a); err != nil {
			return err
		}
	}
	c.b.Call(uint64(len(e.Arguments)))
	return nil
}
