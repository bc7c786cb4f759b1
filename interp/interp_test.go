package interp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/bytecode"
	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/compiler"
	"github.com/ktstephano/corevm/opcode"
	"github.com/ktstephano/corevm/parser"
	"github.com/ktstephano/corevm/value"
)

// run compiles and executes src against a fresh agent, returning the
// interpreter so tests can inspect globals afterward.
func run(t *testing.T, src string) (*agent.Agent, *Interpreter) {
	t.Helper()
	ag := agent.New()
	stmts, err := parser.Parse(ag, src)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.NoError(t, err)
	return ag, it
}

func global(t *testing.T, ag *agent.Agent, it *Interpreter, name string) value.Value {
	t.Helper()
	v, ok := it.Global(ag.InternString(name))
	require.True(t, ok, "global %q was never declared", name)
	return v
}

func TestEmptyLetDeclaresNullGlobal(t *testing.T) {
	ag, it := run(t, "let test;")
	v := global(t, ag, it, "test")
	require.Equal(t, value.Null, v.Kind())
}

func TestEmptyFunctionDeclaresCallableGlobal(t *testing.T) {
	ag, it := run(t, "function test() {}")
	v := global(t, ag, it, "test")
	require.Equal(t, value.Function, v.Kind())
	require.Equal(t, 0, v.AsFunc().Arity)
}

func TestArithmeticPromotion(t *testing.T) {
	ag, it := run(t, "let x = 1 + 2.5;")
	v := global(t, ag, it, "x")
	require.Equal(t, value.Double, v.Kind())
	require.InDelta(t, 3.5, v.AsDouble(), 0.0001)
}

func TestIntegerArithmeticStaysInteger(t *testing.T) {
	ag, it := run(t, "let x = 6 / 2 + 1;")
	v := global(t, ag, it, "x")
	require.Equal(t, value.Integer, v.Kind())
	require.Equal(t, int64(4), v.AsInt())
}

func TestIntegerExponentStaysInteger(t *testing.T) {
	ag, it := run(t, "let x = 4 ** 2;")
	v := global(t, ag, it, "x")
	require.Equal(t, value.Integer, v.Kind())
	require.Equal(t, int64(16), v.AsInt())
}

func TestNegativeExponentIsIntegerOverflow(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, "let x = 2 ** -1;")
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestExponentOverflowIsDetected(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, "let x = 9223372036854775807 ** 2;")
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestIntegerDivisionByZeroIsDetected(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, "let x = 1 / 0;")
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestFunctionCallWithArgumentsAndImplicitReturn(t *testing.T) {
	ag, it := run(t, `
		function add(a, b) {
			a + b;
		}
		let result = add(2, 3);
	`)
	v := global(t, ag, it, "result")
	require.Equal(t, value.Integer, v.Kind())
	require.Equal(t, int64(5), v.AsInt())
}

func TestRecursiveGlobalFunction(t *testing.T) {
	ag, it := run(t, `
		function fact(n) {
			let r = 1;
			if (n >= 2) {
				r = n * fact(n - 1);
			}
			r;
		}
		let result = fact(5);
	`)
	v := global(t, ag, it, "result")
	require.Equal(t, int64(120), v.AsInt())
}

// TestClosureOverOuterLocal exercises the open -> closed upvalue lifecycle:
// inner captures outer's local `counter` by reference, mutates it across
// two calls, and the mutation must be visible after outer's own frame has
// already returned (i.e. after the upvalue has closed).
func TestClosureOverOuterLocal(t *testing.T) {
	ag, it := run(t, `
		function makeCounter() {
			let count = 0;
			function increment() {
				count = count + 1;
				count;
			}
			increment;
		}
		let counter = makeCounter();
		let first = counter();
		let second = counter();
	`)
	first := global(t, ag, it, "first")
	second := global(t, ag, it, "second")
	require.Equal(t, int64(1), first.AsInt())
	require.Equal(t, int64(2), second.AsInt())
}

func TestWhileLoopWithBreak(t *testing.T) {
	ag, it := run(t, `
		let i = 0;
		while (true) {
			i = i + 1;
			if (i == 3) {
				break;
			}
		}
	`)
	v := global(t, ag, it, "i")
	require.Equal(t, int64(3), v.AsInt())
}

func TestForLoopSumsToTen(t *testing.T) {
	ag, it := run(t, `
		let sum = 0;
		for (let i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
	`)
	v := global(t, ag, it, "sum")
	require.Equal(t, int64(10), v.AsInt())
}

func TestForLoopContinueSkipsIncrementNotDouble(t *testing.T) {
	ag, it := run(t, `
		let sum = 0;
		for (let i = 0; i < 5; i = i + 1) {
			if (i == 2) {
				continue;
			}
			sum = sum + i;
		}
	`)
	v := global(t, ag, it, "sum")
	require.Equal(t, int64(8), v.AsInt()) // 0+1+3+4, skipping i==2
}

func TestUnaryNegAndNot(t *testing.T) {
	ag, it := run(t, `
		let x = -5;
		let y = !false;
		let z = !0;
	`)
	require.Equal(t, int64(-5), global(t, ag, it, "x").AsInt())
	require.True(t, global(t, ag, it, "y").AsBool())
	// 0 is truthy, so !0 is false.
	require.False(t, global(t, ag, it, "z").AsBool())
}

// TestEagerBooleanOpcodes drives And/Or directly: the compiler lowers
// && and || to short-circuiting jumps, so only hand-assembled bytecode
// reaches the eager forms.
func TestEagerBooleanOpcodes(t *testing.T) {
	b := bytecode.New()
	b.ConstTrue()
	b.ConstFalse()
	b.And()
	b.ConstTrue()
	b.Or()
	b.Halt()
	obj, err := b.Finalize()
	require.NoError(t, err)

	it := New(agent.New())
	v, err := it.Run(obj)
	require.NoError(t, err)
	require.Equal(t, value.Boolean, v.Kind())
	require.True(t, v.AsBool())
}

func TestLogicalShortCircuitAnd(t *testing.T) {
	ag, it := run(t, `
		let calls = 0;
		function sideEffect() {
			calls = calls + 1;
			true;
		}
		let result = false && sideEffect();
	`)
	require.Equal(t, int64(0), global(t, ag, it, "calls").AsInt())
	require.False(t, global(t, ag, it, "result").AsBool())
}

func TestLogicalShortCircuitOr(t *testing.T) {
	ag, it := run(t, `
		let calls = 0;
		function sideEffect() {
			calls = calls + 1;
			true;
		}
		let result = true || sideEffect();
	`)
	require.Equal(t, int64(0), global(t, ag, it, "calls").AsInt())
	require.True(t, global(t, ag, it, "result").AsBool())
}

func TestPrintWritesThroughInjectedOut(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, `print("hello"); print(42);`)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)

	var buf bytes.Buffer
	it := New(ag)
	it.Out = &buf
	_, err = it.Run(obj)
	require.NoError(t, err)
	require.Equal(t, "hello\n42\n", buf.String())
}

func TestBuiltinLenAndType(t *testing.T) {
	ag, it := run(t, `
		let n = len("hello");
		let t = type(5);
	`)
	require.Equal(t, int64(5), global(t, ag, it, "n").AsInt())
	typeVal := global(t, ag, it, "t")
	require.Equal(t, value.String, typeVal.Kind())
	require.Equal(t, "integer", ag.String(typeVal.AsStringID()))
}

// TestCallOverApplicationSucceeds: N >= arity is the only check Call
// performs, so passing more arguments than a function declares is permitted
// and the extras are simply left unreferenced on the stack.
func TestCallOverApplicationSucceeds(t *testing.T) {
	ag, it := run(t, `
		function one(a) { a; }
		let result = one(1, 2);
	`)
	v := global(t, ag, it, "result")
	require.Equal(t, int64(1), v.AsInt())
}

func TestCallUnderApplicationIsArityError(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, `
		function two(a, b) { a; }
		two(1);
	`)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrArity)
}

// TestChainedCalleeEvaluatedOnce guards against a callee expression being
// compiled/executed twice: makeFn's side effect (incrementing calls) must
// fire exactly once even though the call site chains a second call onto
// makeFn's result.
func TestChainedCalleeEvaluatedOnce(t *testing.T) {
	ag, it := run(t, `
		let calls = 0;
		function makeFn() {
			calls = calls + 1;
			function inner() {
				99;
			}
			inner;
		}
		let result = makeFn()();
	`)
	require.Equal(t, int64(1), global(t, ag, it, "calls").AsInt())
	require.Equal(t, int64(99), global(t, ag, it, "result").AsInt())
}

// TestTruncatedOperandIsDecodeError guards against code.Object.Slice's
// out-of-range panic: a ConstInt tag with fewer than 8 operand bytes behind
// it must surface as ErrDecode, not crash the process.
func TestTruncatedOperandIsDecodeError(t *testing.T) {
	obj := code.New([]byte{byte(opcode.ConstInt), 1, 2, 3})
	it := New(agent.New())
	_, err := it.Run(obj)
	require.ErrorIs(t, err, ErrDecode)
}

// TestSharedUpvalueAliasingAfterClose checks that two closures capturing
// the same binding share one upvalue cell: a store through the setter is
// observed by the getter even after the defining frame has returned and the
// cell has transitioned to closed.
func TestSharedUpvalueAliasingAfterClose(t *testing.T) {
	ag, it := run(t, `
		let setter;
		let getter;
		function makePair() {
			let shared = 1;
			function set() {
				shared = 42;
			}
			function get() {
				shared;
			}
			setter = set;
			getter = get;
		}
		makePair();
		setter();
		let observed = getter();
	`)
	v := global(t, ag, it, "observed")
	require.Equal(t, value.Integer, v.Kind())
	require.Equal(t, int64(42), v.AsInt())
}

func TestLoadGlobalUndeclaredIsReferenceError(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, "undeclared;")
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrReference)
}

// TestStoreGlobalWithoutDeclareIsReferenceError hand-assembles its program
// so that StoreGlobal runs with no DeclareGlobal anywhere in the stream;
// compiled code reaches the same path when an assignment to a global runs
// before any let declares it.
func TestStoreGlobalWithoutDeclareIsReferenceError(t *testing.T) {
	ag := agent.New()
	id := ag.InternString("ghost")
	b := bytecode.New()
	b.ConstInt(1)
	b.StoreGlobal(id)
	b.Halt()
	obj, err := b.Finalize()
	require.NoError(t, err)

	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrReference)
}

func TestCallingNonFunctionIsTypeError(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, `
		let notAFunction = 5;
		notAFunction();
	`)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)
	it := New(ag)
	_, err = it.Run(obj)
	require.ErrorIs(t, err, ErrType)
}
