package interp

import (
	"fmt"
	"os"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/value"
)

// installBuiltins populates it.globals with the small standard library:
// print, len, and type. They are installed directly as already-declared
// globals (bypassing DeclareGlobal) since no user source statement ever
// declares them.
func installBuiltins(it *Interpreter) {
	ag := it.ag
	it.globals[ag.InternString("print")] = value.Fn(&value.Func{
		Arity:     1,
		IsBuiltin: true,
		Host:      builtinPrint(it),
	})
	it.globals[ag.InternString("len")] = value.Fn(&value.Func{
		Arity:     1,
		IsBuiltin: true,
		Host:      builtinLen(ag),
	})
	it.globals[ag.InternString("type")] = value.Fn(&value.Func{
		Arity:     1,
		IsBuiltin: true,
		Host:      builtinType(ag),
	})
}

// builtinPrint writes through it.Out rather than straight to os.Stdout,
// falling back to stdout if the field was never set (e.g. an Interpreter
// built by anything other than New).
func builtinPrint(it *Interpreter) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		w := it.Out
		if w == nil {
			w = os.Stdout
		}
		fmt.Fprintln(w, displayString(it.ag, args[0]))
		return value.Nil, nil
	}
}

func builtinLen(ag *agent.Agent) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		v := args[0]
		if v.Kind() != value.String {
			return value.Nil, errorf("%w: len expects a string, got %s", ErrType, v.Kind())
		}
		return value.Int(int64(len(ag.String(v.AsStringID())))), nil
	}
}

func builtinType(ag *agent.Agent) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		name := args[0].Kind().String()
		return value.Str(ag.InternString(name)), nil
	}
}

// displayString renders a value for print, resolving interned string ids
// and function descriptions the way a human running the interpreter
// interactively would expect.
func displayString(ag *agent.Agent, v value.Value) string {
	switch v.Kind() {
	case value.Null:
		return "null"
	case value.Boolean:
		return fmt.Sprintf("%v", v.AsBool())
	case value.Integer:
		return fmt.Sprintf("%d", v.AsInt())
	case value.Double:
		return fmt.Sprintf("%g", v.AsDouble())
	case value.String:
		return ag.String(v.AsStringID())
	case value.Function:
		return v.AsFunc().String()
	default:
		return "?unknown?"
	}
}

func errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
