package disasm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/compiler"
	"github.com/ktstephano/corevm/opcode"
	"github.com/ktstephano/corevm/parser"
)

func TestWriteProducesOneLinePerInstruction(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, `let x = 1 + 2;`)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, Write(&buf, ag, obj))

	out := buf.String()
	require.Contains(t, out, "ConstInt 1")
	require.Contains(t, out, "ConstInt 2")
	require.Contains(t, out, "Add")
	require.Contains(t, out, "DeclareGlobal")
	require.Contains(t, out, "StoreGlobal")
	require.Contains(t, out, "Halt")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.True(t, len(lines) >= 5)
}

// TestWriteStaysInSyncAcrossCall guards the Call operand decode: Call
// carries an 8-byte nargs operand, and skipping it short desynchronizes
// every line after the call site.
func TestWriteStaysInSyncAcrossCall(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, `
		function add(a, b) {
			a + b;
		}
		let result = add(1, 2);
	`)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, Write(&buf, ag, obj))

	out := buf.String()
	require.Contains(t, out, "Call 2")
	require.Contains(t, out, "NewFunction arity=2")
	require.Contains(t, out, "Return")
	// Everything after the call site must still decode: the listing ends
	// with the trailing Halt at the buffer's final byte.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	last := lines[len(lines)-1]
	require.Contains(t, last, "Halt")
	require.Equal(t, fmt.Sprintf("%08d  Halt", obj.Len()-1), last)
}

func TestWriteResolvesStringLiteralText(t *testing.T) {
	ag := agent.New()
	stmts, err := parser.Parse(ag, `let greeting = "hi";`)
	require.NoError(t, err)
	obj, err := compiler.Compile(ag, stmts)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, Write(&buf, ag, obj))
	require.Contains(t, buf.String(), `"hi"`)
}

// TestWriteErrorsOnTruncatedOperand guards against the same Slice
// out-of-range panic the interpreter's decoder must avoid: a valid opcode
// tag with its operand bytes cut short must return an error, not crash.
func TestWriteErrorsOnTruncatedOperand(t *testing.T) {
	obj := code.New([]byte{byte(opcode.ConstInt), 1, 2, 3})
	var buf strings.Builder
	require.Error(t, Write(&buf, agent.New(), obj))
}

func TestWriteErrorsOnUnknownOpcode(t *testing.T) {
	obj := code.New([]byte{255})
	var buf strings.Builder
	require.Error(t, Write(&buf, agent.New(), obj))
	require.Contains(t, buf.String(), "??")
}
