package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/corevm/opcode"
)

func TestFinalizeResolvesForwardLabel(t *testing.T) {
	b := New()
	end := b.NewLabel()
	b.ConstInt(1)
	b.JumpIfFalse(end)
	b.ConstInt(2)
	require.NoError(t, b.MarkLabel(end))
	b.Halt()

	obj, err := b.Finalize()
	require.NoError(t, err)
	require.Equal(t, opcode.ConstInt, opcode.Code(obj.At(0)))

	// JumpIfFalse's 8-byte address operand should now read back as the
	// offset where MarkLabel(end) was called (right before Halt).
	jumpOperandPos := 1 + 8 + 1 // ConstInt tag+operand, then JumpIfFalse tag
	resolved := uint64(0)
	bytes := obj.Slice(jumpOperandPos, jumpOperandPos+8)
	for i := 7; i >= 0; i-- {
		resolved = resolved<<8 | uint64(bytes[i])
	}
	require.Equal(t, uint64(1+8+1+8+1+8), resolved)
}

func TestFinalizeErrorsOnUnresolvedLabel(t *testing.T) {
	b := New()
	unused := b.NewLabel()
	b.Jump(unused)

	_, err := b.Finalize()
	require.ErrorIs(t, err, ErrUnresolvedLabel)
}

func TestMarkLabelTwiceErrors(t *testing.T) {
	b := New()
	l := b.NewLabel()
	require.NoError(t, b.MarkLabel(l))
	require.ErrorIs(t, b.MarkLabel(l), ErrLabelAlreadyMarked)
}

func TestLastOpcodeTracksMostRecentEmission(t *testing.T) {
	b := New()
	_, ok := b.LastOpcode()
	require.False(t, ok)

	b.ConstNull()
	op, ok := b.LastOpcode()
	require.True(t, ok)
	require.Equal(t, opcode.ConstNull, op)

	b.Return()
	op, ok = b.LastOpcode()
	require.True(t, ok)
	require.Equal(t, opcode.Return, op)
}
