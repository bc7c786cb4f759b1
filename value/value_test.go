package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruthiness(t *testing.T) {
	require.False(t, Nil.IsTruthy())
	require.False(t, Bool(false).IsTruthy())
	require.True(t, Bool(true).IsTruthy())
	require.True(t, Int(0).IsTruthy())
	require.True(t, Str(0).IsTruthy())
}

func TestEqualCrossVariantAlwaysFalse(t *testing.T) {
	require.True(t, Int(1).Equal(Int(1)))
	require.False(t, Int(1).Equal(Dbl(1)))
	require.False(t, Int(0).Equal(Nil))
	require.False(t, Bool(false).Equal(Nil))
}

func TestUpvalueOpenCloseLifecycle(t *testing.T) {
	u := NewOpenUpvalue(3)
	require.Equal(t, Open, u.State)
	require.Equal(t, 3, u.StackIndex)

	u.Close(Int(42))
	require.Equal(t, Closed, u.State)
	require.True(t, u.Closed.Equal(Int(42)))
}
