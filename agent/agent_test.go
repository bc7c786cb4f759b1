package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/corevm/value"
)

func TestInternStringDedupesAndIsStable(t *testing.T) {
	ag := New()
	a := ag.InternString("hello")
	b := ag.InternString("world")
	c := ag.InternString("hello")

	require.Equal(t, a, c)
	require.NotEqual(t, a, b)
	require.Equal(t, "hello", ag.String(a))
	require.Equal(t, "world", ag.String(b))
	require.Equal(t, 2, ag.StringCount())
}

func TestUpvalueRegistryIsLIFO(t *testing.T) {
	ag := New()
	u1 := value.NewOpenUpvalue(0)
	u2 := value.NewOpenUpvalue(1)
	ag.PushUpvalue(u1)
	ag.PushUpvalue(u2)

	require.Len(t, ag.OpenUpvalues(), 2)
	require.Same(t, u2, ag.PopUpvalue())
	require.Same(t, u1, ag.PopUpvalue())
	require.Nil(t, ag.PopUpvalue())
}
