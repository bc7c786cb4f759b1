package module

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	r.Register(&Module{Name: "math", Value: 1})
	r.Register(&Module{Name: "io", Value: 2})

	m, ok := r.Lookup("math")
	require.True(t, ok)
	require.Equal(t, 1, m.Value)

	_, ok = r.Lookup("missing")
	require.False(t, ok)
}

func TestRegisterReplacesExistingName(t *testing.T) {
	r := New()
	r.Register(&Module{Name: "math", Value: 1})
	r.Register(&Module{Name: "math", Value: 2})

	m, ok := r.Lookup("math")
	require.True(t, ok)
	require.Equal(t, 2, m.Value)
}

func TestNamesListsEveryRegisteredModule(t *testing.T) {
	r := New()
	r.Register(&Module{Name: "math"})
	r.Register(&Module{Name: "io"})
	r.Register(&Module{Name: "strings"})

	got := r.Names()
	sort.Strings(got)
	want := []string{"io", "math", "strings"}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}
}
