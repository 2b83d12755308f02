package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Format(t *testing.T) {
	got := New()
	require.Len(t, got, 26)
	assert.True(t, Valid(got))
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		s := New()
		require.False(t, seen[s], "duplicate ULID %s", s)
		seen[s] = true
	}
}

func TestNew_Sortable(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted, "ULIDs should sort in generation order")
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("too-short"))
	assert.False(t, Valid("IIIIIIIIIIIIIIIIIIIIIIIIII")) // I is excluded
	assert.True(t, Valid("01HQ5K3V8N0000000000000000"))
}
