package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAt_EncodesTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	parsed, err := ulid.Parse(NewAt(at))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), parsed.Time())
}

func TestNewAt_SortsByTime(t *testing.T) {
	earlier := NewAt(time.Unix(1000, 0))
	later := NewAt(time.Unix(2000, 0))
	assert.Less(t, earlier, later)
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		v := New()
		_, dup := seen[v]
		require.False(t, dup)
		seen[v] = struct{}{}
	}
}

func TestNewAt_MonotonicWithinMillisecond(t *testing.T) {
	at := time.Unix(3000, 0)
	prev := NewAt(at)
	for i := 0; i < 50; i++ {
		next := NewAt(at)
		require.Less(t, prev, next)
		prev = next
	}
}
