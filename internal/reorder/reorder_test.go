package reorder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInOrderDrain(t *testing.T) {
	b := New()
	b.Store(0, []byte("aa"), false)
	b.Store(1, []byte("bb"), true)

	var buf bytes.Buffer
	require.NoError(t, b.Drain(&buf))
	require.Equal(t, "aabb", buf.String())
	require.EqualValues(t, 2, b.ExpectedSeq())
	require.True(t, b.Complete(), "expected Complete() after draining through the FIN chunk")
}

func TestOutOfOrderBuffersUntilGapFills(t *testing.T) {
	b := New()
	b.Store(2, []byte("cc"), false)
	b.Store(1, []byte("bb"), false)

	var buf bytes.Buffer
	require.NoError(t, b.Drain(&buf))
	require.Zero(t, buf.Len(), "expected nothing drained with seq 0 missing")

	b.Store(0, []byte("aa"), false)
	buf.Reset()
	require.NoError(t, b.Drain(&buf))
	require.Equal(t, "aabbcc", buf.String())
}

func TestDuplicateChunkDropped(t *testing.T) {
	b := New()
	require.True(t, b.Store(0, []byte("aa"), false), "first store of seq 0 should be accepted")

	var buf bytes.Buffer
	require.NoError(t, b.Drain(&buf))

	require.False(t, b.Store(0, []byte("aa"), false), "re-store of an already-drained seq should be rejected as duplicate")

	b.Store(1, []byte("bb"), false)
	require.False(t, b.Store(1, []byte("bb"), false), "re-store of a still-buffered seq should be rejected as duplicate")

	total, dup, written := b.Stats()
	require.Equal(t, 4, total)
	require.Equal(t, 2, dup)
	require.Equal(t, 1, written)
}

func TestCompleteFalseUntilFinDrained(t *testing.T) {
	b := New()
	b.Store(0, []byte("a"), false)
	b.Store(2, []byte("c"), true)

	var buf bytes.Buffer
	require.NoError(t, b.Drain(&buf))
	require.False(t, b.Complete(), "should not be complete with seq 1 missing")

	b.Store(1, []byte("b"), false)
	require.NoError(t, b.Drain(&buf))
	require.True(t, b.Complete(), "expected Complete() once the FIN chunk is drained")
}
