package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCache_GetSetExact(t *testing.T) {
	cc, err := New(10 << 20)
	require.NoError(t, err)
	defer cc.Close()

	data := make([]byte, 2<<20)
	for i := range data {
		data[i] = byte(i)
	}
	cc.Set("src", 0, uint32(len(data)), data)

	got, ok := cc.Get("src", 0, uint32(len(data)))
	require.True(t, ok)
	assert.Equal(t, data, got)

	_, ok = cc.Get("src", 0, 1024) // wrong length: not an exact match
	assert.False(t, ok)

	_, ok = cc.Get("other-src", 0, uint32(len(data)))
	assert.False(t, ok)
}

func TestChunkCache_FindOverlapping(t *testing.T) {
	cc, err := New(50 << 20)
	require.NoError(t, err)
	defer cc.Close()

	chunkSize := uint32(2 << 20)
	cc.Set("src", 0, chunkSize, make([]byte, chunkSize))
	cc.Set("src", uint64(chunkSize), chunkSize, make([]byte, chunkSize))
	cc.Set("src", uint64(chunkSize)*4, chunkSize, make([]byte, chunkSize))

	overlapping := cc.FindOverlapping("src", 0, chunkSize*2)
	assert.Len(t, overlapping, 2)

	none := cc.FindOverlapping("src", uint64(chunkSize)*2, chunkSize)
	assert.Len(t, none, 0)
}

func TestChunkCache_Utilization(t *testing.T) {
	cc, err := New(4 << 20)
	require.NoError(t, err)
	defer cc.Close()

	assert.Equal(t, 0.0, cc.Utilization())
	cc.Set("src", 0, 2<<20, make([]byte, 2<<20))
	assert.InDelta(t, 50.0, cc.Utilization(), 0.01)
}

func TestChunkCache_Clear(t *testing.T) {
	cc, err := New(10 << 20)
	require.NoError(t, err)
	defer cc.Close()

	cc.Set("src", 0, 1024, make([]byte, 1024))
	cc.Clear()

	_, ok := cc.Get("src", 0, 1024)
	assert.False(t, ok)
	assert.Equal(t, 0.0, cc.Utilization())
}
