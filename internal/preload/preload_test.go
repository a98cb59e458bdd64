package preload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mediacore/playback/internal/cache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeReader struct {
	size uint64
	data []byte
}

func (f *fakeReader) Size(ctx context.Context) (uint64, error) { return f.size, nil }

func (f *fakeReader) Read(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	end := offset + uint64(length)
	if end > uint64(len(f.data)) {
		end = uint64(len(f.data))
	}
	return f.data[offset:end], nil
}

func TestByteEstimate(t *testing.T) {
	assert.Equal(t, int64(500), byteEstimate(5, 10, 1000))
	assert.Equal(t, int64(0), byteEstimate(0, 10, 1000))
	assert.Equal(t, int64(1000), byteEstimate(20, 10, 1000))
	assert.Equal(t, int64(0), byteEstimate(5, 0, 1000))
}

func TestPreloader_FillsAheadAndBehind(t *testing.T) {
	cc, err := New2x(t)
	require.NoError(t, err)
	defer cc.Close()

	size := uint64(64 << 20)
	data := make([]byte, size)
	reader := &fakeReader{size: size, data: data}

	cfg := Config{ChunkSize: 2 << 20, AheadChunks: 3, BehindChunks: 1, StopUtilPercent: 95, Concurrency: 2}
	p := New(cfg, cc, reader, "src")

	p.OnTimeUpdate(context.Background(), 10, 20) // currentTime/duration = 0.5 -> center at 32MiB

	require.Eventually(t, func() bool {
		_, ok := cc.Get("src", 32<<20, 2<<20)
		return ok
	}, time.Second, 5*time.Millisecond)

	_, ok := cc.Get("src", 32<<20+2<<20, 2<<20)
	assert.True(t, ok)
	_, ok = cc.Get("src", 32<<20-2<<20, 2<<20)
	assert.True(t, ok)
}

func New2x(t *testing.T) (*cache.ChunkCache, error) {
	t.Helper()
	return cache.New(200 << 20)
}
