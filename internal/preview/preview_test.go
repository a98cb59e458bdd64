package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mediatime"
	"github.com/mediacore/playback/internal/source"
)

type fakeHandle struct{}

func (fakeHandle) Size(ctx context.Context) (uint64, error) { return 1024, nil }

func (fakeHandle) Read(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	return make([]byte, length), nil
}

func (fakeHandle) Seek(ctx context.Context, offset uint64) error { return nil }
func (fakeHandle) Close() error                                  { return nil }

var _ source.Handle = fakeHandle{}

type fakePreviewDemuxer struct {
	mu        sync.Mutex
	streams   []demux.StreamInfo
	openErr   error
	seekCalls []mediatime.Seconds
	packets   []*demux.Packet
	idx       int
	closed    bool
}

func (f *fakePreviewDemuxer) Open(ctx context.Context, io demux.IOCallbacks) ([]demux.StreamInfo, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.streams, nil
}

func (f *fakePreviewDemuxer) Seek(ctx context.Context, timestamp mediatime.Seconds, streamIndex int, flags demux.SeekFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekCalls = append(f.seekCalls, timestamp)
	f.idx = 0
	return nil
}

func (f *fakePreviewDemuxer) ReadPacket(ctx context.Context) (*demux.Packet, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.packets) {
		return nil, false, nil
	}
	p := f.packets[f.idx]
	f.idx++
	return p, true, nil
}

func (f *fakePreviewDemuxer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakePreviewDemuxer) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seekCalls)
}

// fakeVideoBackend hands back one RGBA frame per Submit call, letting
// decodeOne's drain loop terminate deterministically without a real codec.
type fakeVideoBackend struct{}

func (fakeVideoBackend) Configure(track demux.StreamInfo, codecString string) error { return nil }

func (fakeVideoBackend) Submit(bytes []byte, pts, dts mediatime.Seconds, keyframe bool) ([]video.Frame, error) {
	return []video.Frame{{PTS: pts, Width: 4, Height: 2, RGBA: make([]byte, 4*2*4)}}, nil
}

func (fakeVideoBackend) Flush() []video.Frame { return nil }
func (fakeVideoBackend) Close()               {}

func sampleVideoStream() demux.StreamInfo {
	return demux.StreamInfo{Index: 0, Kind: demux.StreamVideo, CodecName: "h264", Width: 4, Height: 2}
}

func newManagerWithFakes(fd *fakePreviewDemuxer) *Manager {
	m := New(1<<20, zerolog.Nop())
	m.newDemuxer = func(n int) previewDemuxer { return fd }
	m.newBackend = func() video.Backend { return fakeVideoBackend{} }
	return m
}

func sampleRequest(key string, ts mediatime.Seconds) Request {
	return Request{
		SourceKey: key,
		Timestamp: ts,
		Open:      func(ctx context.Context) (source.Handle, error) { return fakeHandle{}, nil },
	}
}

func TestManager_EnsureDecodesOneFrame(t *testing.T) {
	fd := &fakePreviewDemuxer{
		streams: []demux.StreamInfo{sampleVideoStream()},
		packets: []*demux.Packet{
			{PacketInfo: demux.PacketInfo{StreamIndex: 0, Keyframe: true, PTS: 12}, Bytes: []byte{1, 2, 3}},
		},
	}
	m := newManagerWithFakes(fd)

	run, isNew := m.Ensure(context.Background(), sampleRequest("file:sample.mp4", 12))
	if !isNew {
		t.Fatal("expected isNew=true for first request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame, err := run.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: unexpected error: %v", err)
	}
	if frame.Width != 4 || frame.Height != 2 {
		t.Errorf("got frame %dx%d, want 4x2", frame.Width, frame.Height)
	}
	if fd.seekCount() != 1 {
		t.Errorf("expected exactly one demux seek, got %d", fd.seekCount())
	}
}

func TestManager_EnsureDeduplicatesConcurrentRequests(t *testing.T) {
	fd := &fakePreviewDemuxer{
		streams: []demux.StreamInfo{sampleVideoStream()},
		packets: []*demux.Packet{
			{PacketInfo: demux.PacketInfo{StreamIndex: 0, Keyframe: true, PTS: 5}, Bytes: []byte{9}},
		},
	}
	m := newManagerWithFakes(fd)
	req := sampleRequest("file:sample.mp4", 5)

	run1, isNew1 := m.Ensure(context.Background(), req)
	run2, isNew2 := m.Ensure(context.Background(), req)

	if !isNew1 {
		t.Error("expected isNew=true for the first call")
	}
	if isNew2 {
		t.Error("expected isNew=false for the concurrent duplicate")
	}
	if run1 != run2 {
		t.Error("expected the duplicate request to return the same Run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := run1.Wait(ctx); err != nil {
		t.Fatalf("Wait: unexpected error: %v", err)
	}
}

func TestManager_EnsureStaleRunIsReplaced(t *testing.T) {
	fd := &fakePreviewDemuxer{
		streams: []demux.StreamInfo{sampleVideoStream()},
		packets: []*demux.Packet{
			{PacketInfo: demux.PacketInfo{StreamIndex: 0, Keyframe: true, PTS: 1}, Bytes: []byte{1}},
		},
	}
	m := newManagerWithFakes(fd)
	req := sampleRequest("file:sample.mp4", 1)

	run1, _ := m.Ensure(context.Background(), req)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := run1.Wait(ctx); err != nil {
		t.Fatalf("first run: unexpected error: %v", err)
	}

	fd.idx = 0 // rewind so a second run has a packet to decode
	run2, isNew := m.Ensure(context.Background(), req)
	if !isNew {
		t.Error("expected a completed run's id to start a fresh run, not dedupe onto the stale one")
	}
	if run2 == run1 {
		t.Error("expected a new Run object for the stale-run case")
	}
	if _, err := run2.Wait(ctx); err != nil {
		t.Fatalf("second run: unexpected error: %v", err)
	}
}

func TestManager_EnsureSurfacesOpenFailure(t *testing.T) {
	fd := &fakePreviewDemuxer{openErr: context.DeadlineExceeded}
	m := newManagerWithFakes(fd)

	run, _ := m.Ensure(context.Background(), sampleRequest("file:broken.mp4", 0))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := run.Wait(ctx); err == nil {
		t.Fatal("expected the run to surface the demuxer's open error")
	}
}

func TestRequest_JobIDIsStablePerSourceAndTimestamp(t *testing.T) {
	a := Request{SourceKey: "file:a.mp4", Timestamp: 12.5}
	b := Request{SourceKey: "file:a.mp4", Timestamp: 12.5}
	c := Request{SourceKey: "file:a.mp4", Timestamp: 13.0}

	if a.jobID() != b.jobID() {
		t.Errorf("expected identical job ids for identical requests: %s != %s", a.jobID(), b.jobID())
	}
	if a.jobID() == c.jobID() {
		t.Error("expected distinct job ids for distinct timestamps")
	}
}
