// Package preview implements the Preview / Thumbnail Pipeline (spec.md §6's
// generatePreview, designed in SPEC_FULL.md §4.13): on-demand single-frame
// decode at an arbitrary timestamp, run against a second, isolated demuxer
// instance so it never disturbs the primary playback pipeline's position.
//
// Manager is grounded directly on the teacher's internal/vod.Manager
// exactly-once job idiom (Ensure, Run.Done, stale-run cleanup), repurposed
// so the job key is a (source, timestamp) pair instead of a recording id.
package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
	"github.com/mediacore/playback/internal/source"
)

// Frame is a single decoded, RGBA-converted preview image.
type Frame struct {
	PTS    mediatime.Seconds
	Width  int
	Height int
	RGBA   []byte
}

// Request identifies one preview job: the nearest keyframe at or before
// Timestamp within the handle opened from Open.
type Request struct {
	SourceKey string
	Timestamp mediatime.Seconds
	Open      func(ctx context.Context) (source.Handle, error)
}

func (r Request) jobID() string {
	return fmt.Sprintf("%s@%.3f", r.SourceKey, float64(r.Timestamp))
}

// Run is an active or completed preview job (spec.md §4.13: concurrent
// requests for the same (source, timestamp) collapse onto one in-flight
// job), mirroring the teacher's vod.Run.
type Run struct {
	ID        string
	StartedAt time.Time
	Done      chan struct{}
	Cancel    context.CancelFunc

	mu    sync.RWMutex
	frame Frame
	err   error
}

func (r *Run) setResult(f Frame, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame, r.err = f, err
}

// Wait blocks until the run completes or ctx is cancelled, returning the
// decoded frame or the job's failure.
func (r *Run) Wait(ctx context.Context) (Frame, error) {
	select {
	case <-r.Done:
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.frame, r.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Manager deduplicates concurrent preview requests by job id, grounded on
// internal/vod.Manager.EnsureSpec.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*Run
	log  zerolog.Logger

	newDemuxer func(bufBytes int) previewDemuxer
	newBackend func() video.Backend
	bufBytes   int
}

// previewDemuxer is the narrow surface Manager needs, letting tests swap
// in a fake the same way controller.go's demuxer interface does.
type previewDemuxer interface {
	Open(ctx context.Context, io demux.IOCallbacks) ([]demux.StreamInfo, error)
	Seek(ctx context.Context, timestamp mediatime.Seconds, streamIndex int, flags demux.SeekFlags) error
	ReadPacket(ctx context.Context) (*demux.Packet, bool, error)
	Close()
}

// New constructs a Manager whose jobs allocate native packet buffers of
// bufBytes (independent of the primary pipeline's own buffer, per spec.md
// §5's "two isolated native-library instances" policy).
func New(bufBytes int, log zerolog.Logger) *Manager {
	return &Manager{
		runs:       make(map[string]*Run),
		log:        log,
		newDemuxer: func(n int) previewDemuxer { return demux.New(n) },
		newBackend: video.NewNativeBackend,
		bufBytes:   bufBytes,
	}
}

// Ensure starts req's job if none is in flight for its (source, timestamp)
// key, or returns the existing Run (isNew=false) otherwise.
func (m *Manager) Ensure(ctx context.Context, req Request) (*Run, bool) {
	if err := ctx.Err(); err != nil {
		return nil, false
	}

	id := req.jobID()
	m.mu.Lock()

	if run, exists := m.runs[id]; exists {
		select {
		case <-run.Done:
			delete(m.runs, id)
		default:
			m.mu.Unlock()
			m.log.Debug().Str("id", id).Msg("preview: returning in-flight run")
			return run, false
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &Run{ID: id, StartedAt: time.Now(), Done: make(chan struct{}), Cancel: cancel}
	m.runs[id] = run
	m.mu.Unlock()

	m.log.Info().Str("id", id).Str("source", req.SourceKey).Msg("preview: started run")
	go m.execute(runCtx, run, req)

	return run, true
}

// Cancel stops the in-flight run for id, if any.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	run, ok := m.runs[id]
	m.mu.Unlock()
	if ok {
		run.Cancel()
	}
}

func (m *Manager) execute(ctx context.Context, run *Run, req Request) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("id", run.ID).Interface("panic", r).Msg("preview: run panicked")
			run.setResult(Frame{}, fmt.Errorf("preview panic: %v", r))
		}
		close(run.Done)
		m.mu.Lock()
		delete(m.runs, run.ID)
		m.mu.Unlock()
	}()

	frame, err := decodeOne(ctx, m.newDemuxer(m.bufBytes), m.newBackend(), req)
	if err != nil {
		m.log.Debug().Str("id", run.ID).Err(err).Msg("preview: run failed")
	}
	run.setResult(frame, err)
}

// decodeOne opens a fresh demuxer over req's handle, seeks to the nearest
// keyframe <= req.Timestamp on the first video stream, and decodes packets
// until the backend yields one frame.
func decodeOne(ctx context.Context, dmx previewDemuxer, backend video.Backend, req Request) (Frame, error) {
	handle, err := req.Open(ctx)
	if err != nil {
		return Frame{}, mcerrors.Of(mcerrors.ErrSourceIO, "preview open source")
	}
	defer handle.Close()

	io := ioCallbacksFor(handle)
	streams, err := dmx.Open(ctx, io)
	if err != nil {
		dmx.Close()
		return Frame{}, err
	}
	defer dmx.Close()

	var track demux.StreamInfo
	found := false
	for _, s := range streams {
		if s.Kind == demux.StreamVideo {
			track = s
			found = true
			break
		}
	}
	if !found {
		return Frame{}, mcerrors.Of(mcerrors.ErrUnsupportedCodec, "preview: no video stream")
	}

	if err := dmx.Seek(ctx, req.Timestamp, track.Index, demux.SeekBackward); err != nil {
		return Frame{}, mcerrors.Of(mcerrors.ErrSeek, "preview seek")
	}

	got := make(chan video.Frame, 1)
	dec := video.NewSoftware(backend, func(f video.Frame) {
		select {
		case got <- f:
		default:
		}
	})
	defer dec.Close()

	if err := dec.Configure(ctx, track, 0); err != nil {
		return Frame{}, err
	}

	for {
		pkt, ok, err := dmx.ReadPacket(ctx)
		if err != nil {
			return Frame{}, err
		}
		if ok && pkt.StreamIndex == track.Index {
			if err := dec.Decode(ctx, pkt.Bytes, pkt.PTS, pkt.DTS, pkt.Keyframe); err != nil {
				return Frame{}, err
			}
		}

		if !ok {
			// The software decoder drains asynchronously; give it
			// eofDrainWait to flush its last in-flight frame before
			// giving up.
			select {
			case f := <-got:
				return Frame{PTS: f.PTS, Width: f.Width, Height: f.Height, RGBA: f.RGBA}, nil
			case <-time.After(eofDrainWait):
				return Frame{}, mcerrors.Of(mcerrors.ErrDecode, "preview: no frame before EOF")
			case <-ctx.Done():
				return Frame{}, ctx.Err()
			}
		}

		select {
		case f := <-got:
			return Frame{PTS: f.PTS, Width: f.Width, Height: f.Height, RGBA: f.RGBA}, nil
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		default:
		}
	}
}

// eofDrainWait bounds how long decodeOne waits for the software decoder's
// drain goroutine to emit a frame after the demuxer reports EOF.
const eofDrainWait = 250 * time.Millisecond

func ioCallbacksFor(h source.Handle) demux.IOCallbacks {
	return demux.IOCallbacks{
		Read: h.Read,
		Seek: h.Seek,
		Size: h.Size,
	}
}
