package video

import (
	"context"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
)

// MaxSoftwareWidth caps decoded width to keep main-thread work bounded for
// 4K software decode (spec.md §4.6).
const MaxSoftwareWidth = 1920

type packet struct {
	bytes    []byte
	pts, dts mediatime.Seconds
	keyframe bool
}

// Software is the software Video Decoder variant: a cooperative packet
// queue drained on its own goroutine, yielding every yieldInterval to
// preserve audio responsiveness (spec.md §4.6).
type Software struct {
	backend Backend
	onFrame OnFrame

	mu          sync.Mutex
	queue       []packet
	cond        *sync.Cond
	targetFPS   float64
	lastEmitPTS mediatime.Seconds
	closed      bool
	drainDone   chan struct{}
}

// NewSoftware constructs a Software decoder driving backend, emitting
// decoded frames to onFrame.
func NewSoftware(backend Backend, onFrame OnFrame) *Software {
	s := &Software{backend: backend, onFrame: onFrame, drainDone: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Software) Configure(ctx context.Context, track demux.StreamInfo, targetFPS float64) error {
	s.mu.Lock()
	s.targetFPS = targetFPS
	s.mu.Unlock()

	if err := s.backend.Configure(track, codecStringFor(track)); err != nil {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "software video configure (%s)", track.CodecName)
	}

	// targetFPS only drives emission throttling (targetFPS == 0 disables
	// it); no reference-frame discard is requested from the backend at any
	// target frame rate.
	go s.drainLoop()
	return nil
}

func (s *Software) Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds, keyframe bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errNotConfigured
	}
	s.queue = append(s.queue, packet{bytes: bytes, pts: pts, dts: dts, keyframe: keyframe})
	s.mu.Unlock()
	s.cond.Signal()
	return nil
}

func (s *Software) drainLoop() {
	ticker := time.NewTicker(yieldInterval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed && len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.drainDone)
			return
		}
		pkt := s.queue[0]
		s.queue = s.queue[1:]
		fps := s.targetFPS
		s.mu.Unlock()

		frames, err := s.backend.Submit(pkt.bytes, pkt.pts, pkt.dts, pkt.keyframe)
		if err != nil {
			recordDecodeError("software")
			continue
		}
		s.emit(frames, fps)
		<-ticker.C
	}
}

func (s *Software) emit(frames []Frame, targetFPS float64) {
	for _, f := range frames {
		s.mu.Lock()
		skip := maybeThrottle(targetFPS, s.lastEmitPTS, f.PTS)
		if !skip {
			s.lastEmitPTS = f.PTS
		}
		s.mu.Unlock()
		if skip {
			recordDrop("fps_throttle")
			continue
		}
		f = downscale(f, MaxSoftwareWidth)
		recordEmit("video", "software")
		s.onFrame(f)
	}
}

func (s *Software) Flush() {
	frames := s.backend.Flush()
	s.emit(frames, 0)
}

func (s *Software) Reset() {
	s.mu.Lock()
	s.queue = nil
	s.lastEmitPTS = 0
	s.mu.Unlock()
	s.backend.Flush()
}

func (s *Software) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Signal()
	<-s.drainDone
	s.backend.Close()
}

// downscale proportionally shrinks f to maxWidth using bilinear resampling
// when it exceeds the cap; frames at or under maxWidth pass through
// unchanged (spec.md §4.6).
func downscale(f Frame, maxWidth int) Frame {
	if f.Width <= maxWidth || f.Width == 0 {
		return f
	}
	scale := float64(maxWidth) / float64(f.Width)
	newW := maxWidth
	newH := int(float64(f.Height) * scale)
	if newH < 1 {
		newH = 1
	}

	src := &image.RGBA{Pix: f.RGBA, Stride: f.Width * 4, Rect: image.Rect(0, 0, f.Width, f.Height)}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return Frame{PTS: f.PTS, Width: newW, Height: newH, RGBA: dst.Pix}
}
