package video

import (
	"context"
	"sync"

	"github.com/mediacore/playback/internal/codec"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/hwcaps"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
)

// Hardware is the hardware Video Decoder variant: it consults hwcaps
// before configure (fail-closed, spec.md §4.6/§4.7) and otherwise trusts
// the host decoder to pace its own output, unlike Software which runs a
// cooperative drain loop.
type Hardware struct {
	backend Backend
	onFrame OnFrame

	mu     sync.Mutex
	closed bool
}

// NewHardware constructs a Hardware decoder driving backend.
func NewHardware(backend Backend, onFrame OnFrame) *Hardware {
	return &Hardware{backend: backend, onFrame: onFrame}
}

func (h *Hardware) Configure(ctx context.Context, track demux.StreamInfo, targetFPS float64) error {
	family := codec.FamilyOf(track.CodecName)
	if !hwcaps.IsReady(family) {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "hardware decoder not preflighted for %s", family)
	}
	if err := h.backend.Configure(track, codecStringFor(track)); err != nil {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "hardware video configure rejected %s", track.CodecName)
	}
	return nil
}

func (h *Hardware) Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds, keyframe bool) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return errNotConfigured
	}

	frames, err := h.backend.Submit(bytes, pts, dts, keyframe)
	if err != nil {
		recordDecodeError("hardware")
		return mcerrors.NewDecodeError(mcerrors.StreamVideo, err)
	}
	for _, f := range frames {
		recordEmit("video", "hardware")
		h.onFrame(f)
	}
	return nil
}

func (h *Hardware) Flush() {
	for _, f := range h.backend.Flush() {
		h.onFrame(f)
	}
}

func (h *Hardware) Reset() { h.backend.Flush() }

func (h *Hardware) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()
	h.backend.Close()
}
