// Package video implements the Video Decoder contract (spec.md §4.6): a
// shared configure/decode/flush/reset/close lifecycle with software and
// hardware variants that both emit frames through onFrame in roughly
// PTS-increasing order.
package video

import (
	"context"
	"time"

	"github.com/mediacore/playback/internal/codec"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mcmetrics"
	"github.com/mediacore/playback/internal/mediatime"
)

// Frame is a decoded, RGBA-converted video frame ready for a sink (spec.md
// §3): pixel-format conversion (including 10-bit -> 8-bit) happens in the
// backend; HDR tone mapping is left to the renderer.
type Frame struct {
	PTS    mediatime.Seconds
	Width  int
	Height int
	RGBA   []byte // len == Width*Height*4
}

// OnFrame is invoked for each decoded frame, in roughly PTS-increasing
// order (subject to the backend's own B-frame reordering).
type OnFrame func(Frame)

// Backend is the raw-bitstream boundary a Decoder drives: it owns the
// actual decode loop (native library or host hardware decoder) and always
// hands back RGBA-converted pixels plus the decoder-reported PTS.
type Backend interface {
	Configure(track demux.StreamInfo, codecString string) error
	Submit(bytes []byte, pts, dts mediatime.Seconds, keyframe bool) ([]Frame, error)
	Flush() []Frame
	Close()
}

// Decoder is the shared contract both variants implement (spec.md §4.6).
type Decoder interface {
	Configure(ctx context.Context, track demux.StreamInfo, targetFPS float64) error
	Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds, keyframe bool) error
	Flush()
	Reset()
	Close()
}

// codecStringFor synthesizes the host-decoder-style string from a track's
// family/profile/level (spec.md §4.5).
func codecStringFor(track demux.StreamInfo) string {
	family := codec.FamilyOf(track.CodecName)
	return codec.CodecString(family, track.Profile, track.Level)
}

func maybeThrottle(targetFPS float64, lastEmit, pts mediatime.Seconds) bool {
	if targetFPS <= 0 {
		return false
	}
	minGap := mediatime.Seconds(0.9 / targetFPS)
	return lastEmit != 0 && pts.Sub(lastEmit) < minGap && pts.Sub(lastEmit) >= 0
}

func recordEmit(stream, decoder string) {
	mcmetrics.FramesEmitted.WithLabelValues(stream, decoder).Inc()
}

func recordDrop(reason string) {
	mcmetrics.FramesDropped.WithLabelValues(reason).Inc()
}

func recordDecodeError(decoder string) {
	mcmetrics.DecodeErrors.WithLabelValues("video", decoder).Inc()
}

// yieldInterval is how often the software decode loop yields to the host
// event loop, preserving audio responsiveness (spec.md §4.6).
const yieldInterval = 8 * time.Millisecond

var errNotConfigured = mcerrors.Of(mcerrors.ErrDecode, "video decoder not configured")
