// Package audio implements the Audio Decoder contract (spec.md §4.7):
// configure/decode/flush/reset/close, emitting one decoded frame per
// packet submit cycle until the backend reports it needs more input.
package audio

import (
	"context"

	"github.com/mediacore/playback/internal/codec"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/hwcaps"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mcmetrics"
	"github.com/mediacore/playback/internal/mediatime"
)

// SampleFormat names the PCM layout of a decoded Frame (spec.md §4.7:
// "typically 32-bit float planar").
type SampleFormat string

const (
	Float32Planar SampleFormat = "f32p"
	Int16Interleaved SampleFormat = "s16"
)

// Frame is a decoded audio frame. Planes holds one []byte per channel for
// planar formats, or a single interleaved buffer for Int16Interleaved.
// Emitted frames own their sample buffers until a sink consumes them
// (spec.md §4.7).
type Frame struct {
	PTS        mediatime.Seconds
	Format     SampleFormat
	Channels   int
	SampleRate int
	Planes     [][]byte
}

// OnData is invoked for each decoded audio frame.
type OnData func(Frame)

// Backend is the raw-bitstream boundary an audio Decoder drives.
type Backend interface {
	Configure(track demux.StreamInfo, downmixStereo bool) error
	// Submit returns ok=false when the backend needs more input before it
	// can emit a frame (spec.md §4.7).
	Submit(bytes []byte, pts, dts mediatime.Seconds) (Frame, bool, error)
	Flush() []Frame
	Close()
}

// Decoder is the shared contract both variants implement.
type Decoder interface {
	Configure(ctx context.Context, track demux.StreamInfo, downmixStereo bool) error
	Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds) error
	Flush()
	Reset()
	Close()
}

// Software is the software Audio Decoder variant (spec.md §4.7). Unlike
// video, audio decode is cheap enough that no separate drain goroutine is
// needed: Decode runs the backend inline on the caller's goroutine (the
// controller's packet pump), which also keeps audio-to-clock latency low.
type Software struct {
	backend Backend
	onData  OnData
}

// NewSoftware constructs a Software audio decoder.
func NewSoftware(backend Backend, onData OnData) *Software {
	return &Software{backend: backend, onData: onData}
}

func (s *Software) Configure(ctx context.Context, track demux.StreamInfo, downmixStereo bool) error {
	if err := s.backend.Configure(track, downmixStereo); err != nil {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "software audio configure (%s)", track.CodecName)
	}
	return nil
}

func (s *Software) Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds) error {
	frame, ok, err := s.backend.Submit(bytes, pts, dts)
	if err != nil {
		mcmetrics.DecodeErrors.WithLabelValues("audio", "software").Inc()
		return mcerrors.NewDecodeError(mcerrors.StreamAudio, err)
	}
	if !ok {
		return nil // backend needs more input
	}
	mcmetrics.FramesEmitted.WithLabelValues("audio", "software").Inc()
	s.onData(frame)
	return nil
}

func (s *Software) Flush() {
	for _, f := range s.backend.Flush() {
		s.onData(f)
	}
}

func (s *Software) Reset() { s.backend.Flush() }
func (s *Software) Close() { s.backend.Close() }

// Hardware is the hardware Audio Decoder variant, gated fail-closed on
// hwcaps exactly like the video variant (spec.md §4.6/§4.7).
type Hardware struct {
	backend Backend
	onData  OnData
}

// NewHardware constructs a Hardware audio decoder.
func NewHardware(backend Backend, onData OnData) *Hardware {
	return &Hardware{backend: backend, onData: onData}
}

func (h *Hardware) Configure(ctx context.Context, track demux.StreamInfo, downmixStereo bool) error {
	family := codec.FamilyOf(track.CodecName)
	if !hwcaps.IsReady(family) {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "hardware audio decoder not preflighted for %s", family)
	}
	if err := h.backend.Configure(track, downmixStereo); err != nil {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "hardware audio configure rejected %s", track.CodecName)
	}
	return nil
}

func (h *Hardware) Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds) error {
	frame, ok, err := h.backend.Submit(bytes, pts, dts)
	if err != nil {
		mcmetrics.DecodeErrors.WithLabelValues("audio", "hardware").Inc()
		return mcerrors.NewDecodeError(mcerrors.StreamAudio, err)
	}
	if !ok {
		return nil
	}
	mcmetrics.FramesEmitted.WithLabelValues("audio", "hardware").Inc()
	h.onData(frame)
	return nil
}

func (h *Hardware) Flush() {
	for _, f := range h.backend.Flush() {
		h.onData(f)
	}
}

func (h *Hardware) Reset() { h.backend.Flush() }
func (h *Hardware) Close() { h.backend.Close() }
