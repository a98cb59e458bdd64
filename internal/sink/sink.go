// Package sink defines the Renderer Surfaces contracts (spec.md §4.12): the
// narrow boundary between the playback core and an embedder's actual pixel
// conversion, audio graph, or overlay rendering, which are out of core
// scope.
package sink

import (
	"github.com/mediacore/playback/internal/decode/audio"
	"github.com/mediacore/playback/internal/decode/subtitle"
	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/mediatime"
)

// VideoSink displays decoded video frames. Present takes ownership of
// frame and must release it (its pixel buffer must not be retained by the
// caller afterward).
type VideoSink interface {
	Present(frame video.Frame)
}

// AudioSink buffers and schedules decoded audio for output. Enqueue takes
// ownership of frame. GetLastScheduledPTS is polled by the controller to
// feed the audio-master Clock (spec.md §4.10).
type AudioSink interface {
	Enqueue(frame audio.Frame)
	SetMuted(muted bool)
	SetVolume(volume float64) // clamped to [0,1] by the implementation
	SetRate(rate float64)
	GetLastScheduledPTS() mediatime.Seconds
}

// SubtitleSink displays the controller's currently active cue, or clears
// the overlay.
type SubtitleSink interface {
	ShowText(text string)
	ShowImage(cue subtitle.ImageCue)
	Clear()
}
