// Package subtitle implements the Subtitle Decoder contract (spec.md
// §4.8): configure/decode against a native backend, emitting text or
// bitmap cues. Decode calls the backend's FreeSubtitle after each delivered
// cue to release native-side buffers.
package subtitle

import (
	"context"

	"github.com/mediacore/playback/internal/codec"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
)

// Cue is either a text cue (Text non-empty) or an image cue (Image
// non-nil), per spec.md §4.8.
type Cue struct {
	Start, End mediatime.Seconds
	Text       string
	Image      *ImageCue
}

// ImageCue carries a bitmap subtitle's RGBA pixels and screen position.
type ImageCue struct {
	RGBA          []byte
	Width, Height int
	X, Y          int
}

// OnCue is invoked for each decoded cue.
type OnCue func(Cue)

// Backend is the raw boundary a subtitle Decoder drives.
type Backend interface {
	Configure(track demux.StreamInfo, extradata []byte) bool
	// Submit decodes one packet, returning a cue if one was produced.
	Submit(bytes []byte, pts mediatime.Seconds, keyframe bool, duration mediatime.Seconds) (Cue, bool, error)
	// FreeSubtitle releases native-side buffers held for the last cue.
	FreeSubtitle()
	Close()
}

// Decoder drives a Backend, normalizing legacy text encodings to UTF-8
// before the cue reaches onCue (spec.md §4.8, DOMAIN STACK: container
// subtitle tracks are not guaranteed UTF-8).
type Decoder struct {
	backend Backend
	onCue   OnCue
	class   codec.SubtitleClass
	charset string
}

// New constructs a subtitle Decoder. charset names the legacy code page to
// assume for text cues that are not valid UTF-8 (e.g. "windows-1252");
// empty means assume UTF-8 already.
func New(backend Backend, onCue OnCue, charset string) *Decoder {
	return &Decoder{backend: backend, onCue: onCue, charset: charset}
}

// Configure returns false if the codec is not compiled into the native
// library (spec.md §4.8).
func (d *Decoder) Configure(ctx context.Context, track demux.StreamInfo, extradata []byte) bool {
	d.class = codec.ClassifySubtitle(codec.FamilyOf(track.CodecName))
	return d.backend.Configure(track, extradata)
}

// Decode submits one packet and, on success, delivers the resulting cue to
// onCue with text cues normalized to UTF-8.
func (d *Decoder) Decode(ctx context.Context, bytes []byte, pts mediatime.Seconds, keyframe bool, duration mediatime.Seconds) error {
	cue, ok, err := d.backend.Submit(bytes, pts, keyframe, duration)
	if err != nil {
		return mcerrors.NewDecodeError(mcerrors.StreamSubtitle, err)
	}
	if !ok {
		return nil
	}
	defer d.backend.FreeSubtitle()

	if cue.Image == nil && d.charset != "" {
		cue.Text = normalizeToUTF8(cue.Text, d.charset)
	}
	d.onCue(cue)
	return nil
}

func (d *Decoder) Close() { d.backend.Close() }
