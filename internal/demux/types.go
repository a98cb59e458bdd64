// Package demux wraps the native container parser through the foreign-call
// boundary described in spec.md §6, exposing open/seek/read-packet and
// stream metadata including HDR color triple (spec.md §4.4).
package demux

import "github.com/mediacore/playback/internal/mediatime"

// StreamKind mirrors the C-ABI "type" field (spec.md §6 StreamInfo).
type StreamKind int32

const (
	StreamVideo StreamKind = iota
	StreamAudio
	StreamSubtitle
)

// ColorTriple is either a recognized name from a fixed vocabulary or
// absent (empty string), per spec.md §3.
type ColorTriple struct {
	Primaries string
	Transfer  string
	Matrix    string
}

// StreamInfo is the Go projection of the C-ABI's fixed-layout StreamInfo
// struct (spec.md §6, 336 bytes: index, type, codec_id, codec_name[32],
// width, height, frame_rate, channels, sample_rate, duration, bit_rate,
// extradata_size, profile, level, language[8], label[64], rotation,
// color_primaries[32], color_transfer[32], color_matrix[32],
// pixel_format[32], color_range[32]).
type StreamInfo struct {
	Index     int
	Kind      StreamKind
	CodecID   int32
	CodecName string

	// Video-only fields.
	Width       int
	Height      int
	FrameRate   float64
	Rotation    int // one of {0, 90, 180, 270}
	PixelFormat string
	ColorRange  string
	Color       ColorTriple

	// Audio-only fields.
	Channels   int
	SampleRate int

	Duration    mediatime.Seconds
	BitRate     int64
	Profile     int32
	Level       int32
	Language    string
	Label       string
	ExtradataSz int32
}

// PacketInfo is the Go projection of the C-ABI's fixed-layout PacketInfo
// struct (spec.md §6).
type PacketInfo struct {
	StreamIndex int
	Keyframe    bool
	PTS         mediatime.Seconds
	DTS         mediatime.Seconds
	Duration    mediatime.Seconds
	Size        int
}

// Packet is the demuxed unit handed to decoders (spec.md §3): bytes length
// must be > 0 for video/audio; subtitle packets may be bitmap or text.
type Packet struct {
	PacketInfo
	Bytes []byte
}

// SeekFlags mirrors the native seek_to flags (spec.md §4.4, §6): BACKWARD
// biases to the largest keyframe <= timestamp.
type SeekFlags int32

const (
	SeekBackward SeekFlags = iota
	SeekForward
	SeekAny
)

// AnyStream is passed as streamIndex to seek when no specific stream
// should drive the seek target (spec.md §4.4).
const AnyStream = -1
