// Package mcerrors defines the error taxonomy shared across the playback
// pipeline. Each kind is a sentinel that call sites wrap with fmt.Errorf's
// %w verb so that errors.Is / Kindof keep working through layers of context.
package mcerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which taxonomy bucket an error belongs to.
type Kind string

const (
	KindSourceIO         Kind = "source_io"
	KindContainerParse   Kind = "container_parse"
	KindUnsupportedCodec Kind = "unsupported_codec"
	KindDecode           Kind = "decode"
	KindSeek             Kind = "seek"
	KindBufferTooSmall   Kind = "buffer_too_small"
	KindFatal            Kind = "fatal"
	KindUnknown          Kind = "unknown"
)

var (
	// ErrSourceIO signals a transport failure, range rejection, or
	// truncated read from a Source Adapter.
	ErrSourceIO = errors.New("source io error")

	// ErrContainerParse signals that the demuxer failed to open or parse
	// the container.
	ErrContainerParse = errors.New("container parse error")

	// ErrUnsupportedCodec signals that no decoder (hardware or software)
	// is available for a track's codec.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrDecode signals a per-packet decode failure.
	ErrDecode = errors.New("decode error")

	// ErrSeek signals that a demuxer seek failed after fallback.
	ErrSeek = errors.New("seek error")

	// ErrBufferTooSmall is returned by the native boundary when the
	// packet buffer must grow; callers handle it transparently.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrFatal signals an unrecoverable controller state.
	ErrFatal = errors.New("fatal controller error")

	// ErrNativeUnavailable is returned by the non-cgo demux stub.
	ErrNativeUnavailable = errors.New("native codec library not available (built without cgo)")
)

// kindOf maps sentinels to their Kind.
var kindOf = map[error]Kind{
	ErrSourceIO:         KindSourceIO,
	ErrContainerParse:   KindContainerParse,
	ErrUnsupportedCodec: KindUnsupportedCodec,
	ErrDecode:           KindDecode,
	ErrSeek:             KindSeek,
	ErrBufferTooSmall:   KindBufferTooSmall,
	ErrFatal:            KindFatal,
}

// Of wraps base with a formatted message, preserving errors.Is/Kindof.
func Of(base error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, base)...)
}

// Kindof returns the taxonomy Kind for err, or KindUnknown if err does not
// wrap one of the known sentinels.
func Kindof(err error) Kind {
	for sentinel, kind := range kindOf {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// StreamKind names which pipeline (video/audio/subtitle) a DecodeError
// pertains to, per spec.md §7.
type StreamKind string

const (
	StreamVideo    StreamKind = "video"
	StreamAudio    StreamKind = "audio"
	StreamSubtitle StreamKind = "subtitle"
)

// DecodeError carries the stream kind alongside the wrapped decode failure.
type DecodeError struct {
	Stream StreamKind
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error (%s): %v", e.Stream, e.Err)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// NewDecodeError builds a DecodeError for the given stream kind.
func NewDecodeError(stream StreamKind, cause error) *DecodeError {
	return &DecodeError{Stream: stream, Err: cause}
}
