package demux

import "context"

// IOCallbacks are the async read/seek callbacks the native container parser
// invokes on the caller's Source during open/seek/readPacket (spec.md §5,
// §9: "encode the demuxer's suspension points as a pair of async read/seek
// callbacks the foreign code invokes; the runtime drives them as
// futures/tasks"). The native side is free to call Read many times per
// logical operation; each call may suspend arbitrarily.
type IOCallbacks struct {
	Read func(ctx context.Context, offset uint64, length uint32) ([]byte, error)
	Seek func(ctx context.Context, offset uint64) error
	Size func(ctx context.Context) (uint64, error)
}

// native is the Go-side abstraction of the C-ABI table in spec.md §6. Two
// implementations exist behind this interface: native_cgo.go (built with
// cgo, backed by the real foreign library) and native_nocgo.go (a stub that
// reports ErrNativeUnavailable). The Demuxer wrapper in demux.go is written
// only against this interface.
type native interface {
	// Open allocates native state, sets the file size, and parses the
	// container, returning the stream count.
	Open(ctx context.Context, io IOCallbacks) (streamCount int, err error)

	StreamInfo(ctx context.Context, index int) (StreamInfo, error)
	Extradata(ctx context.Context, index int) ([]byte, error)
	Duration(ctx context.Context) (mediaDuration float64, err error)
	StartTime(ctx context.Context) (float64, error)
	FormatName(ctx context.Context) (string, error)
	MetadataTitle(ctx context.Context) (string, error)

	// Seek repositions to the largest keyframe <= timestamp under the
	// given flags and flushes internal read buffers (spec.md §4.4).
	Seek(ctx context.Context, timestamp float64, streamIndex int, flags SeekFlags) error

	// ReadPacket fills buf with the next packet's bytes, returning its
	// metadata. It returns (PacketInfo{}, 0, nil) on EOF (Size == 0), and
	// mcerrors.ErrBufferTooSmall when the packet exceeds len(buf).
	ReadPacket(ctx context.Context, buf []byte) (PacketInfo, int, error)

	// Destroy releases native state. Safe to call multiple times.
	Destroy()
}

// newNative is provided by native_cgo.go / native_nocgo.go.
var newNative func() native
