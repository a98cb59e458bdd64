package demux

import (
	"context"
	"errors"
	"sync"

	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mcmetrics"
	"github.com/mediacore/playback/internal/mediatime"
)

// Demuxer wraps the native foreign-call boundary (spec.md §4.4). It is
// single-owner: created in Load, destroyed on Close/teardown (spec.md §3
// entity lifecycles).
type Demuxer struct {
	mu     sync.Mutex
	n      native
	opened bool

	streams []StreamInfo
	buf     []byte // growable scratch buffer, doubled on ErrBufferTooSmall (spec.md §9)
}

// New creates an unopened Demuxer with an initial packet buffer of
// initialBufBytes (spec.md §9 marks this value as an open question; the
// reference's default of 10 MiB is used unless overridden).
func New(initialBufBytes int) *Demuxer {
	if initialBufBytes <= 0 {
		initialBufBytes = 10 << 20
	}
	return &Demuxer{n: newNative(), buf: make([]byte, initialBufBytes)}
}

// Open parses the container via io, returning the enumerated streams.
func (d *Demuxer) Open(ctx context.Context, io IOCallbacks) ([]StreamInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count, err := d.n.Open(ctx, io)
	if err != nil {
		return nil, err
	}

	streams := make([]StreamInfo, 0, count)
	for i := 0; i < count; i++ {
		info, err := d.n.StreamInfo(ctx, i)
		if err != nil {
			return nil, mcerrors.Of(mcerrors.ErrContainerParse, "stream_info(%d)", i)
		}
		streams = append(streams, info)
	}
	d.streams = streams
	d.opened = true
	return streams, nil
}

// Streams returns the last-parsed stream descriptors.
func (d *Demuxer) Streams() []StreamInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]StreamInfo(nil), d.streams...)
}

// Extradata returns the opaque codec-setup bytes for stream index.
func (d *Demuxer) Extradata(ctx context.Context, index int) ([]byte, error) {
	return d.n.Extradata(ctx, index)
}

// Duration returns the container-reported duration in seconds.
func (d *Demuxer) Duration(ctx context.Context) (mediatime.Seconds, error) {
	v, err := d.n.Duration(ctx)
	return mediatime.Seconds(v), err
}

// StartTime returns the container-reported start offset in seconds.
func (d *Demuxer) StartTime(ctx context.Context) (mediatime.Seconds, error) {
	v, err := d.n.StartTime(ctx)
	return mediatime.Seconds(v), err
}

func (d *Demuxer) FormatName(ctx context.Context) (string, error) { return d.n.FormatName(ctx) }

func (d *Demuxer) MetadataTitle(ctx context.Context) (string, error) {
	return d.n.MetadataTitle(ctx)
}

// Seek repositions to the largest keyframe <= timestamp (spec.md §4.4).
func (d *Demuxer) Seek(ctx context.Context, timestamp mediatime.Seconds, streamIndex int, flags SeekFlags) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n.Seek(ctx, float64(timestamp), streamIndex, flags)
}

// ReadPacket returns the next packet in demux (DTS) order, or (nil, false,
// nil) on EOF. BufferTooSmall is handled transparently by doubling the
// scratch buffer and retrying once per doubling, per spec.md §9.
func (d *Demuxer) ReadPacket(ctx context.Context) (*Packet, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		info, n, err := d.n.ReadPacket(ctx, d.buf)
		if err != nil {
			if errors.Is(err, mcerrors.ErrBufferTooSmall) {
				d.buf = make([]byte, len(d.buf)*2)
				continue
			}
			return nil, false, mcerrors.Of(mcerrors.ErrContainerParse, "read_packet")
		}
		if n == 0 {
			return nil, false, nil // EOF
		}
		bytes := append([]byte(nil), d.buf[:n]...)
		mcmetrics.FramesEmitted.WithLabelValues("demux", "native").Inc()
		return &Packet{PacketInfo: info, Bytes: bytes}, true, nil
	}
}

// Close releases native resources. Safe to call multiple times.
func (d *Demuxer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n != nil {
		d.n.Destroy()
	}
	d.opened = false
}
