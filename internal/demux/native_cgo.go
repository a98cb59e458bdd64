//go:build cgo
// +build cgo

package demux

// #cgo LDFLAGS: -L${SRCDIR}/../../native/target/release -lmediacore_native
// #cgo linux LDFLAGS: -ldl -lm -lpthread
// #include <stdlib.h>
// #include "native_bindings.h"
//
// extern int go_read_trampoline(void *user_data, uint64_t offset, uint32_t length,
//                                uint8_t *out_buf, uint32_t out_cap, uint32_t *out_written);
// extern int go_seek_trampoline(void *user_data, uint64_t offset);
// extern int go_size_trampoline(void *user_data, uint64_t *out_size);
import "C"

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
)

func init() {
	newNative = func() native { return newCgoNative() }
}

// callbackRegistry maps the uintptr id passed through C's user_data back to
// the Go-side IOCallbacks + context from a successful Open until Destroy.
// cgo's pointer-passing rules forbid stashing a Go pointer inside C memory,
// so an integer handle indirection is used instead, exactly the pattern the
// teacher's RustAudioRemuxer uses for its opaque handle (though there the
// indirection runs the other way: a C handle held by Go).
var (
	registryMu  sync.Mutex
	registry    = map[uintptr]*cgoNative{}
	registryNxt atomic.Uint64
)

type cgoNative struct {
	ctx   *C.mc_ctx
	id    uintptr
	io    IOCallbacks
	ioCtx context.Context
}

func newCgoNative() *cgoNative {
	n := &cgoNative{ctx: C.mc_create()}
	runtime.SetFinalizer(n, (*cgoNative).Destroy)
	return n
}

func (n *cgoNative) Open(ctx context.Context, io IOCallbacks) (int, error) {
	if n.ctx == nil {
		return 0, mcerrors.Of(mcerrors.ErrContainerParse, "native context not allocated")
	}
	n.io = io
	n.ioCtx = ctx

	id := uintptr(registryNxt.Add(1))
	n.id = id
	registryMu.Lock()
	registry[id] = n
	registryMu.Unlock()
	unregister := func() {
		registryMu.Lock()
		delete(registry, id)
		registryMu.Unlock()
	}

	size, err := io.Size(ctx)
	if err != nil {
		unregister()
		return 0, mcerrors.Of(mcerrors.ErrSourceIO, "size probe before open")
	}
	C.mc_set_file_size(n.ctx, C.uint32_t(uint32(size)), C.uint32_t(uint32(size>>32)))
	C.mc_set_io_callbacks(n.ctx,
		C.mc_read_cb(C.go_read_trampoline),
		C.mc_seek_cb(C.go_seek_trampoline),
		C.mc_size_cb(C.go_size_trampoline),
		C.uintptr_t(id))

	streams := int(C.mc_open(n.ctx))
	if streams < 0 {
		unregister()
		return 0, mcerrors.Of(mcerrors.ErrContainerParse, "open failed (code %d)", streams)
	}
	// The registration stays for the lifetime of the demuxer: subsequent
	// seek/read calls may still trigger I/O callbacks after Open returns.
	// Destroy removes it.
	return streams, nil
}

func (n *cgoNative) StreamInfo(ctx context.Context, index int) (StreamInfo, error) {
	var raw C.mc_stream_info
	if rc := C.mc_get_stream_info(n.ctx, C.int(index), &raw); rc != 0 {
		return StreamInfo{}, mcerrors.Of(mcerrors.ErrContainerParse, "get_stream_info(%d)", index)
	}
	return streamInfoFromC(raw), nil
}

func (n *cgoNative) Extradata(ctx context.Context, index int) ([]byte, error) {
	buf := make([]byte, 4096)
	n2 := C.mc_get_extradata(n.ctx, C.int(index), (*C.uint8_t)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if n2 <= 0 {
		return nil, nil
	}
	return buf[:int(n2)], nil
}

func (n *cgoNative) Duration(ctx context.Context) (float64, error) {
	return float64(C.mc_get_duration(n.ctx)), nil
}

func (n *cgoNative) StartTime(ctx context.Context) (float64, error) {
	return float64(C.mc_get_start_time(n.ctx)), nil
}

func (n *cgoNative) FormatName(ctx context.Context) (string, error) {
	buf := make([]byte, 128)
	l := C.mc_get_format_name(n.ctx, (*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if l <= 0 {
		return "", nil
	}
	return string(buf[:int(l)]), nil
}

func (n *cgoNative) MetadataTitle(ctx context.Context) (string, error) {
	buf := make([]byte, 256)
	l := C.mc_get_metadata_title(n.ctx, (*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if l <= 0 {
		return "", nil
	}
	return string(buf[:int(l)]), nil
}

func (n *cgoNative) Seek(ctx context.Context, timestamp float64, streamIndex int, flags SeekFlags) error {
	n.ioCtx = ctx
	if rc := C.mc_seek_to(n.ctx, C.double(timestamp), C.int(streamIndex), C.int(flags)); rc != 0 {
		return mcerrors.Of(mcerrors.ErrSeek, "seek_to(%f) failed (code %d)", timestamp, int(rc))
	}
	return nil
}

const errENOBUFS = -105

// ReadPacket writes directly into the caller-owned buf. Buffer growth is the
// Demuxer wrapper's responsibility (demux.go): this layer only reports
// ErrBufferTooSmall when buf is too small for the current frame.
func (n *cgoNative) ReadPacket(ctx context.Context, buf []byte) (PacketInfo, int, error) {
	n.ioCtx = ctx
	if len(buf) == 0 {
		return PacketInfo{}, 0, mcerrors.ErrBufferTooSmall
	}
	var raw C.mc_packet_info
	written := C.mc_read_frame(n.ctx, &raw, (*C.uint8_t)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if written == 0 {
		return PacketInfo{}, 0, nil // EOF
	}
	if int(written) == errENOBUFS {
		return PacketInfo{}, 0, mcerrors.ErrBufferTooSmall
	}
	if written < 0 {
		return PacketInfo{}, 0, mcerrors.Of(mcerrors.ErrDecode, "read_frame failed (code %d)", int(written))
	}
	return packetInfoFromC(raw), int(written), nil
}

func (n *cgoNative) Destroy() {
	if n.ctx != nil {
		C.mc_destroy(n.ctx)
		n.ctx = nil
	}
	registryMu.Lock()
	delete(registry, n.id)
	registryMu.Unlock()
	runtime.SetFinalizer(n, nil)
}

func streamInfoFromC(raw C.mc_stream_info) StreamInfo {
	return StreamInfo{
		Index:     int(raw.index),
		Kind:      StreamKind(raw.stream_type),
		CodecID:   int32(raw.codec_id),
		CodecName: cStringN(&raw.codec_name[0], 32),
		Width:     int(raw.width),
		Height:    int(raw.height),
		FrameRate: float64(raw.frame_rate),
		Rotation:  int(raw.rotation),
		Color: ColorTriple{
			Primaries: cStringN(&raw.color_primaries[0], 32),
			Transfer:  cStringN(&raw.color_transfer[0], 32),
			Matrix:    cStringN(&raw.color_matrix[0], 32),
		},
		PixelFormat: cStringN(&raw.pixel_format[0], 32),
		ColorRange:  cStringN(&raw.color_range[0], 32),
		Channels:    int(raw.channels),
		SampleRate:  int(raw.sample_rate),
		Duration:    0,
		BitRate:     int64(raw.bit_rate),
		Profile:     int32(raw.profile),
		Level:       int32(raw.level),
		Language:    cStringN(&raw.language[0], 8),
		Label:       cStringN(&raw.label[0], 64),
		ExtradataSz: int32(raw.extradata_size),
	}
}

func packetInfoFromC(raw C.mc_packet_info) PacketInfo {
	return PacketInfo{
		StreamIndex: int(raw.stream_index),
		Keyframe:    raw.keyframe != 0,
		PTS:         mediatime.Seconds(raw.timestamp),
		DTS:         mediatime.Seconds(raw.dts),
		Duration:    mediatime.Seconds(raw.duration),
		Size:        int(raw.size),
	}
}

func cStringN(p *C.char, n int) string {
	b := C.GoBytes(unsafe.Pointer(p), C.int(n))
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

//export go_read_trampoline
func go_read_trampoline(userData unsafe.Pointer, offset C.uint64_t, length C.uint32_t, outBuf *C.uint8_t, outCap C.uint32_t, outWritten *C.uint32_t) C.int {
	id := uintptr(userData)
	registryMu.Lock()
	n, ok := registry[id]
	registryMu.Unlock()
	if !ok || n.io.Read == nil {
		return -1
	}
	data, err := n.io.Read(n.ioCtx, uint64(offset), uint32(length))
	if err != nil {
		return -1
	}
	cap := int(outCap)
	if len(data) > cap {
		data = data[:cap]
	}
	if len(data) > 0 {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(outBuf)), cap)
		copy(dst, data)
	}
	*outWritten = C.uint32_t(len(data))
	return 0
}

//export go_seek_trampoline
func go_seek_trampoline(userData unsafe.Pointer, offset C.uint64_t) C.int {
	id := uintptr(userData)
	registryMu.Lock()
	n, ok := registry[id]
	registryMu.Unlock()
	if !ok || n.io.Seek == nil {
		return 0
	}
	if err := n.io.Seek(n.ioCtx, uint64(offset)); err != nil {
		return -1
	}
	return 0
}

//export go_size_trampoline
func go_size_trampoline(userData unsafe.Pointer, outSize *C.uint64_t) C.int {
	id := uintptr(userData)
	registryMu.Lock()
	n, ok := registry[id]
	registryMu.Unlock()
	if !ok || n.io.Size == nil {
		return -1
	}
	size, err := n.io.Size(n.ioCtx)
	if err != nil {
		return -1
	}
	*outSize = C.uint64_t(size)
	return 0
}
