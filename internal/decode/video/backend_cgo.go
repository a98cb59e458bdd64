//go:build cgo
// +build cgo

package video

// #cgo LDFLAGS: -L${SRCDIR}/../../../native/target/release -lmediacore_native
// #include <stdlib.h>
// #include "backend_bindings.h"
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
)

// cgoBackend is the default Backend, wrapping the native decode library
// through the same opaque-handle + finalizer idiom as demux's native_cgo.go.
type cgoBackend struct {
	ctx     *C.mc_vdec
	scratch []byte
}

// NewNativeBackend constructs the cgo-backed Backend.
func NewNativeBackend() Backend {
	b := &cgoBackend{ctx: C.mc_vdec_create(), scratch: make([]byte, 8<<20)}
	runtime.SetFinalizer(b, (*cgoBackend).Close)
	return b
}

func (b *cgoBackend) Configure(track demux.StreamInfo, codecString string) error {
	cs := C.CString(codecString)
	defer C.free(unsafe.Pointer(cs))
	if rc := C.mc_vdec_configure(b.ctx, cs, C.int(track.Width), C.int(track.Height)); rc != 0 {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "vdec_configure(%s) rc=%d", codecString, int(rc))
	}
	return nil
}

const errENOBUFS = -105

func (b *cgoBackend) Submit(data []byte, pts, dts mediatime.Seconds, keyframe bool) ([]Frame, error) {
	var dataPtr *C.uint8_t
	if len(data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	var outPTS C.double
	var outW, outH C.int
	kf := C.int(0)
	if keyframe {
		kf = 1
	}

	for {
		written := C.mc_vdec_submit(b.ctx, dataPtr, C.int(len(data)),
			C.double(pts), C.double(dts), kf,
			(*C.uint8_t)(unsafe.Pointer(&b.scratch[0])), C.int(len(b.scratch)),
			&outPTS, &outW, &outH)
		switch {
		case int(written) == 0:
			return nil, nil
		case int(written) == errENOBUFS:
			b.scratch = make([]byte, len(b.scratch)*2)
			continue
		case written < 0:
			return nil, mcerrors.Of(mcerrors.ErrDecode, "vdec_submit failed (code %d)", int(written))
		default:
			rgba := append([]byte(nil), b.scratch[:int(written)]...)
			return []Frame{{PTS: mediatime.Seconds(outPTS), Width: int(outW), Height: int(outH), RGBA: rgba}}, nil
		}
	}
}

func (b *cgoBackend) Flush() []Frame {
	C.mc_vdec_flush(b.ctx)
	return nil
}

func (b *cgoBackend) Close() {
	if b.ctx != nil {
		C.mc_vdec_destroy(b.ctx)
		b.ctx = nil
	}
	runtime.SetFinalizer(b, nil)
}
