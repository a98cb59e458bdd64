//go:build cgo
// +build cgo

package subtitle

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

type cgoBackend struct {
	ctx      *C.mc_sdec
	textBuf  []byte
	imageBuf []byte
}

// NewNativeBackend constructs the cgo-backed Backend.
func NewNativeBackend() Backend {
	b := &cgoBackend{ctx: C.mc_sdec_create(), textBuf: make([]byte, 4096), imageBuf: make([]byte, 256<<10)}
	runtime.SetFinalizer(b, (*cgoBackend).Close)
	return b
}

func (b *cgoBackend) Configure(track demux.StreamInfo, extradata []byte) bool {
	cs := C.CString(track.CodecName)
	defer C.free(unsafe.Pointer(cs))
	var edPtr *C.uint8_t
	if len(extradata) > 0 {
		edPtr = (*C.uint8_t)(unsafe.Pointer(&extradata[0]))
	}
	return C.mc_sdec_configure(b.ctx, cs, edPtr, C.int(len(extradata))) == 0
}

func (b *cgoBackend) Submit(data []byte, pts mediatime.Seconds, keyframe bool, duration mediatime.Seconds) (Cue, bool, error) {
	var dataPtr *C.uint8_t
	if len(data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	kf := C.int(0)
	if keyframe {
		kf = 1
	}
	var start, end C.double
	var isImage, w, h, x, y C.int

	rc := C.mc_sdec_submit(b.ctx, dataPtr, C.int(len(data)), C.double(pts), kf, C.double(duration),
		&start, &end, &isImage,
		(*C.char)(unsafe.Pointer(&b.textBuf[0])), C.int(len(b.textBuf)),
		(*C.uint8_t)(unsafe.Pointer(&b.imageBuf[0])), C.int(len(b.imageBuf)),
		&w, &h, &x, &y)

	if rc < 0 {
		return Cue{}, false, mcerrors.Of(mcerrors.ErrDecode, "sdec_submit failed (code %d)", int(rc))
	}
	if rc == 0 {
		return Cue{}, false, nil
	}

	cue := Cue{Start: mediatime.Seconds(start), End: mediatime.Seconds(end)}
	if isImage != 0 {
		n := int(w) * int(h) * 4
		rgba := append([]byte(nil), b.imageBuf[:n]...)
		cue.Image = &ImageCue{RGBA: rgba, Width: int(w), Height: int(h), X: int(x), Y: int(y)}
	} else {
		cue.Text = cStringN(b.textBuf, len(b.textBuf))
	}
	return cue, true, nil
}

// cStringN returns the NUL-terminated prefix of buf as a Go string.
func cStringN(buf []byte, n int) string {
	for i := 0; i < n && i < len(buf); i++ {
		if buf[i] == 0 {
			return string(buf[:i])
		}
	}
	return string(buf[:n])
}

func (b *cgoBackend) FreeSubtitle() {
	C.mc_sdec_free_subtitle(b.ctx)
}

func (b *cgoBackend) Close() {
	if b.ctx != nil {
		C.mc_sdec_destroy(b.ctx)
		b.ctx = nil
	}
	runtime.SetFinalizer(b, nil)
}
