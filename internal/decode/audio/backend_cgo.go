//go:build cgo
// +build cgo

package audio

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
	ctx     *C.mc_adec
	scratch []byte
}

// NewNativeBackend constructs the cgo-backed Backend.
func NewNativeBackend() Backend {
	b := &cgoBackend{ctx: C.mc_adec_create(), scratch: make([]byte, 1 << 20)}
	runtime.SetFinalizer(b, (*cgoBackend).Close)
	return b
}

func (b *cgoBackend) Configure(track demux.StreamInfo, downmixStereo bool) error {
	cs := C.CString(track.CodecName)
	defer C.free(unsafe.Pointer(cs))
	dm := C.int(0)
	if downmixStereo {
		dm = 1
	}
	if rc := C.mc_adec_configure(b.ctx, cs, dm); rc != 0 {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "adec_configure(%s) rc=%d", track.CodecName, int(rc))
	}
	return nil
}

const errENOBUFS = -105

func (b *cgoBackend) Submit(data []byte, pts, dts mediatime.Seconds) (Frame, bool, error) {
	var dataPtr *C.uint8_t
	if len(data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	var outPTS C.double
	var outCh, outRate, outBytes C.int

	for {
		rc := C.mc_adec_submit(b.ctx, dataPtr, C.int(len(data)), C.double(pts), C.double(dts),
			(*C.uint8_t)(unsafe.Pointer(&b.scratch[0])), C.int(len(b.scratch)),
			&outPTS, &outCh, &outRate, &outBytes)
		switch {
		case int(rc) == 0:
			return Frame{}, false, nil
		case int(rc) == errENOBUFS:
			b.scratch = make([]byte, len(b.scratch)*2)
			continue
		case rc < 0:
			return Frame{}, false, mcerrors.Of(mcerrors.ErrDecode, "adec_submit failed (code %d)", int(rc))
		default:
			buf := append([]byte(nil), b.scratch[:int(outBytes)]...)
			return Frame{
				PTS:        mediatime.Seconds(outPTS),
				Format:     Float32Planar,
				Channels:   int(outCh),
				SampleRate: int(outRate),
				Planes:     [][]byte{buf},
			}, true, nil
		}
	}
}

func (b *cgoBackend) Flush() []Frame {
	C.mc_adec_flush(b.ctx)
	return nil
}

func (b *cgoBackend) Close() {
	if b.ctx != nil {
		C.mc_adec_destroy(b.ctx)
		b.ctx = nil
	}
	runtime.SetFinalizer(b, nil)
}
