//go:build !cgo
// +build !cgo

package audio

import (
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mediatime"
)

type stubBackend struct{}

// NewNativeBackend returns a Backend stub when built without cgo.
func NewNativeBackend() Backend { return stubBackend{} }

func (stubBackend) Configure(track demux.StreamInfo, downmixStereo bool) error {
	return mcerrors.ErrNativeUnavailable
}

func (stubBackend) Submit(data []byte, pts, dts mediatime.Seconds) (Frame, bool, error) {
	return Frame{}, false, mcerrors.ErrNativeUnavailable
}

func (stubBackend) Flush() []Frame { return nil }
func (stubBackend) Close()         {}
