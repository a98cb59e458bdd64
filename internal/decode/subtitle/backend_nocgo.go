//go:build !cgo
// +build !cgo

package subtitle

import (
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mediatime"
)

type stubBackend struct{}

// NewNativeBackend returns a Backend stub when built without cgo. It
// reports every codec as not compiled in, matching Configure's documented
// false-return contract (spec.md §4.8) rather than an error.
func NewNativeBackend() Backend { return stubBackend{} }

func (stubBackend) Configure(track demux.StreamInfo, extradata []byte) bool { return false }

func (stubBackend) Submit(data []byte, pts mediatime.Seconds, keyframe bool, duration mediatime.Seconds) (Cue, bool, error) {
	return Cue{}, false, nil
}

func (stubBackend) FreeSubtitle() {}
func (stubBackend) Close()        {}
