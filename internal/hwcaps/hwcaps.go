// Package hwcaps probes hardware decode capability. It is fail-closed: a
// codec is never reported ready until a real decoder-configure probe has
// run and succeeded, mirroring the teacher's two-tier VAAPI check
// (internal/pipeline/hardware): device-presence is necessary but not
// sufficient.
package hwcaps

import (
	"os"
	"sync"

	"github.com/mediacore/playback/internal/codec"
)

var (
	mu       sync.RWMutex
	checked  bool
	verified map[codec.Family]bool
)

// HasDevice reports whether a hardware decode device node is present. This
// is a cheap necessary-but-not-sufficient check; callers must still consult
// IsReady before routing a track to the hardware decoder.
func HasDevice() bool {
	_, err := os.Stat("/dev/dri/renderD128")
	return err == nil
}

// SetPreflightResult records the result of a real hardware-configure probe
// per codec family, run once at startup (or on demand) by the hardware
// decoder adapter. Passing a nil map clears all prior results.
func SetPreflightResult(results map[codec.Family]bool) {
	mu.Lock()
	defer mu.Unlock()
	checked = true
	if results == nil {
		verified = nil
		return
	}
	verified = make(map[codec.Family]bool, len(results))
	for family, ok := range results {
		if ok {
			verified[family] = true
		}
	}
}

// IsReady reports whether family has been preflighted and passed. Returns
// false (fail-closed) if no preflight has run yet, even if HasDevice is true.
func IsReady(family codec.Family) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !checked || verified == nil {
		return false
	}
	return verified[family]
}

// Reset clears all recorded preflight state. Used by tests and by callers
// that need to re-probe after a device hot-plug event.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	checked = false
	verified = nil
}
