// Package clock implements the audio-master Clock (spec.md §4.10): a
// wall-clock-driven estimate of the current media time, periodically
// corrected by the audio sink's last-committed sample PTS when audio is
// playing, and free-running from the last video PTS otherwise.
package clock

import (
	"sync"
	"time"

	"github.com/mediacore/playback/internal/mediatime"
)

// Clock tracks current media time from a wall-clock origin plus playback
// rate (spec.md §4.10). All methods are safe for concurrent use.
type Clock struct {
	mu sync.Mutex

	now func() time.Time

	wallOrigin  time.Time
	mediaOrigin mediatime.Seconds
	rate        float64
	paused      bool

	drift *DriftStat
}

// New constructs a Clock in the paused state at media time 0.
func New() *Clock {
	return &Clock{now: time.Now, paused: true, rate: 1.0, drift: NewDriftStat(64)}
}

// Start sets origin = now, media-origin = mediaTimeAtStart, rate = rate,
// paused = false (spec.md §4.10).
func (c *Clock) Start(mediaTimeAtStart mediatime.Seconds, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallOrigin = c.now()
	c.mediaOrigin = mediaTimeAtStart
	c.rate = rate
	c.paused = false
}

// Pause snapshots the current media time to origin and stops advancing.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediaOrigin = c.currentLocked()
	c.paused = true
}

// SetRate preserves the current media time and installs a new rate.
func (c *Clock) SetRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediaOrigin = c.currentLocked()
	c.wallOrigin = c.now()
	c.rate = rate
}

// Seek sets the media origin to mediaTime and resets the wall origin to now.
func (c *Clock) Seek(mediaTime mediatime.Seconds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediaOrigin = mediaTime
	c.wallOrigin = c.now()
}

// CurrentMediaTime returns media-origin when paused, else media-origin +
// rate*(now - wall-origin) (spec.md §4.10).
func (c *Clock) CurrentMediaTime() mediatime.Seconds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Clock) currentLocked() mediatime.Seconds {
	if c.paused {
		return c.mediaOrigin
	}
	elapsed := c.now().Sub(c.wallOrigin).Seconds()
	return c.mediaOrigin + mediatime.Seconds(c.rate*elapsed)
}

// ReportAudioPTS corrects mediaTimeAtStart to the audio sink's last
// submitted sample PTS while playing, keeping the clock audio-mastered
// (spec.md §4.10). The observed drift (reported minus the clock's own
// estimate before correction) feeds the rolling DriftStat, readable through
// DriftMeanStdDev; the controller does not consult it.
func (c *Clock) ReportAudioPTS(pts mediatime.Seconds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	estimate := c.currentLocked()
	c.drift.Add(float64(pts.Sub(estimate)))
	c.mediaOrigin = pts
	c.wallOrigin = c.now()
}

// ReportVideoPTS advances the free-running clock from the last video-frame
// PTS when there is no audio track to master against (spec.md §4.10).
func (c *Clock) ReportVideoPTS(pts mediatime.Seconds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.mediaOrigin = pts
	c.wallOrigin = c.now()
}

// DriftMeanStdDev returns the rolling mean and standard deviation of
// audio-clock correction drift, in seconds.
func (c *Clock) DriftMeanStdDev() (mean, stddev float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drift.MeanStdDev()
}
