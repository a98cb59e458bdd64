package clock

import (
	"testing"
	"time"

	"github.com/mediacore/playback/internal/mediatime"
)

func newTestClock(start time.Time) (*Clock, *time.Time) {
	t := start
	c := New()
	c.now = func() time.Time { return t }
	return c, &t
}

func TestClock_StartAdvancesWithRate(t *testing.T) {
	c, now := newTestClock(time.Unix(0, 0))
	c.Start(10.0, 1.0)

	*now = now.Add(2 * time.Second)
	if got := c.CurrentMediaTime(); got != 12.0 {
		t.Errorf("expected media time 12.0, got %v", got)
	}
}

func TestClock_PauseFreezesTime(t *testing.T) {
	c, now := newTestClock(time.Unix(0, 0))
	c.Start(0, 1.0)
	*now = now.Add(5 * time.Second)
	c.Pause()
	*now = now.Add(5 * time.Second)
	if got := c.CurrentMediaTime(); got != 5.0 {
		t.Errorf("expected frozen media time 5.0, got %v", got)
	}
}

func TestClock_SetRatePreservesMediaTime(t *testing.T) {
	c, now := newTestClock(time.Unix(0, 0))
	c.Start(0, 1.0)
	*now = now.Add(4 * time.Second)
	c.SetRate(2.0)
	if got := c.CurrentMediaTime(); got != 4.0 {
		t.Errorf("expected media time preserved at rate change, got %v", got)
	}
	*now = now.Add(1 * time.Second)
	if got := c.CurrentMediaTime(); got != 6.0 {
		t.Errorf("expected 2x rate advance, got %v", got)
	}
}

func TestClock_Seek(t *testing.T) {
	c, now := newTestClock(time.Unix(0, 0))
	c.Start(0, 1.0)
	*now = now.Add(3 * time.Second)
	c.Seek(30.0)
	if got := c.CurrentMediaTime(); got != 30.0 {
		t.Errorf("expected media time 30.0 right after seek, got %v", got)
	}
	*now = now.Add(1 * time.Second)
	if got := c.CurrentMediaTime(); got != 31.0 {
		t.Errorf("expected 31.0 one second after seek, got %v", got)
	}
}

func TestClock_ReportAudioPTSCorrectsAndTracksDrift(t *testing.T) {
	c, now := newTestClock(time.Unix(0, 0))
	c.Start(0, 1.0)
	*now = now.Add(1 * time.Second) // estimate is now 1.0
	c.ReportAudioPTS(1.05)          // audio reports slightly ahead
	if got := c.CurrentMediaTime(); got != mediatime.Seconds(1.05) {
		t.Errorf("expected clock corrected to 1.05, got %v", got)
	}
	mean, _ := c.DriftMeanStdDev()
	if mean <= 0 {
		t.Errorf("expected positive mean drift, got %v", mean)
	}
}

func TestClock_ReportVideoPTSFreeRuns(t *testing.T) {
	c, now := newTestClock(time.Unix(0, 0))
	c.Start(0, 1.0)
	*now = now.Add(1 * time.Second)
	c.ReportVideoPTS(2.0)
	if got := c.CurrentMediaTime(); got != 2.0 {
		t.Errorf("expected clock set to reported video pts, got %v", got)
	}
}

func TestDriftStat_MeanStdDev(t *testing.T) {
	d := NewDriftStat(4)
	mean, stddev := d.MeanStdDev()
	if mean != 0 || stddev != 0 {
		t.Errorf("expected zero stats with no samples, got mean=%v stddev=%v", mean, stddev)
	}
	d.Add(1)
	d.Add(1)
	d.Add(1)
	mean, stddev = d.MeanStdDev()
	if mean != 1 || stddev != 0 {
		t.Errorf("expected mean=1 stddev=0, got mean=%v stddev=%v", mean, stddev)
	}
}

func TestDriftStat_RingBufferWraps(t *testing.T) {
	d := NewDriftStat(3)
	d.Add(1)
	d.Add(2)
	d.Add(3)
	d.Add(100) // overwrites the oldest (1)
	mean, _ := d.MeanStdDev()
	want := (2.0 + 3.0 + 100.0) / 3.0
	if mean != want {
		t.Errorf("expected mean %v after wraparound, got %v", want, mean)
	}
}
