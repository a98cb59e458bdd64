package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/mediacore/playback/internal/decode/audio"
	"github.com/mediacore/playback/internal/decode/subtitle"
	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcconfig"
	"github.com/mediacore/playback/internal/mediatime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes --------------------------------------------------------------

// fakeDemuxer's ReadPacket blocks (rather than reporting EOF) once its
// packet list is exhausted, unless eof is set: this keeps the controller
// in a stable "playing" state for tests that don't care about EOF
// handling, while letting loop/EOF tests opt into the real behavior.
type fakeDemuxer struct {
	mu        sync.Mutex
	streams   []demux.StreamInfo
	openErr   error
	packets   []*demux.Packet
	idx       int
	eof       bool
	seekErr   error
	seekCalls []mediatime.Seconds
	closed    bool
}

func (f *fakeDemuxer) Open(ctx context.Context, io demux.IOCallbacks) ([]demux.StreamInfo, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.streams, nil
}

func (f *fakeDemuxer) Extradata(ctx context.Context, index int) ([]byte, error) { return nil, nil }

func (f *fakeDemuxer) Seek(ctx context.Context, ts mediatime.Seconds, streamIndex int, flags demux.SeekFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekCalls = append(f.seekCalls, ts)
	if f.seekErr != nil {
		return f.seekErr
	}
	f.idx = 0
	return nil
}

func (f *fakeDemuxer) ReadPacket(ctx context.Context) (*demux.Packet, bool, error) {
	for {
		f.mu.Lock()
		if f.idx < len(f.packets) {
			p := f.packets[f.idx]
			f.idx++
			f.mu.Unlock()
			return p, true, nil
		}
		eof := f.eof
		f.mu.Unlock()
		if eof {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeDemuxer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeDemuxer) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seekCalls)
}

type fakeVideoDecoder struct {
	mu          sync.Mutex
	configErr   error
	decodeCalls int
	closed      bool
}

func (d *fakeVideoDecoder) Configure(ctx context.Context, t demux.StreamInfo, targetFPS float64) error {
	return d.configErr
}
func (d *fakeVideoDecoder) Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds, keyframe bool) error {
	d.mu.Lock()
	d.decodeCalls++
	d.mu.Unlock()
	return nil
}
func (d *fakeVideoDecoder) Flush() {}
func (d *fakeVideoDecoder) Reset() {}
func (d *fakeVideoDecoder) Close()  { d.closed = true }

type fakeAudioDecoder struct {
	mu          sync.Mutex
	decodeCalls int
	onData      audio.OnData
	closed      bool
}

func (d *fakeAudioDecoder) Configure(ctx context.Context, t demux.StreamInfo, downmix bool) error {
	return nil
}
func (d *fakeAudioDecoder) Decode(ctx context.Context, bytes []byte, pts, dts mediatime.Seconds) error {
	d.mu.Lock()
	d.decodeCalls++
	d.mu.Unlock()
	if d.onData != nil {
		d.onData(audio.Frame{PTS: pts})
	}
	return nil
}
func (d *fakeAudioDecoder) Flush() {}
func (d *fakeAudioDecoder) Reset() {}
func (d *fakeAudioDecoder) Close()  { d.closed = true }

type fakeVideoSink struct {
	mu        sync.Mutex
	presented []video.Frame
}

func (s *fakeVideoSink) Present(f video.Frame) {
	s.mu.Lock()
	s.presented = append(s.presented, f)
	s.mu.Unlock()
}

type fakeAudioSink struct{}

func (fakeAudioSink) Enqueue(audio.Frame)                      {}
func (fakeAudioSink) SetMuted(bool)                            {}
func (fakeAudioSink) SetVolume(float64)                        {}
func (fakeAudioSink) SetRate(float64)                          {}
func (fakeAudioSink) GetLastScheduledPTS() mediatime.Seconds    { return 0 }

type fakeSubtitleSink struct{}

func (fakeSubtitleSink) ShowText(string)               {}
func (fakeSubtitleSink) ShowImage(subtitle.ImageCue)   {}
func (fakeSubtitleSink) Clear()                        {}

func sampleStreams() []demux.StreamInfo {
	return []demux.StreamInfo{
		{Index: 0, Kind: demux.StreamVideo, CodecName: "h264"},
		{Index: 1, Kind: demux.StreamAudio, CodecName: "aac"},
	}
}

func newTestController(t *testing.T, fd *fakeDemuxer) (*Controller, *fakeVideoDecoder, *fakeAudioDecoder) {
	t.Helper()
	fv := &fakeVideoDecoder{}
	fa := &fakeAudioDecoder{}

	orig := newDemuxer
	newDemuxer = func(bufBytes int) demuxer { return fd }
	t.Cleanup(func() { newDemuxer = orig })

	cfg := Config{
		Tuning:       mcconfig.Default(),
		VideoSink:    &fakeVideoSink{},
		AudioSink:    fakeAudioSink{},
		SubtitleSink: fakeSubtitleSink{},
		Factories: DecoderFactories{
			NewVideoDecoder: func(hw bool, onFrame video.OnFrame) video.Decoder { return fv },
			NewAudioDecoder: func(hw bool, onData audio.OnData) audio.Decoder {
				fa.onData = onData
				return fa
			},
			NewSubtitleDecoder: func(onCue subtitle.OnCue) *subtitle.Decoder { return nil },
		},
	}
	return New(cfg), fv, fa
}

// --- tests ---------------------------------------------------------------

func TestController_LoadSuccess(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, fv, fa := newTestController(t, fd)

	if err := c.Load(context.Background(), demux.IOCallbacks{}, 0); err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if c.State() != StateReady {
		t.Errorf("expected ready after successful load, got %s", c.State())
	}
	if fv.closed || fa.closed {
		t.Error("decoders should not be closed right after configure")
	}
	if v, ok := c.tracks.ActiveVideo(); !ok || v.Index != 0 {
		t.Errorf("expected active video track 0, got %+v ok=%v", v, ok)
	}
}

func TestController_LoadFailure(t *testing.T) {
	fd := &fakeDemuxer{openErr: errOpen}
	c, _, _ := newTestController(t, fd)

	if err := c.Load(context.Background(), demux.IOCallbacks{}, 0); err == nil {
		t.Fatal("expected Load to propagate the open error")
	}
	if c.State() != StateError {
		t.Errorf("expected error state after failed open, got %s", c.State())
	}
}

func TestController_PlayPauseSetRate(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, _, _ := newTestController(t, fd)
	mustLoad(t, c)

	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if c.State() != StatePlaying {
		t.Fatalf("expected playing, got %s", c.State())
	}

	c.SetRate(2.0)
	if c.rate != 2.0 {
		t.Errorf("expected rate 2.0, got %v", c.rate)
	}

	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if c.State() != StatePaused {
		t.Errorf("expected paused, got %s", c.State())
	}
	c.Close(context.Background())
}

func TestController_PumpRoutesPacketsToActiveDecoders(t *testing.T) {
	fd := &fakeDemuxer{
		streams: sampleStreams(),
		packets: []*demux.Packet{
			{PacketInfo: demux.PacketInfo{StreamIndex: 0, PTS: 0}, Bytes: []byte{1}},
			{PacketInfo: demux.PacketInfo{StreamIndex: 1, PTS: 0}, Bytes: []byte{2}},
			{PacketInfo: demux.PacketInfo{StreamIndex: 99, PTS: 0}, Bytes: []byte{3}}, // inactive track, dropped
		},
	}
	c, fv, fa := newTestController(t, fd)
	mustLoad(t, c)
	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fv.mu.Lock()
		vc := fv.decodeCalls
		fv.mu.Unlock()
		fa.mu.Lock()
		ac := fa.decodeCalls
		fa.mu.Unlock()
		if vc == 1 && ac == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	c.Close(context.Background())

	if fv.decodeCalls != 1 {
		t.Errorf("expected exactly 1 video decode call, got %d", fv.decodeCalls)
	}
	if fa.decodeCalls != 1 {
		t.Errorf("expected exactly 1 audio decode call, got %d", fa.decodeCalls)
	}
}

func TestController_SeekResumesPlayingAndRecordsDemuxSeek(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, _, _ := newTestController(t, fd)
	mustLoad(t, c)
	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if err := c.Seek(context.Background(), 42.0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if c.State() != StatePlaying {
		t.Errorf("expected playing resumed after seek, got %s", c.State())
	}
	if fd.seekCount() != 1 {
		t.Errorf("expected 1 demux seek call, got %d", fd.seekCount())
	}
	if got := c.clock.CurrentMediaTime(); got < 42.0 {
		t.Errorf("expected clock at/after seek target, got %v", got)
	}
	c.Close(context.Background())
}

func TestController_SeekFloorDropsStaleFramesUntilTarget(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, _, _ := newTestController(t, fd)
	mustLoad(t, c)

	if err := c.seekCore(context.Background(), 5); err != nil {
		t.Fatalf("seekCore: %v", err)
	}

	c.onVideoFrame(video.Frame{PTS: 3})
	if n := videoQueueLen(c); n != 0 {
		t.Fatalf("expected frame before seek target to be dropped, queue len=%d", n)
	}

	c.onVideoFrame(video.Frame{PTS: 5})
	if n := videoQueueLen(c); n != 1 {
		t.Fatalf("expected frame at seek target to be enqueued, queue len=%d", n)
	}

	c.onVideoFrame(video.Frame{PTS: 1})
	if n := videoQueueLen(c); n != 2 {
		t.Errorf("expected frames after the floor clears to enqueue normally, queue len=%d", n)
	}
}

func videoQueueLen(c *Controller) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.videoQueue)
}

func TestController_SeekFromPausedStaysPaused(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, _, _ := newTestController(t, fd)
	mustLoad(t, c)
	mustPlay(t, c)
	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	if err := c.Seek(context.Background(), 10.0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if c.State() != StatePaused {
		t.Errorf("expected seek from paused to restore paused, got %s", c.State())
	}
	c.Close(context.Background())
}

func TestController_SelectAudioTrackReconfiguresAndSeeks(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, _, _ := newTestController(t, fd)
	mustLoad(t, c)
	mustPlay(t, c)

	if err := c.SelectAudioTrack(context.Background(), 1); err != nil {
		t.Fatalf("SelectAudioTrack: %v", err)
	}
	if fd.seekCount() != 1 {
		t.Errorf("expected track switch to trigger exactly one implicit seek, got %d", fd.seekCount())
	}
	c.Close(context.Background())
}

func TestController_SelectSubtitleTrackDisable(t *testing.T) {
	fd := &fakeDemuxer{streams: sampleStreams()}
	c, _, _ := newTestController(t, fd)
	mustLoad(t, c)

	if err := c.SelectSubtitleTrack(context.Background(), nil); err != nil {
		t.Fatalf("SelectSubtitleTrack(nil): %v", err)
	}
	if c.subDec != nil {
		t.Error("expected no subtitle decoder after disabling")
	}
}

func TestController_LoopRestartsAtZeroWithoutDeadlock(t *testing.T) {
	fd := &fakeDemuxer{
		streams: sampleStreams(),
		packets: []*demux.Packet{
			{PacketInfo: demux.PacketInfo{StreamIndex: 0, PTS: 0}, Bytes: []byte{1}},
		},
		eof: true,
	}
	c, _, _ := newTestController(t, fd)
	c.cfg.Loop = true
	mustLoad(t, c)

	var endedCount int
	var mu sync.Mutex
	c.StateChange.Subscribe(func(sc StateChange) {
		if sc.To == StateEnded {
			mu.Lock()
			endedCount++
			mu.Unlock()
		}
	})

	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := endedCount
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		c.Close(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close deadlocked after loop restart")
	}

	mu.Lock()
	n := endedCount
	mu.Unlock()
	if n < 1 {
		t.Errorf("expected at least one loop cycle through ended, got %d", n)
	}
	if fd.seekCount() < 1 {
		t.Errorf("expected loop restart to reset the demuxer position, got %d seeks", fd.seekCount())
	}
}

func mustLoad(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.Load(context.Background(), demux.IOCallbacks{}, 0); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func mustPlay(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
}

var errOpen = &fakeOpenErr{}

type fakeOpenErr struct{}

func (*fakeOpenErr) Error() string { return "fake open error" }

// --- pure function tests --------------------------------------------------

func TestSelectFrame(t *testing.T) {
	queue := []video.Frame{{PTS: 0}, {PTS: 1}, {PTS: 2}}

	frame, rest, dropped := selectFrame(queue, 0.5)
	if frame == nil || frame.PTS != 0 {
		t.Fatalf("expected frame at PTS 0, got %+v", frame)
	}
	if len(rest) != 2 || len(dropped) != 0 {
		t.Errorf("expected no drops yet, got rest=%d dropped=%d", len(rest), len(dropped))
	}

	frame, rest, dropped = selectFrame(queue, 1.5)
	if frame == nil || frame.PTS != 1 {
		t.Fatalf("expected frame at PTS 1, got %+v", frame)
	}
	if diff := cmp.Diff([]video.Frame{{PTS: 0}}, dropped); diff != "" {
		t.Errorf("dropped frames mismatch (-want +got):\n%s", diff)
	}
	_ = rest

	frame, _, _ = selectFrame(queue, -1)
	if frame != nil {
		t.Errorf("expected no frame selected before the first frame's PTS, got %+v", frame)
	}

	frame, _, _ = selectFrame(nil, 0)
	if frame != nil {
		t.Errorf("expected nil frame for an empty queue, got %+v", frame)
	}
}

func TestActiveCue(t *testing.T) {
	cues := []subtitleCue{
		{subtitle.Cue{Start: 0, End: 2, Text: "a"}},
		{subtitle.Cue{Start: 2, End: 4, Text: "b"}},
	}
	if c := activeCue(cues, 1); c == nil || c.Text != "a" {
		t.Fatalf("expected cue a at t=1, got %+v", c)
	}
	if c := activeCue(cues, 3); c == nil || c.Text != "b" {
		t.Fatalf("expected cue b at t=3, got %+v", c)
	}
	if c := activeCue(cues, 10); c != nil {
		t.Fatalf("expected no cue at t=10, got %+v", c)
	}
}

func TestDropCuesBefore(t *testing.T) {
	cues := []subtitleCue{
		{subtitle.Cue{Start: 0, End: 2}},
		{subtitle.Cue{Start: 5, End: 8}},
	}
	out := dropCuesBefore(cues, 3)
	want := []subtitleCue{{subtitle.Cue{Start: 5, End: 8}}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("surviving cues mismatch (-want +got):\n%s", diff)
	}
}
