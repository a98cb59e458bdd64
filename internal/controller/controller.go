// Package controller implements the Playback Controller (spec.md §4.11):
// the FSM-authoritative orchestrator that drives the packet pump, video
// presentation tick, audio scheduling, subtitle scheduling, seek, track
// switch, and loop behavior described there.
//
// The spec's cooperative single-threaded scheduling model (§5) is realized
// here with goroutines and channels rather than a manual yield primitive:
// idiomatic Go has no message-port-style cooperative scheduler, and
// goroutine + channel backpressure gives the same ordering and
// backpressure guarantees spec.md §5 asks for (see DESIGN.md).
package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mediacore/playback/internal/clock"
	"github.com/mediacore/playback/internal/codec"
	"github.com/mediacore/playback/internal/decode/audio"
	"github.com/mediacore/playback/internal/decode/subtitle"
	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/hwcaps"
	"github.com/mediacore/playback/internal/mcconfig"
	"github.com/mediacore/playback/internal/mcerrors"
	"github.com/mediacore/playback/internal/mclog"
	"github.com/mediacore/playback/internal/mcmetrics"
	"github.com/mediacore/playback/internal/mediatime"
	"github.com/mediacore/playback/internal/observer"
	"github.com/mediacore/playback/internal/sink"
	"github.com/mediacore/playback/internal/track"
	"github.com/mediacore/playback/internal/tracing"
)

// ErrorEvent is delivered to ErrorChange observers (spec.md §7): "the
// controller emits error events with a kind and a message".
type ErrorEvent struct {
	Kind    mcerrors.Kind
	Message string
}

// StateChange is delivered to StateChange observers.
type StateChange struct {
	From, To State
	Event    Event
}

// DecoderFactories lets the embedder choose hardware vs software decoder
// construction per spec.md §9's capability-trait guidance; the controller
// is written only against the video.Decoder/audio.Decoder/subtitle.Decoder
// interfaces.
type DecoderFactories struct {
	NewVideoDecoder    func(hw bool, onFrame video.OnFrame) video.Decoder
	NewAudioDecoder    func(hw bool, onData audio.OnData) audio.Decoder
	NewSubtitleDecoder func(onCue subtitle.OnCue) *subtitle.Decoder
}

// Config bundles everything the Controller needs that is not part of the
// per-media load: sinks, tuning, decoder construction policy.
type Config struct {
	Tuning       mcconfig.Tuning
	VideoSink    sink.VideoSink
	AudioSink    sink.AudioSink
	SubtitleSink sink.SubtitleSink
	Factories    DecoderFactories
	Loop         bool
}

type subtitleCue struct {
	subtitle.Cue
}

// demuxer is the narrow surface the controller needs from *demux.Demuxer,
// factored out so tests can substitute a fake container/packet source.
type demuxer interface {
	Open(ctx context.Context, io demux.IOCallbacks) ([]demux.StreamInfo, error)
	Extradata(ctx context.Context, index int) ([]byte, error)
	Seek(ctx context.Context, timestamp mediatime.Seconds, streamIndex int, flags demux.SeekFlags) error
	ReadPacket(ctx context.Context) (*demux.Packet, bool, error)
	Close()
}

// newDemuxer constructs the demuxer for Load; overridden in tests.
var newDemuxer = func(bufBytes int) demuxer { return demux.New(bufBytes) }

// Controller is the single-owner orchestrator for one loaded media
// (spec.md §3 entity lifecycles): created in Load, destroyed on Close.
type Controller struct {
	cfg Config
	fsm *Machine

	demuxer demuxer
	tracks  *track.Manager
	clock   *clock.Clock

	videoDec video.Decoder
	audioDec audio.Decoder
	subDec   *subtitle.Decoder

	mu               sync.Mutex
	videoQueue       []video.Frame
	cues             []subtitleCue
	activeCue        *subtitleCue
	videoFloor       mediatime.Seconds
	videoFloorActive bool

	pumpRunning atomic.Bool
	pumpCancel  context.CancelFunc
	pumpDone    chan struct{}

	tickCancel context.CancelFunc
	tickDone   chan struct{}

	contiguousDecodeErrors atomic.Int32
	seekGeneration         atomic.Uint64

	// rate is the last rate passed to SetRate/Start, reapplied whenever
	// playback resumes after a seek or loop restart.
	rate float64

	StateChange *observer.List[StateChange]
	TimeUpdate  *observer.List[mediatime.Seconds]
	ErrorChange *observer.List[ErrorEvent]
}

// New constructs an idle Controller.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:         cfg,
		fsm:         newMachine(),
		tracks:      track.New(),
		clock:       clock.New(),
		rate:        1.0,
		StateChange: observer.NewList[StateChange](),
		TimeUpdate:  observer.NewList[mediatime.Seconds](),
		ErrorChange: observer.NewList[ErrorEvent](),
	}
}

func (c *Controller) fire(ctx context.Context, event Event) error {
	from := c.fsm.State()
	to, err := c.fsm.Fire(ctx, event)
	if err != nil {
		return err
	}
	if to != from {
		c.StateChange.Emit(StateChange{From: from, To: to, Event: event})
		mcmetrics.StateTransitions.WithLabelValues(string(from), string(to), string(event)).Inc()
	}
	return nil
}

func (c *Controller) emitError(kind mcerrors.Kind, err error) {
	mclog.L().Error().Err(err).Str("kind", string(kind)).Msg("controller error")
	c.ErrorChange.Emit(ErrorEvent{Kind: kind, Message: err.Error()})
}

// Load opens source through io, enumerates tracks, and configures the
// initial video/audio decoders (spec.md §4.11 loading -> ready/error).
func (c *Controller) Load(ctx context.Context, io demux.IOCallbacks, bufBytes int) error {
	if err := c.fire(ctx, EventLoad); err != nil {
		return err
	}

	ctx, end := tracing.StartSpan(ctx, "controller.load")
	var loadErr error
	defer func() { end(&loadErr) }()

	c.demuxer = newDemuxer(bufBytes)
	streams, err := c.demuxer.Open(ctx, io)
	if err != nil {
		loadErr = err
		c.emitError(mcerrors.Kindof(err), err)
		_ = c.fire(ctx, EventFail)
		return err
	}
	c.tracks.SetTracks(streams)

	if v, ok := c.tracks.ActiveVideo(); ok {
		if err := c.configureVideo(v); err != nil {
			loadErr = err
			c.emitError(mcerrors.Kindof(err), err)
		}
	}
	if a, ok := c.tracks.ActiveAudio(); ok {
		if err := c.configureAudio(a); err != nil {
			loadErr = err
			c.emitError(mcerrors.Kindof(err), err)
		}
	}

	return c.fire(ctx, EventOpenOK)
}

func (c *Controller) configureVideo(t demux.StreamInfo) error {
	family := codec.FamilyOf(t.CodecName)
	useHW := hwcaps.IsReady(family)
	dec := c.cfg.Factories.NewVideoDecoder(useHW, c.onVideoFrame)
	err := dec.Configure(context.Background(), t, 0)
	if err != nil && useHW && c.cfg.Tuning.FallbackPolicy == mcconfig.FallbackAuto {
		dec = c.cfg.Factories.NewVideoDecoder(false, c.onVideoFrame)
		err = dec.Configure(context.Background(), t, 0)
	}
	if err != nil {
		return err
	}
	if c.videoDec != nil {
		c.videoDec.Close()
	}
	c.videoDec = dec
	return nil
}

func (c *Controller) configureAudio(t demux.StreamInfo) error {
	family := codec.FamilyOf(t.CodecName)
	useHW := hwcaps.IsReady(family)
	dec := c.cfg.Factories.NewAudioDecoder(useHW, c.onAudioFrame)
	err := dec.Configure(context.Background(), t, false)
	if err != nil && useHW && c.cfg.Tuning.FallbackPolicy == mcconfig.FallbackAuto {
		dec = c.cfg.Factories.NewAudioDecoder(false, c.onAudioFrame)
		err = dec.Configure(context.Background(), t, false)
	}
	if err != nil {
		return err
	}
	if c.audioDec != nil {
		c.audioDec.Close()
	}
	c.audioDec = dec
	return nil
}

// onVideoFrame enqueues a decoded frame, discarding frames decoded from
// the keyframe-before-target that precede an active seek/track-switch
// target (spec.md §4.11(5)(e)) until the first frame at or after the
// target arrives.
func (c *Controller) onVideoFrame(f video.Frame) {
	c.mu.Lock()
	if c.videoFloorActive {
		if f.PTS.Before(c.videoFloor) {
			c.mu.Unlock()
			mcmetrics.FramesDropped.WithLabelValues("seek_floor").Inc()
			return
		}
		c.videoFloorActive = false
	}
	c.videoQueue = append(c.videoQueue, f)
	if len(c.videoQueue) > c.cfg.Tuning.VideoQueueCap {
		c.videoQueue = c.videoQueue[1:]
		mcmetrics.FramesDropped.WithLabelValues("queue_cap").Inc()
	}
	mcmetrics.QueueDepth.WithLabelValues("video").Set(float64(len(c.videoQueue)))
	c.mu.Unlock()
}

func (c *Controller) onAudioFrame(f audio.Frame) {
	c.clock.ReportAudioPTS(f.PTS)
	c.cfg.AudioSink.Enqueue(f)
}

func (c *Controller) onCue(cue subtitle.Cue) {
	c.mu.Lock()
	c.cues = append(c.cues, subtitleCue{cue})
	c.mu.Unlock()
}

// Play transitions ready/paused/ended -> playing and starts the packet
// pump and presentation tick (spec.md §4.11). Resuming from ended issues
// the implicit seek(0) the FSM table documents for that edge.
func (c *Controller) Play(ctx context.Context) error {
	if c.fsm.State() == StateEnded {
		if err := c.seekCore(ctx, 0); err != nil {
			return err
		}
	}
	if err := c.fire(ctx, EventPlay); err != nil {
		return err
	}
	c.clock.Start(c.clock.CurrentMediaTime(), c.rate)
	c.startPump(ctx)
	c.startTick(ctx)
	return nil
}

// Pause transitions playing -> paused and stops the pump/tick.
func (c *Controller) Pause(ctx context.Context) error {
	if err := c.fire(ctx, EventPause); err != nil {
		return err
	}
	c.clock.Pause()
	c.stopPump()
	c.stopTick()
	return nil
}

// SetRate changes playback rate without interrupting the pump/tick
// (spec.md §4.10: "preserves current media time").
func (c *Controller) SetRate(rate float64) {
	c.rate = rate
	c.clock.SetRate(rate)
	c.cfg.AudioSink.SetRate(rate)
}

// startPump is idempotent: a second call while the pump is already running
// (or has not yet cleared pumpRunning after a natural EOF exit) is a no-op.
func (c *Controller) startPump(ctx context.Context) {
	if !c.pumpRunning.CompareAndSwap(false, true) {
		return
	}
	pumpCtx, cancel := context.WithCancel(ctx)
	c.pumpCancel = cancel
	c.pumpDone = make(chan struct{})
	go c.pumpLoop(pumpCtx)
}

func (c *Controller) stopPump() {
	if !c.pumpRunning.Load() {
		return
	}
	c.pumpCancel()
	<-c.pumpDone
}

func (c *Controller) pumpLoop(ctx context.Context) {
	defer func() {
		c.pumpRunning.Store(false)
		close(c.pumpDone)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		backpressured := len(c.videoQueue) >= c.cfg.Tuning.VideoQueueCap
		c.mu.Unlock()
		if backpressured {
			mcmetrics.BackpressureEvents.WithLabelValues("video").Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Millisecond):
			}
			continue
		}

		pkt, ok, err := c.demuxer.ReadPacket(ctx)
		if err != nil {
			c.emitError(mcerrors.Kindof(err), err)
			_ = c.fire(ctx, EventUnderflow)
			continue
		}
		if !ok {
			if c.cfg.Loop {
				if err := c.loopRestart(ctx); err != nil {
					return
				}
				continue
			}
			_ = c.fire(ctx, EventEOF)
			return
		}

		c.routePacket(ctx, pkt)
	}
}

func (c *Controller) routePacket(ctx context.Context, pkt *demux.Packet) {
	var err error
	switch {
	case isActiveVideo(c.tracks, pkt.StreamIndex):
		if c.videoDec != nil {
			err = c.videoDec.Decode(ctx, pkt.Bytes, pkt.PTS, pkt.DTS, pkt.Keyframe)
		}
	case isActiveAudio(c.tracks, pkt.StreamIndex):
		if c.audioDec != nil {
			err = c.audioDec.Decode(ctx, pkt.Bytes, pkt.PTS, pkt.DTS)
		}
	case isActiveSubtitle(c.tracks, pkt.StreamIndex):
		if c.subDec != nil {
			err = c.subDec.Decode(ctx, pkt.Bytes, pkt.PTS, pkt.Keyframe, pkt.Duration)
		}
	default:
		return // inactive track, drop
	}

	if err != nil {
		if c.contiguousDecodeErrors.Add(1) > int32(c.cfg.Tuning.DecodeErrorThreshold) {
			c.emitError(mcerrors.KindFatal, mcerrors.Of(mcerrors.ErrFatal, "contiguous decode error threshold exceeded"))
			_ = c.fire(ctx, EventFatal)
		}
		return
	}
	c.contiguousDecodeErrors.Store(0)
}

func isActiveVideo(t *track.Manager, streamIndex int) bool {
	v, ok := t.ActiveVideo()
	return ok && v.Index == streamIndex
}

func isActiveAudio(t *track.Manager, streamIndex int) bool {
	a, ok := t.ActiveAudio()
	return ok && a.Index == streamIndex
}

func isActiveSubtitle(t *track.Manager, streamIndex int) bool {
	s, ok := t.ActiveSubtitle()
	return ok && s.Index == streamIndex
}

// tickInterval approximates display cadence for the presentation tick.
const tickInterval = 16 * time.Millisecond

// startTick owns a context derived from ctx, independent of how long ctx
// itself lives, so stopTick can reliably end the goroutine rather than
// waiting on whatever cancellation the caller's context happens to have.
func (c *Controller) startTick(ctx context.Context) {
	if c.tickCancel != nil {
		return
	}
	tickCtx, cancel := context.WithCancel(ctx)
	c.tickCancel = cancel
	done := make(chan struct{})
	c.tickDone = done
	go func() {
		defer close(done)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

func (c *Controller) stopTick() {
	if c.tickCancel == nil {
		return
	}
	c.tickCancel()
	<-c.tickDone
	c.tickCancel = nil
	c.tickDone = nil
}

// tick implements the video presentation and subtitle scheduling
// responsibilities of spec.md §4.11 (points 2 and 4).
func (c *Controller) tick() {
	now := c.clock.CurrentMediaTime()
	c.TimeUpdate.Emit(now)

	c.mu.Lock()
	frame, rest, dropped := selectFrame(c.videoQueue, now)
	c.videoQueue = rest
	cue := activeCue(c.cues, now)
	c.mu.Unlock()

	for range dropped {
		mcmetrics.FramesDropped.WithLabelValues("behind_clock").Inc()
	}
	if frame != nil {
		c.clock.ReportVideoPTS(frame.PTS)
		c.cfg.VideoSink.Present(*frame)
	}

	c.applyCue(cue)
}

func (c *Controller) applyCue(cue *subtitleCue) {
	if cue == nil {
		if c.activeCue != nil {
			c.cfg.SubtitleSink.Clear()
			c.activeCue = nil
		}
		return
	}
	if c.activeCue != nil && c.activeCue.Start == cue.Start && c.activeCue.End == cue.End {
		return
	}
	c.activeCue = cue
	if cue.Image != nil {
		c.cfg.SubtitleSink.ShowImage(*cue.Image)
	} else {
		c.cfg.SubtitleSink.ShowText(cue.Text)
	}
}

// selectFrame returns the frame whose PTS <= now and whose successor's PTS
// > now (spec.md §4.11 point 2), the remaining queue, and how many stale
// frames (more than one frame-period behind the clock) were dropped.
func selectFrame(queue []video.Frame, now mediatime.Seconds) (*video.Frame, []video.Frame, []video.Frame) {
	if len(queue) == 0 || queue[0].PTS.After(now) {
		return nil, queue, nil
	}
	var dropped []video.Frame
	i := 0
	for i < len(queue)-1 && !queue[i+1].PTS.After(now) {
		dropped = append(dropped, queue[i])
		i++
	}
	selected := queue[i]
	return &selected, queue[i+1:], dropped
}

func activeCue(cues []subtitleCue, now mediatime.Seconds) *subtitleCue {
	for i := range cues {
		if cues[i].Start <= now && now <= cues[i].End {
			c := cues[i]
			return &c
		}
	}
	return nil
}

// errSeekSuperseded marks a seekCore call whose demux/clock work completed
// but was superseded by a later Seek before it could apply (seekGeneration
// fences the stale call's effects).
var errSeekSuperseded = errors.New("seek superseded by a later seek")

// seekCore performs the decoder-flush/demux-seek/clock-seek mechanics
// shared by Seek, the ended->playing implicit seek(0), and loop restart.
// It does not touch FSM state; callers own the surrounding transitions.
func (c *Controller) seekCore(ctx context.Context, target mediatime.Seconds) error {
	gen := c.seekGeneration.Add(1)

	ctx, end := tracing.StartSpan(ctx, "controller.seek")
	start := time.Now()
	var seekErr error
	defer func() {
		mcmetrics.SeekDuration.Observe(time.Since(start).Seconds())
		end(&seekErr)
	}()

	if c.videoDec != nil {
		c.videoDec.Flush()
		c.videoDec.Reset()
	}
	if c.audioDec != nil {
		c.audioDec.Flush()
		c.audioDec.Reset()
	}
	c.mu.Lock()
	c.videoQueue = nil
	c.cues = dropCuesBefore(c.cues, target)
	c.videoFloor = target
	c.videoFloorActive = true
	c.mu.Unlock()

	if err := c.demuxer.Seek(ctx, target, demux.AnyStream, demux.SeekBackward); err != nil {
		seekErr = err
		c.emitError(mcerrors.KindSeek, err)
		return err
	}
	if c.seekGeneration.Load() != gen {
		return errSeekSuperseded
	}
	c.clock.Seek(target)
	return nil
}

// Seek performs the full §4.11 point 5 sequence: pause the pump, flush
// decoders, demux-seek with BACKWARD bias, then restore the previous
// running/paused state. A seek in progress is superseded by calling Seek
// again.
func (c *Controller) Seek(ctx context.Context, target mediatime.Seconds) error {
	wasPlaying := c.fsm.State() == StatePlaying
	if err := c.fire(ctx, EventSeek); err != nil {
		return err
	}
	if wasPlaying {
		c.stopPump()
	}

	err := c.seekCore(ctx, target)
	if errors.Is(err, errSeekSuperseded) {
		return nil
	}
	if err != nil {
		_ = c.fire(ctx, EventSeekDone)
		return err
	}

	if err := c.fire(ctx, EventSeekDone); err != nil {
		return err
	}
	if wasPlaying {
		c.clock.Start(target, c.rate)
		c.startPump(ctx)
	}
	return nil
}

// loopRestart is called from within the pump goroutine itself on EOF when
// looping is enabled, so it must not call stopPump/startPump (those would
// deadlock waiting on the very goroutine invoking them). The FSM transits
// playing->ended->playing once per cycle rather than lingering in ended.
func (c *Controller) loopRestart(ctx context.Context) error {
	if err := c.seekCore(ctx, 0); err != nil {
		return err
	}
	if err := c.fire(ctx, EventEOF); err != nil {
		return err
	}
	if err := c.fire(ctx, EventPlay); err != nil {
		return err
	}
	c.clock.Start(0, c.rate)
	return nil
}

func dropCuesBefore(cues []subtitleCue, t mediatime.Seconds) []subtitleCue {
	out := cues[:0]
	for _, cue := range cues {
		if cue.End >= t {
			out = append(out, cue)
		}
	}
	return out
}

// SelectVideoTrack performs a track switch (spec.md §4.11 point 6): flush,
// close, reconfigure, then implicitly seek to the current media time.
func (c *Controller) SelectVideoTrack(ctx context.Context, id int) error {
	c.tracks.SelectVideo(id)
	t, ok := c.tracks.ActiveVideo()
	if !ok {
		return mcerrors.Of(mcerrors.ErrFatal, "select video track %d not found", id)
	}
	if err := c.configureVideo(t); err != nil {
		return err
	}
	return c.Seek(ctx, c.clock.CurrentMediaTime())
}

// SelectAudioTrack switches the active audio track (spec.md §4.11 point 6).
func (c *Controller) SelectAudioTrack(ctx context.Context, id int) error {
	c.tracks.SelectAudio(id)
	t, ok := c.tracks.ActiveAudio()
	if !ok {
		return mcerrors.Of(mcerrors.ErrFatal, "select audio track %d not found", id)
	}
	if err := c.configureAudio(t); err != nil {
		return err
	}
	return c.Seek(ctx, c.clock.CurrentMediaTime())
}

// SelectSubtitleTrack switches or disables subtitles.
func (c *Controller) SelectSubtitleTrack(ctx context.Context, id *int) error {
	c.tracks.SelectSubtitle(id)
	c.mu.Lock()
	c.cues = nil
	c.mu.Unlock()
	if id == nil {
		if c.subDec != nil {
			c.subDec.Close()
			c.subDec = nil
		}
		return nil
	}
	t, ok := c.tracks.ActiveSubtitle()
	if !ok {
		return mcerrors.Of(mcerrors.ErrFatal, "select subtitle track %d not found", *id)
	}
	dec := c.cfg.Factories.NewSubtitleDecoder(c.onCue)
	extradata, _ := c.demuxer.Extradata(ctx, t.Index)
	if !dec.Configure(ctx, t, extradata) {
		return mcerrors.Of(mcerrors.ErrUnsupportedCodec, "subtitle codec %s not compiled in", t.CodecName)
	}
	if c.subDec != nil {
		c.subDec.Close()
	}
	c.subDec = dec
	return nil
}

// Close releases all resources and resets to idle (spec.md §4.11: "*
// --close-> idle").
func (c *Controller) Close(ctx context.Context) {
	c.stopPump()
	c.stopTick()
	if c.videoDec != nil {
		c.videoDec.Close()
	}
	if c.audioDec != nil {
		c.audioDec.Close()
	}
	if c.subDec != nil {
		c.subDec.Close()
	}
	if c.demuxer != nil {
		c.demuxer.Close()
	}
	_ = c.fire(ctx, EventClose)
}

// State returns the controller's current FSM state.
func (c *Controller) State() State { return c.fsm.State() }
