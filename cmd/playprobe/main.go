// Command playprobe opens a media source, prints its enumerated tracks
// (codec, resolution, HDR color info) as JSON, and optionally drives a
// headless playback simulation against discarding sinks to exercise the
// Playback Controller end to end without a real renderer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/mediacore/playback/internal/cache"
	"github.com/mediacore/playback/internal/controller"
	"github.com/mediacore/playback/internal/decode/audio"
	"github.com/mediacore/playback/internal/decode/subtitle"
	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mcconfig"
	"github.com/mediacore/playback/internal/mediatime"
	"github.com/mediacore/playback/internal/preload"
	"github.com/mediacore/playback/internal/source"
)

func main() {
	app := &cli.Command{
		Name:  "playprobe",
		Usage: "open a media source, print track/codec/HDR info, optionally simulate playback",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "http(s) source URL, overrides the positional file path"},
			&cli.DurationFlag{Name: "simulate", Usage: "run a headless playback simulation for this long (e.g. 5s)"},
		},
		ArgsUsage: "<file>",
		Action:    run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "playprobe:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	openHandle := func() (source.Handle, error) {
		if u := cmd.String("url"); u != "" {
			return source.NewHTTP(u, nil), nil
		}
		if cmd.Args().Len() != 1 {
			return nil, fmt.Errorf("expected exactly one file argument or --url")
		}
		return source.OpenFile(cmd.Args().First())
	}

	handle, err := openHandle()
	if err != nil {
		return err
	}

	dmx := demux.New(mcconfig.Default().NativePacketBufBytes)
	streams, err := dmx.Open(ctx, demux.IOCallbacks{Read: handle.Read, Seek: handle.Seek, Size: handle.Size})
	dmx.Close()
	_ = handle.Close()
	if err != nil {
		return fmt.Errorf("open container: %w", err)
	}

	if err := printStreams(streams); err != nil {
		return err
	}

	if d := cmd.Duration("simulate"); d > 0 {
		sourceKey := cmd.String("url")
		if sourceKey == "" {
			sourceKey = cmd.Args().First()
		}
		return simulate(ctx, openHandle, sourceKey, d)
	}
	return nil
}

type streamSummary struct {
	Index      int     `json:"index"`
	Kind       string  `json:"kind"`
	Codec      string  `json:"codec"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FrameRate  float64 `json:"frameRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Language   string  `json:"language,omitempty"`
	Primaries  string  `json:"colorPrimaries,omitempty"`
	Transfer   string  `json:"colorTransfer,omitempty"`
	Matrix     string  `json:"colorMatrix,omitempty"`
}

func printStreams(streams []demux.StreamInfo) error {
	out := make([]streamSummary, 0, len(streams))
	for _, s := range streams {
		out = append(out, streamSummary{
			Index:      s.Index,
			Kind:       kindName(s.Kind),
			Codec:      s.CodecName,
			Width:      s.Width,
			Height:     s.Height,
			FrameRate:  s.FrameRate,
			Channels:   s.Channels,
			SampleRate: s.SampleRate,
			Language:   s.Language,
			Primaries:  s.Color.Primaries,
			Transfer:   s.Color.Transfer,
			Matrix:     s.Color.Matrix,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func kindName(k demux.StreamKind) string {
	switch k {
	case demux.StreamVideo:
		return "video"
	case demux.StreamAudio:
		return "audio"
	case demux.StreamSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// discardVideoSink, discardAudioSink, discardSubtitleSink satisfy
// internal/sink's contracts with no-op bodies, letting the simulation
// exercise the full controller pump/tick/clock path headlessly.
type discardVideoSink struct{}

func (discardVideoSink) Present(video.Frame) {}

type discardAudioSink struct{}

func (discardAudioSink) Enqueue(audio.Frame)                    {}
func (discardAudioSink) SetMuted(bool)                          {}
func (discardAudioSink) SetVolume(float64)                      {}
func (discardAudioSink) SetRate(float64)                        {}
func (discardAudioSink) GetLastScheduledPTS() mediatime.Seconds { return 0 }

type discardSubtitleSink struct{}

func (discardSubtitleSink) ShowText(string)             {}
func (discardSubtitleSink) ShowImage(subtitle.ImageCue) {}
func (discardSubtitleSink) Clear()                      {}

func simulate(ctx context.Context, openHandle func() (source.Handle, error), sourceKey string, d time.Duration) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	handle, err := openHandle()
	if err != nil {
		return fmt.Errorf("simulate: reopen source: %w", err)
	}
	defer handle.Close()

	cc, err := cache.New(mcconfig.Default().CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("simulate: construct chunk cache: %w", err)
	}
	defer cc.Close()

	cached := preload.NewCachedReader(cc, handle, sourceKey)
	pl := preload.New(preload.DefaultConfig(), cc, handle, sourceKey)

	probe := demux.New(mcconfig.Default().NativePacketBufBytes)
	var duration mediatime.Seconds
	if _, err := probe.Open(ctx, demux.IOCallbacks{Read: handle.Read, Seek: handle.Seek, Size: handle.Size}); err == nil {
		duration, _ = probe.Duration(ctx)
	}
	probe.Close()

	c := controller.New(controller.Config{
		Tuning:       mcconfig.Default(),
		VideoSink:    discardVideoSink{},
		AudioSink:    discardAudioSink{},
		SubtitleSink: discardSubtitleSink{},
		Factories: controller.DecoderFactories{
			NewVideoDecoder: func(hw bool, onFrame video.OnFrame) video.Decoder {
				return video.NewSoftware(video.NewNativeBackend(), onFrame)
			},
			NewAudioDecoder: func(hw bool, onData audio.OnData) audio.Decoder {
				return audio.NewSoftware(audio.NewNativeBackend(), onData)
			},
			NewSubtitleDecoder: func(onCue subtitle.OnCue) *subtitle.Decoder {
				return subtitle.New(subtitle.NewNativeBackend(), onCue, "utf-8")
			},
		},
	})
	defer c.Close(ctx)

	c.StateChange.Subscribe(func(ev controller.StateChange) {
		log.Info().Str("from", string(ev.From)).Str("to", string(ev.To)).Str("event", string(ev.Event)).Msg("state")
	})
	c.ErrorChange.Subscribe(func(ev controller.ErrorEvent) {
		log.Error().Str("kind", string(ev.Kind)).Str("message", ev.Message).Msg("error")
	})
	c.TimeUpdate.Subscribe(func(pos mediatime.Seconds) {
		log.Debug().Float64("position", float64(pos)).Msg("time")
		pl.OnTimeUpdate(ctx, float64(pos), float64(duration))
	})

	io := demux.IOCallbacks{Read: cached.Read, Seek: handle.Seek, Size: handle.Size}
	if err := c.Load(ctx, io, mcconfig.Default().NativePacketBufBytes); err != nil {
		return fmt.Errorf("simulate: load: %w", err)
	}
	if err := c.Play(ctx); err != nil {
		return fmt.Errorf("simulate: play: %w", err)
	}

	simCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	<-simCtx.Done()
	return nil
}
