// Command eventbridge runs a Playback Controller against a local file and
// relays its state/time/error events to websocket subscribers at /events,
// demonstrating internal/eventbridge against gorilla/websocket. Optional
// embedder convenience, not part of the core playback contract.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mediacore/playback/internal/cache"
	"github.com/mediacore/playback/internal/controller"
	"github.com/mediacore/playback/internal/decode/audio"
	"github.com/mediacore/playback/internal/decode/subtitle"
	"github.com/mediacore/playback/internal/decode/video"
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/eventbridge"
	"github.com/mediacore/playback/internal/mcconfig"
	"github.com/mediacore/playback/internal/mediatime"
	"github.com/mediacore/playback/internal/preload"
	"github.com/mediacore/playback/internal/sink"
	"github.com/mediacore/playback/internal/source"
)

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

var _ sink.VideoSink = discardVideoSink{}
var _ sink.AudioSink = discardAudioSink{}
var _ sink.SubtitleSink = discardSubtitleSink{}

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	file := flag.String("file", "", "path to the file to play and relay events for")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if *file == "" {
		log.Fatal().Msg("eventbridge: -file is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

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

	hub := eventbridge.NewHub(c, log)
	go hub.Run()
	defer hub.Close()

	handle, err := source.OpenFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("eventbridge: open file")
	}
	defer handle.Close()

	cc, err := cache.New(mcconfig.Default().CacheMaxBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("eventbridge: construct chunk cache")
	}
	defer cc.Close()

	sourceKey := handle.Key().String()
	cached := preload.NewCachedReader(cc, handle, sourceKey)
	pl := preload.New(preload.DefaultConfig(), cc, handle, sourceKey)

	io := demux.IOCallbacks{Read: cached.Read, Seek: handle.Seek, Size: handle.Size}
	if err := c.Load(ctx, io, mcconfig.Default().NativePacketBufBytes); err != nil {
		log.Fatal().Err(err).Msg("eventbridge: load")
	}

	probe := demux.New(mcconfig.Default().NativePacketBufBytes)
	var duration mediatime.Seconds
	if _, err := probe.Open(ctx, demux.IOCallbacks{Read: handle.Read, Seek: handle.Seek, Size: handle.Size}); err == nil {
		duration, _ = probe.Duration(ctx)
	}
	probe.Close()

	c.TimeUpdate.Subscribe(func(pos mediatime.Seconds) {
		pl.OnTimeUpdate(ctx, float64(pos), float64(duration))
	})

	if err := c.Play(ctx); err != nil {
		log.Fatal().Err(err).Msg("eventbridge: play")
	}

	r := chi.NewRouter()
	r.Get("/events", hub.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	srv := &http.Server{Addr: *addr, Handler: r}
	go func() {
		log.Info().Str("addr", *addr).Msg("eventbridge: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("eventbridge: server error")
		}
	}()

	<-ctx.Done()
	_ = srv.Shutdown(context.Background())
}
