// Package mcmetrics defines the Prometheus instrumentation emitted by every
// pipeline stage, grounded on the teacher's promauto counter/histogram
// idiom (internal/metrics/transcoder.go).
package mcmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits / CacheMisses track chunk cache lookups.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_cache_hits_total",
		Help: "Total chunk cache hits",
	}, []string{"source"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_cache_misses_total",
		Help: "Total chunk cache misses",
	}, []string{"source"})

	CacheUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediacore_cache_utilization_percent",
		Help: "Percent of the chunk cache's byte budget currently in use",
	}, []string{"source"})

	// PreloadChunksFilled counts chunks filled by the preloader per direction.
	PreloadChunksFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_preload_chunks_filled_total",
		Help: "Chunks filled by the preloader",
	}, []string{"direction"})

	PreloadReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_preload_read_errors_total",
		Help: "Preload reads that failed and were deferred to next miss",
	}, []string{"source"})

	// DecodeErrors tracks per-packet decode failures by stream kind.
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_decode_errors_total",
		Help: "Per-packet decode errors",
	}, []string{"stream", "decoder"})

	FramesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_frames_emitted_total",
		Help: "Decoded frames emitted by a decoder",
	}, []string{"stream", "decoder"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_frames_dropped_total",
		Help: "Video frames dropped before presentation, by reason",
	}, []string{"reason"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediacore_decoder_queue_depth",
		Help: "Current queued frame/byte count per decoder",
	}, []string{"stream"})

	BackpressureEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_backpressure_events_total",
		Help: "Times the packet pump paused reading due to backpressure",
	}, []string{"stream"})

	SeekDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediacore_seek_duration_seconds",
		Help:    "Wall time from seek() call to first displayed post-seek frame",
		Buckets: prometheus.ExponentialBuckets(0.005, 2.0, 12),
	})

	AVDriftSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediacore_av_drift_seconds",
		Help:    "Absolute difference between displayed video PTS and audio last-scheduled PTS",
		Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 10),
	})

	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacore_controller_state_transitions_total",
		Help: "Controller FSM transitions",
	}, []string{"from", "to", "event"})
)
