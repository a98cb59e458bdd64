// Package preload implements the Preloader (spec.md §4.3): it drives the
// Chunk Cache, reading ahead of and behind the current logical playback
// position with an adaptive, re-centering window.
package preload

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/mediacore/playback/internal/cache"
	"github.com/mediacore/playback/internal/mclog"
	"github.com/mediacore/playback/internal/mcmetrics"
)

// Reader is the minimal source-reading surface the Preloader needs.
type Reader interface {
	Size(ctx context.Context) (uint64, error)
	Read(ctx context.Context, offset uint64, length uint32) ([]byte, error)
}

// Config mirrors the spec's named tuning constants (spec.md §4.3, §9:
// "the original comment suggests these are heuristics" — kept as literal
// defaults but overridable).
type Config struct {
	ChunkSize       int64
	AheadChunks     int
	BehindChunks    int
	StopUtilPercent float64
	// MaxReadsPerSecond bounds preload throughput so packet reads always
	// win contention for the underlying source; 0 disables the limiter.
	MaxReadsPerSecond float64
	// Concurrency bounds how many chunk reads may be in flight at once.
	Concurrency int64
}

// DefaultConfig returns spec.md's literal preload constants.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         2 << 20,
		AheadChunks:       20,
		BehindChunks:      5,
		StopUtilPercent:   95.0,
		MaxReadsPerSecond: 200,
		Concurrency:       4,
	}
}

// Preloader fills the ChunkCache around a moving logical position.
type Preloader struct {
	cfg       Config
	cache     *cache.ChunkCache
	reader    Reader
	sourceKey string

	mu            sync.Mutex
	preloadOffset int64 // -1 until first recentering
	fileSize      uint64

	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// New creates a Preloader for the given source/cache pair.
func New(cfg Config, cc *cache.ChunkCache, reader Reader, sourceKey string) *Preloader {
	var lim *rate.Limiter
	if cfg.MaxReadsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.MaxReadsPerSecond), 1)
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 1
	}
	return &Preloader{
		cfg:           cfg,
		cache:         cc,
		reader:        reader,
		sourceKey:     sourceKey,
		preloadOffset: -1,
		limiter:       lim,
		sem:           semaphore.NewWeighted(conc),
	}
}

// byteEstimate converts a media time into an estimated byte offset via
// linear interpolation over the source's full length (spec.md §4.3).
func byteEstimate(currentTime, duration float64, fileSize uint64) int64 {
	if duration <= 0 {
		return 0
	}
	frac := currentTime / duration
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return int64(frac * float64(fileSize))
}

// OnTimeUpdate is called by the controller on every presentation tick (or
// equivalent); it recenters the preload window if the estimate has
// drifted by at least one chunk from the last recentering.
func (p *Preloader) OnTimeUpdate(ctx context.Context, currentTime, duration float64) {
	size, err := p.reader.Size(ctx)
	if err != nil || size == 0 {
		return
	}

	estimate := byteEstimate(currentTime, duration, size)

	p.mu.Lock()
	p.fileSize = size
	drift := estimate - p.preloadOffset
	if drift < 0 {
		drift = -drift
	}
	needsRecenter := p.preloadOffset < 0 || drift >= p.cfg.ChunkSize
	if needsRecenter {
		p.preloadOffset = estimate
	}
	offset := p.preloadOffset
	p.mu.Unlock()

	if needsRecenter {
		go p.fill(ctx, offset)
	}
}

// fill fans out the ahead/behind chunk reads for one recentering as
// concurrent errgroup goroutines, each bounded by the semaphore acquired
// in readChunk (spec.md §4.3). A chunk that's a cache hit or would push
// past the utilization stop threshold is skipped before it's scheduled,
// not after, so the fan-out itself only ever carries real misses.
func (p *Preloader) fill(ctx context.Context, centerOffset int64) {
	logger := mclog.WithComponent("preload")
	chunkSize := p.cfg.ChunkSize

	g, gctx := errgroup.WithContext(ctx)

	fillDirection := func(direction string, start int64, count int, step int64) {
		for i := 0; i < count; i++ {
			if p.cache.Utilization() >= p.cfg.StopUtilPercent {
				return
			}
			offset := start + step*int64(i)
			if offset < 0 {
				return
			}
			if uint64(offset) >= p.fileSize {
				return
			}
			length := chunkSize
			if remaining := int64(p.fileSize) - offset; remaining < length {
				length = remaining
			}
			if length <= 0 {
				continue
			}

			if _, ok := p.cache.Get(p.sourceKey, uint64(offset), uint32(length)); ok {
				continue // already cached; cooperative skip
			}

			off, ln := offset, uint32(length)
			g.Go(func() error {
				p.readChunk(gctx, off, ln, direction)
				return nil
			})
		}
	}

	fillDirection("ahead", centerOffset, p.cfg.AheadChunks, chunkSize)
	fillDirection("behind", centerOffset-chunkSize, p.cfg.BehindChunks, -chunkSize)

	_ = g.Wait()

	logger.Debug().Int64("center", centerOffset).Msg("preload window filled")
}

// CachedReader serves reads from cc when a chunk exactly covers the
// requested range, falling back to reader and populating cc on miss.
// It is the Read callback demux.IOCallbacks uses once a Preloader has
// started warming the same ChunkCache ahead of the playback position.
type CachedReader struct {
	cc        *cache.ChunkCache
	reader    Reader
	sourceKey string
}

// NewCachedReader builds a CachedReader over the same cache/reader/key
// triple a Preloader was constructed with.
func NewCachedReader(cc *cache.ChunkCache, reader Reader, sourceKey string) *CachedReader {
	return &CachedReader{cc: cc, reader: reader, sourceKey: sourceKey}
}

func (c *CachedReader) Size(ctx context.Context) (uint64, error) { return c.reader.Size(ctx) }

// Read checks the cache first; a miss reads through and backfills cc so
// a subsequent request for the same range is served without I/O.
func (c *CachedReader) Read(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	if data, ok := c.cc.Get(c.sourceKey, offset, length); ok {
		return data, nil
	}
	data, err := c.reader.Read(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	c.cc.Set(c.sourceKey, offset, uint32(len(data)), data)
	return data, nil
}

func (p *Preloader) readChunk(ctx context.Context, offset int64, length uint32, direction string) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	bytes, err := p.reader.Read(ctx, uint64(offset), length)
	if err != nil {
		// Failure does not abort the pipeline: log and retry on next
		// miss (spec.md §4.3).
		mcmetrics.PreloadReadErrors.WithLabelValues(p.sourceKey).Inc()
		mclog.WithComponent("preload").Warn().Err(err).Int64("offset", offset).Msg("preload read failed, will retry on next miss")
		return
	}
	p.cache.Set(p.sourceKey, uint64(offset), uint32(len(bytes)), bytes)
	mcmetrics.PreloadChunksFilled.WithLabelValues(direction).Inc()
}
