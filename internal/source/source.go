// Package source implements the Source Adapter contract (spec.md §4.1):
// abstract byte-range reads over an opaque, byte-addressable origin.
package source

import (
	"context"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Handle is a byte-addressable, range-readable origin. Implementations
// must tolerate concurrent calls to Read from both the demuxer's foreign
// I/O callback path and in-flight preload reads (spec.md §4.1).
type Handle interface {
	// Size returns the total byte length of the source. Finalized on
	// first call for sources whose length can change (spec.md §3 treats
	// size as fixed once the source handle is created; see File for the
	// live-growing exception).
	Size(ctx context.Context) (uint64, error)

	// Read returns exactly the bytes in [offset, offset+length), or fewer
	// only at end of source. It must not return a short read except at
	// EOF; transport failures are wrapped in mcerrors.ErrSourceIO.
	Read(ctx context.Context, offset uint64, length uint32) ([]byte, error)

	// Seek is an optional hint for upcoming reads. Implementations that
	// do not benefit from it may make it a no-op; callers must tolerate
	// that.
	Seek(ctx context.Context, offset uint64) error

	// Close releases any resources held by the source.
	Close() error
}

// Key identifies a source for cache partitioning (spec.md §3: "Identity =
// (kind, locator)").
type Key struct {
	Kind    string // "file" or "http"
	Locator string // file: name; http: URL
	Size    int64  // file: size; 0 for http (unknown until first Size call)
	ModTime int64  // file: mtime unix nanos; 0 for http
}

// String renders the key as a cache partition identifier: the identity
// tuple hashed with xxhash so cache keys stay a fixed, short width
// regardless of locator length (spec.md §3).
func (k Key) String() string {
	d := xxhash.New()
	_, _ = d.WriteString(k.Kind)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(k.Locator)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(k.Size, 10))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(k.ModTime, 10))
	return strconv.FormatUint(d.Sum64(), 16)
}

var _ io.Closer = Handle(nil)
