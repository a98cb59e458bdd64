//go:build !cgo
// +build !cgo

package demux

import (
	"context"

	"github.com/mediacore/playback/internal/mcerrors"
)

// stubNative reports ErrNativeUnavailable for every operation, mirroring
// the teacher's rust_nocgo.go fallback so the package still compiles (and
// fails predictably at runtime) when built with CGO_ENABLED=0.
type stubNative struct{}

func init() {
	newNative = func() native { return &stubNative{} }
}

func (s *stubNative) Open(ctx context.Context, io IOCallbacks) (int, error) {
	return 0, mcerrors.ErrNativeUnavailable
}

func (s *stubNative) StreamInfo(ctx context.Context, index int) (StreamInfo, error) {
	return StreamInfo{}, mcerrors.ErrNativeUnavailable
}

func (s *stubNative) Extradata(ctx context.Context, index int) ([]byte, error) {
	return nil, mcerrors.ErrNativeUnavailable
}

func (s *stubNative) Duration(ctx context.Context) (float64, error) {
	return 0, mcerrors.ErrNativeUnavailable
}

func (s *stubNative) StartTime(ctx context.Context) (float64, error) {
	return 0, mcerrors.ErrNativeUnavailable
}

func (s *stubNative) FormatName(ctx context.Context) (string, error) {
	return "", mcerrors.ErrNativeUnavailable
}

func (s *stubNative) MetadataTitle(ctx context.Context) (string, error) {
	return "", mcerrors.ErrNativeUnavailable
}

func (s *stubNative) Seek(ctx context.Context, timestamp float64, streamIndex int, flags SeekFlags) error {
	return mcerrors.ErrNativeUnavailable
}

func (s *stubNative) ReadPacket(ctx context.Context, buf []byte) (PacketInfo, int, error) {
	return PacketInfo{}, 0, mcerrors.ErrNativeUnavailable
}

func (s *stubNative) Destroy() {}
