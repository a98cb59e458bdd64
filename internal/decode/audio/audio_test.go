package audio

import (
	"context"
	"testing"

	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mediatime"
)

type fakeBackend struct {
	needsMoreInput bool
	closed         bool
}

func (f *fakeBackend) Configure(track demux.StreamInfo, downmixStereo bool) error { return nil }

func (f *fakeBackend) Submit(data []byte, pts, dts mediatime.Seconds) (Frame, bool, error) {
	if f.needsMoreInput {
		f.needsMoreInput = false
		return Frame{}, false, nil
	}
	return Frame{PTS: pts, Format: Float32Planar, Channels: 2, SampleRate: 48000, Planes: [][]byte{data}}, true, nil
}

func (f *fakeBackend) Flush() []Frame { return nil }
func (f *fakeBackend) Close()         { f.closed = true }

func TestSoftware_DecodeEmitsOnReadyFrame(t *testing.T) {
	backend := &fakeBackend{}
	var got *Frame
	s := NewSoftware(backend, func(f Frame) { got = &f })

	if err := s.Configure(context.Background(), demux.StreamInfo{CodecName: "aac"}, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := s.Decode(context.Background(), []byte{1, 2}, 1.0, 1.0); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got == nil {
		t.Fatal("expected a frame to be emitted")
	}
	if got.Channels != 2 || got.SampleRate != 48000 {
		t.Errorf("unexpected frame metadata: %+v", got)
	}
}

func TestSoftware_NeedsMoreInputEmitsNothing(t *testing.T) {
	backend := &fakeBackend{needsMoreInput: true}
	called := false
	s := NewSoftware(backend, func(f Frame) { called = true })

	if err := s.Configure(context.Background(), demux.StreamInfo{CodecName: "aac"}, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := s.Decode(context.Background(), []byte{1}, 0, 0); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if called {
		t.Error("expected no frame emission when backend needs more input")
	}
}

func TestSoftware_Close(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSoftware(backend, func(Frame) {})
	s.Close()
	if !backend.closed {
		t.Error("expected backend.Close to be called")
	}
}
