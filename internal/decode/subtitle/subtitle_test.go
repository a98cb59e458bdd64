package subtitle

import (
	"context"
	"testing"

	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/mediatime"
)

type fakeBackend struct {
	cue       Cue
	hasCue    bool
	freed     bool
	closed    bool
	configure bool
}

func (f *fakeBackend) Configure(track demux.StreamInfo, extradata []byte) bool { return f.configure }

func (f *fakeBackend) Submit(data []byte, pts mediatime.Seconds, keyframe bool, duration mediatime.Seconds) (Cue, bool, error) {
	return f.cue, f.hasCue, nil
}

func (f *fakeBackend) FreeSubtitle() { f.freed = true }
func (f *fakeBackend) Close()        { f.closed = true }

func TestDecoder_DecodeDeliversTextCue(t *testing.T) {
	backend := &fakeBackend{configure: true, hasCue: true, cue: Cue{Start: 1, End: 2, Text: "hello"}}
	var got Cue
	d := New(backend, func(c Cue) { got = c }, "")

	if !d.Configure(context.Background(), demux.StreamInfo{CodecName: "subrip"}, nil) {
		t.Fatal("expected configure to succeed")
	}
	if err := d.Decode(context.Background(), []byte("x"), 1, true, 1); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("expected cue text 'hello', got %q", got.Text)
	}
	if !backend.freed {
		t.Error("expected FreeSubtitle to be called after delivering the cue")
	}
}

func TestDecoder_NoCueNoCallback(t *testing.T) {
	backend := &fakeBackend{configure: true, hasCue: false}
	called := false
	d := New(backend, func(c Cue) { called = true }, "")

	d.Configure(context.Background(), demux.StreamInfo{CodecName: "subrip"}, nil)
	if err := d.Decode(context.Background(), []byte("x"), 1, true, 1); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if called {
		t.Error("expected no cue callback when backend produced nothing")
	}
}

func TestNormalizeToUTF8(t *testing.T) {
	if got := normalizeToUTF8("already utf8", "windows-1252"); got != "already utf8" {
		t.Errorf("expected passthrough for valid utf8, got %q", got)
	}
	if got := normalizeToUTF8("text", "unknown-charset"); got != "text" {
		t.Errorf("expected passthrough for unrecognized charset, got %q", got)
	}
}
