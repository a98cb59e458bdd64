package hwcaps

import (
	"testing"

	"github.com/mediacore/playback/internal/codec"
)

func TestIsReady_FailClosedBeforePreflight(t *testing.T) {
	Reset()
	if IsReady(codec.HEVC) {
		t.Fatal("expected fail-closed before any preflight has run")
	}
}

func TestIsReady_AfterPreflight(t *testing.T) {
	Reset()
	SetPreflightResult(map[codec.Family]bool{codec.HEVC: true, codec.AV1: false})
	if !IsReady(codec.HEVC) {
		t.Error("expected hevc ready after passing preflight")
	}
	if IsReady(codec.AV1) {
		t.Error("expected av1 not ready after failing preflight")
	}
	if IsReady(codec.H264) {
		t.Error("expected unprobed codec to remain not ready")
	}
}

func TestSetPreflightResult_NilClears(t *testing.T) {
	Reset()
	SetPreflightResult(map[codec.Family]bool{codec.HEVC: true})
	SetPreflightResult(nil)
	if IsReady(codec.HEVC) {
		t.Error("expected nil preflight result to clear prior state")
	}
}
