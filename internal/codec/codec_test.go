package codec

import "testing"

func TestFamilyOf(t *testing.T) {
	cases := map[string]Family{
		"H264":      H264,
		"avc1":      H264,
		"hev1":      HEVC,
		"h265":      HEVC,
		"opus":      Opus,
		"tx3g":      MovText,
		"made_up":   Unknown,
		"  vorbis ": Vorbis,
	}
	for in, want := range cases {
		if got := FamilyOf(in); got != want {
			t.Errorf("FamilyOf(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestClassifySubtitle(t *testing.T) {
	if ClassifySubtitle(PGS) != SubtitleImage {
		t.Error("PGS should classify as image")
	}
	if ClassifySubtitle(DVDSub) != SubtitleImage {
		t.Error("DVDSub should classify as image")
	}
	if ClassifySubtitle(SubRip) != SubtitleText {
		t.Error("SubRip should classify as text")
	}
	if ClassifySubtitle(WebVTT) != SubtitleText {
		t.Error("WebVTT should classify as text")
	}
}

func TestCodecStringHEVC(t *testing.T) {
	s := CodecString(HEVC, 1, 120)
	if s == "" {
		t.Fatal("empty codec string")
	}
}

func TestNormalizeColorAliasRemap(t *testing.T) {
	c := NormalizeColor("bt2020", "smpte2084", "bt2020nc")
	if c.Matrix != MatrixBT2020NCL {
		t.Errorf("bt2020nc should remap to bt2020-ncl, got %v", c.Matrix)
	}
	c2 := NormalizeColor("bt2020", "smpte2084", "bt2020c")
	if c2.Matrix != MatrixBT2020CL {
		t.Errorf("bt2020c should remap to bt2020-cl, got %v", c2.Matrix)
	}
}

func TestNormalizeColorUnknownIsAbsent(t *testing.T) {
	c := NormalizeColor("made-up", "", "")
	if c.Primaries != "" {
		t.Errorf("unrecognized primaries should map to absent, got %v", c.Primaries)
	}
}

func TestIsHDR(t *testing.T) {
	if !IsHDR(Color{Transfer: TransferSMPTE2084}) {
		t.Error("smpte2084 transfer should be HDR")
	}
	if !IsHDR(Color{Primaries: PrimariesBT2020}) {
		t.Error("bt2020 primaries should be HDR")
	}
	if IsHDR(Color{Primaries: PrimariesBT709, Transfer: TransferBT709}) {
		t.Error("bt709/bt709 should not be HDR")
	}
}

func TestInferHDR_ReportedTakesPrecedence(t *testing.T) {
	reported := Color{Primaries: PrimariesBT2020, Transfer: TransferSMPTE2084, Matrix: MatrixBT2020NCL}
	c, hdr := InferHDR(reported, 3840, 2160, false, nil, nil)
	if !hdr || c != reported {
		t.Errorf("expected reported HDR color to pass through unchanged, got %+v hdr=%v", c, hdr)
	}
}

func TestInferHDR_MislabeledBT709At4KProbesExtradata(t *testing.T) {
	probe := func(extradata []byte) (Color, bool) {
		return Color{Primaries: PrimariesBT2020, Transfer: TransferSMPTE2084, Matrix: MatrixBT2020NCL}, true
	}
	reported := Color{Primaries: PrimariesBT709, Transfer: TransferBT709}
	c, hdr := InferHDR(reported, 3840, 2160, false, []byte{1, 2, 3}, probe)
	if !hdr || c.Primaries != PrimariesBT2020 {
		t.Errorf("expected extradata probe result, got %+v hdr=%v", c, hdr)
	}
}

func TestInferHDR_FallsBackToHDR10Default(t *testing.T) {
	reported := Color{Primaries: PrimariesBT709, Transfer: TransferBT709}
	c, hdr := InferHDR(reported, 3840, 2160, true, nil, nil)
	if !hdr || c != HDR10Default {
		t.Errorf("expected HDR10 default fallback, got %+v hdr=%v", c, hdr)
	}
}

func TestInferHDR_NonHDRBelow4KStaysAsReported(t *testing.T) {
	reported := Color{Primaries: PrimariesBT709, Transfer: TransferBT709}
	c, hdr := InferHDR(reported, 1920, 1080, false, nil, nil)
	if hdr || c != reported {
		t.Errorf("expected non-HDR passthrough at 1080p, got %+v hdr=%v", c, hdr)
	}
}
