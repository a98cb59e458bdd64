package codec

import "strings"

// Primaries is the normalized color-primaries vocabulary (spec.md §4.5).
type Primaries string

const (
	PrimariesBT709    Primaries = "bt709"
	PrimariesBT2020   Primaries = "bt2020"
	PrimariesBT470BG  Primaries = "bt470bg"
	PrimariesSMPTE170 Primaries = "smpte170m"
)

// Transfer is the normalized transfer-characteristics vocabulary.
type Transfer string

const (
	TransferBT709     Transfer = "bt709"
	TransferSMPTE170  Transfer = "smpte170m"
	TransferSMPTE2084 Transfer = "smpte2084"
	TransferARIBB67   Transfer = "arib-std-b67"
	TransferLinear    Transfer = "linear"
	TransferIEC61966  Transfer = "iec61966-2-1"
)

// Matrix is the normalized color-matrix vocabulary.
type Matrix string

const (
	MatrixBT709     Matrix = "bt709"
	MatrixBT2020NCL Matrix = "bt2020-ncl"
	MatrixBT2020CL  Matrix = "bt2020-cl"
	MatrixSMPTE170  Matrix = "smpte170m"
	MatrixBT470BG   Matrix = "bt470bg"
)

// Color is the normalized color triple attached to a video StreamInfo.
type Color struct {
	Primaries Primaries
	Transfer  Transfer
	Matrix    Matrix
}

var primariesAliases = map[string]Primaries{
	"bt709": PrimariesBT709, "bt2020": PrimariesBT2020,
	"bt470bg": PrimariesBT470BG, "smpte170m": PrimariesSMPTE170,
}

var transferAliases = map[string]Transfer{
	"bt709": TransferBT709, "smpte170m": TransferSMPTE170,
	"smpte2084": TransferSMPTE2084, "arib-std-b67": TransferARIBB67,
	"linear": TransferLinear, "iec61966-2-1": TransferIEC61966,
}

var matrixAliases = map[string]Matrix{
	"bt709": MatrixBT709, "bt2020nc": MatrixBT2020NCL, "bt2020-ncl": MatrixBT2020NCL,
	"bt2020c": MatrixBT2020CL, "bt2020-cl": MatrixBT2020CL,
	"smpte170m": MatrixSMPTE170, "bt470bg": MatrixBT470BG,
}

// NormalizeColor maps container-reported primaries/transfer/matrix names to
// the fixed vocabularies in spec.md §4.5. Unrecognized inputs map to the
// zero value (absent), never to a guessed vocabulary member.
func NormalizeColor(primaries, transfer, matrix string) Color {
	return Color{
		Primaries: primariesAliases[strings.ToLower(strings.TrimSpace(primaries))],
		Transfer:  transferAliases[strings.ToLower(strings.TrimSpace(transfer))],
		Matrix:    matrixAliases[strings.ToLower(strings.TrimSpace(matrix))],
	}
}

// HDR10Default is applied when a 10-bit HEVC track reports no usable color
// metadata at all (spec.md §4.5's last-resort default).
var HDR10Default = Color{
	Primaries: PrimariesBT2020,
	Transfer:  TransferSMPTE2084,
	Matrix:    MatrixBT2020NCL,
}

// ExtradataProbe is implemented by a codec-specific heuristic parser
// (VUI/SPS for HEVC) that recovers color metadata the container omitted.
// It returns ok=false when nothing could be recovered.
type ExtradataProbe func(extradata []byte) (Color, bool)

// IsHDR reports whether color is an HDR triple: transfer in
// {smpte2084, arib-std-b67}, or primaries == bt2020 (spec.md §4.5).
func IsHDR(c Color) bool {
	switch c.Transfer {
	case TransferSMPTE2084, TransferARIBB67:
		return true
	}
	return c.Primaries == PrimariesBT2020
}

// InferHDR implements the full §4.5 HDR-detection heuristic chain: use the
// container's reported color as-is; if it claims bt709 at >=4K resolution
// (a common container mislabel for HDR masters), consult probe on
// extradata; if that still yields nothing and the track is a 10-bit HEVC
// profile, fall back to HDR10Default.
func InferHDR(reported Color, width, height int, is10BitHEVC bool, extradata []byte, probe ExtradataProbe) (Color, bool) {
	if reported.Primaries != "" || reported.Transfer != "" {
		if reported.Primaries != PrimariesBT709 || width < 3840 || height < 2160 {
			return reported, IsHDR(reported)
		}
	}

	if probe != nil {
		if c, ok := probe(extradata); ok {
			return c, IsHDR(c)
		}
	}

	if is10BitHEVC {
		return HDR10Default, true
	}

	return reported, false
}
