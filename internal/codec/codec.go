// Package codec maps the demuxer's internal codec names and color metadata
// onto the canonical vocabularies the rest of the pipeline speaks (spec.md
// §4.5): codec family, host-decoder-style codec strings, color
// normalization, and HDR inference.
package codec

import "strings"

// Family is the canonical codec identity the rest of the pipeline keys on.
type Family string

const (
	H264    Family = "h264"
	HEVC    Family = "hevc"
	VP8     Family = "vp8"
	VP9     Family = "vp9"
	AV1     Family = "av1"
	MPEG4   Family = "mpeg4"
	Theora  Family = "theora"
	AAC     Family = "aac"
	MP3     Family = "mp3"
	Opus    Family = "opus"
	FLAC    Family = "flac"
	Vorbis  Family = "vorbis"
	AC3     Family = "ac3"
	EAC3    Family = "eac3"
	DTS     Family = "dts"
	PCM     Family = "pcm"
	SubRip  Family = "subrip"
	ASS     Family = "ass"
	SSA     Family = "ssa"
	WebVTT  Family = "webvtt"
	PGS     Family = "pgs"
	DVDSub  Family = "dvd-sub"
	DVBSub  Family = "dvb-sub"
	MovText Family = "mov-text"
	Unknown Family = "unknown"
)

// familyAliases maps the demuxer's lowercase internal codec names to their
// canonical Family. Aliases observed across common containers are folded in
// (e.g. "h265" -> hevc, "mp4a" -> aac, "text/vtt" naming).
var familyAliases = map[string]Family{
	"h264": H264, "avc": H264, "avc1": H264,
	"hevc": HEVC, "h265": HEVC, "hev1": HEVC, "hvc1": HEVC,
	"vp8": VP8,
	"vp9": VP9,
	"av1": AV1,
	"mpeg4": MPEG4, "mp4v": MPEG4, "xvid": MPEG4,
	"theora": Theora,
	"aac": AAC, "mp4a": AAC,
	"mp3": MP3, "mpga": MP3,
	"opus": Opus,
	"flac": FLAC,
	"vorbis": Vorbis,
	"ac3": AC3, "ac-3": AC3,
	"eac3": EAC3, "ec-3": EAC3,
	"dts": DTS,
	"pcm": PCM, "pcm_s16le": PCM, "pcm_s24le": PCM, "lpcm": PCM,
	"subrip": SubRip, "srt": SubRip,
	"ass": ASS,
	"ssa": SSA,
	"webvtt": WebVTT, "vtt": WebVTT, "text/vtt": WebVTT,
	"pgs": PGS, "hdmv_pgs_subtitle": PGS,
	"dvd_subtitle": DVDSub, "dvdsub": DVDSub,
	"dvb_subtitle": DVBSub, "dvbsub": DVBSub,
	"mov_text": MovText, "tx3g": MovText,
}

// FamilyOf resolves the demuxer's internal codec name to a canonical
// Family, case-insensitively and ignoring surrounding whitespace. Separators
// are not normalized: only spellings listed in familyAliases match.
func FamilyOf(internalName string) Family {
	key := strings.ToLower(strings.TrimSpace(internalName))
	if f, ok := familyAliases[key]; ok {
		return f
	}
	return Unknown
}

// SubtitleClass distinguishes text-based subtitle families from image-based
// ones (spec.md §4.5: PGS, DVD, DVB are image; everything else is text).
type SubtitleClass string

const (
	SubtitleText  SubtitleClass = "text"
	SubtitleImage SubtitleClass = "image"
)

// ClassifySubtitle returns whether family renders as text or bitmap cues.
func ClassifySubtitle(f Family) SubtitleClass {
	switch f {
	case PGS, DVDSub, DVBSub:
		return SubtitleImage
	default:
		return SubtitleText
	}
}

// CodecString synthesizes a host-decoder-style codec string from a family
// and its profile/level, following the conventions of the RFC 6381-style
// strings common video/audio decode APIs expect (spec.md §4.5: "HEVC
// profile/level/tier descriptor from profile and level").
func CodecString(f Family, profile, level int32) string {
	switch f {
	case HEVC:
		// hev1.P.T.L -> tier is folded into the level nibble per the common
		// convention (main tier 'L', high tier 'H'); this implementation
		// always reports main tier since the demuxer does not expose tier
		// separately.
		return "hev1." + itoa(int(profile)) + ".4.L" + itoa(int(level))
	case H264:
		return "avc1." + hex2(profile) + "00" + hex2(level)
	case VP9:
		return "vp09.00." + itoa(int(level)) + ".08"
	case AV1:
		return "av01.0." + itoa(int(level)) + "M.08"
	default:
		return string(f)
	}
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func hex2(v int32) string {
	const digits = "0123456789abcdef"
	if v < 0 {
		v = 0
	}
	hi := (v >> 4) & 0xf
	lo := v & 0xf
	return string([]byte{digits[hi], digits[lo]})
}
