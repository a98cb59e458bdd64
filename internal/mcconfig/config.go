package mcconfig

import (
	"os"

	"gopkg.in/yaml.v3"
)

// FallbackPolicy controls what the controller does when the hardware video
// decoder rejects a codec at configure time (spec.md §4.11, §7).
type FallbackPolicy string

const (
	// FallbackAuto silently reconfigures with the software decoder.
	FallbackAuto FallbackPolicy = "auto"
	// FallbackManual enters the error state with a recoverable flag.
	FallbackManual FallbackPolicy = "manual"
)

// Tuning holds every numeric/policy knob named by spec.md. Defaults match
// the spec's literal values; spec.md §9 marks the preload window and the
// packet buffer size as "tuning" knobs whose exact values are heuristics,
// not invariants, so both are overridable here.
type Tuning struct {
	ChunkSizeBytes       int64          `yaml:"chunkSizeBytes"`
	CacheMaxBytes        int64          `yaml:"cacheMaxBytes"`
	PreloadAheadChunks   int            `yaml:"preloadAheadChunks"`
	PreloadBehindChunks  int            `yaml:"preloadBehindChunks"`
	PreloadStopUtilPct   float64        `yaml:"preloadStopUtilizationPercent"`
	NativePacketBufBytes int            `yaml:"nativePacketBufferBytes"`
	FallbackPolicy       FallbackPolicy `yaml:"fallbackPolicy"`
	DecodeErrorThreshold int            `yaml:"decodeErrorThreshold"`
	SoftwareYieldMillis  int            `yaml:"softwareDecodeYieldMillis"`
	SoftwareMaxWidth     int            `yaml:"softwareDecodeMaxWidth"`
	VideoQueueCap        int            `yaml:"videoQueueCap"`
	AudioQueueBytesCap   int64          `yaml:"audioQueueBytesCap"`
}

// Default returns the spec-literal tuning values.
func Default() Tuning {
	return Tuning{
		ChunkSizeBytes:       2 << 20, // 2 MiB
		CacheMaxBytes:        100 << 20,
		PreloadAheadChunks:   20,
		PreloadBehindChunks:  5,
		PreloadStopUtilPct:   95.0,
		NativePacketBufBytes: 10 << 20, // 10 MiB, spec.md §9 open question
		FallbackPolicy:       FallbackAuto,
		DecodeErrorThreshold: 16,
		SoftwareYieldMillis:  8,
		SoftwareMaxWidth:     1920,
		VideoQueueCap:        8,
		AudioQueueBytesCap:   4 << 20,
	}
}

// LoadYAML overlays a YAML tuning file onto the defaults. A missing file is
// not an error: defaults apply.
func LoadYAML(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, nil
}

// WithEnvOverrides applies environment-variable overrides on top of t,
// logging the source of every changed value via ParseInt/ParseString.
func WithEnvOverrides(t Tuning) Tuning {
	t.ChunkSizeBytes = int64(ParseInt("MC_CHUNK_SIZE_BYTES", int(t.ChunkSizeBytes)))
	t.CacheMaxBytes = int64(ParseInt("MC_CACHE_MAX_BYTES", int(t.CacheMaxBytes)))
	t.PreloadAheadChunks = ParseInt("MC_PRELOAD_AHEAD_CHUNKS", t.PreloadAheadChunks)
	t.PreloadBehindChunks = ParseInt("MC_PRELOAD_BEHIND_CHUNKS", t.PreloadBehindChunks)
	t.FallbackPolicy = FallbackPolicy(ParseString("MC_FALLBACK_POLICY", string(t.FallbackPolicy)))
	return t
}
