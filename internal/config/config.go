// Package config holds runtime configuration: defaults, CLI flag binding,
// config file and environment layering, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/backmassage/reelcat/internal/media"
)

// --- Enum types for validated string fields ---

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// LogFormat selects the log file encoding.
type LogFormat string

const (
	LogText LogFormat = "text" // logfmt-style lines (default).
	LogJSON LogFormat = "json" // One JSON object per line.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then by [Load] before being passed (by pointer) to packages that need it.
// Zero target fields mean "take it from the first source".
type Config struct {
	// Paths. Inputs are positional; a directory expands to its media files.
	Inputs     []string
	Output     string
	ConfigFile string // Optional; default $XDG_CONFIG_HOME/reelcat/config.yaml.

	// Target video.
	Width          int
	Height         int
	PixelFormat    string // Default: "yuv420p".
	FrameRate      string // Rational, e.g. "25" or "30000/1001".
	VideoCodec     string // Default: "libx264".
	VideoOptions   []string
	GOPSize        int // 0 leaves the encoder default.
	DecoderThreads int // 0 lets libav pick.

	// Target audio.
	AudioSampleRate   int
	AudioLayout       string
	AudioSampleFormat string
	AudioCodec        string // Default: "aac".
	AudioBitrate      string // Default: "192k". Empty leaves the encoder default.
	AudioOptions      []string
	AudioChunkSize    int // Default: 1024 samples per encoder frame.

	// Container metadata, "key=value".
	Metadata []string

	// Probing.
	ProbeConcurrency int    // Default: 64.
	FFprobePath      string // Default: "ffprobe".

	// Behavior, display and logging.
	DryRun    bool
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	LogFormat LogFormat // Default: "text".
	CheckOnly bool      // Run --check diagnostics and exit.
}

// DefaultConfig returns a Config with every default filled in. Used as the
// base before [Load] applies file, environment and flag overrides.
func DefaultConfig() Config {
	return Config{
		PixelFormat:      "yuv420p",
		VideoCodec:       "libx264",
		AudioCodec:       "aac",
		AudioBitrate:     "192k",
		AudioChunkSize:   1024,
		ProbeConcurrency: 64,
		FFprobePath:      "ffprobe",
		ColorMode:        ColorAuto,
		LogFormat:        LogText,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and the target format fields. When not in
// CheckOnly mode it also requires an output path and at least one input.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	switch c.LogFormat {
	case LogText, LogJSON:
		// valid
	default:
		return errors.New("invalid log format (use 'text' or 'json')")
	}

	if c.CheckOnly {
		return nil
	}

	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if _, err := ParseKeyValues(c.Metadata); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if c.ProbeConcurrency <= 0 {
		return errors.New("probe concurrency must be positive")
	}

	if c.Output == "" {
		return errors.New("need an output path (-o)")
	}
	if len(c.Inputs) == 0 {
		return errors.New("need at least one input")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if Subsampled(c.PixelFormat) && (c.Width%2 != 0 || c.Height%2 != 0) {
		return fmt.Errorf("size %dx%d must be even for %s", c.Width, c.Height, c.PixelFormat)
	}
	if c.FrameRate != "" {
		r, err := media.ParseRational(c.FrameRate)
		if err != nil || !r.Valid() {
			return fmt.Errorf("invalid frame rate %q (use e.g. 25 or 30000/1001)", c.FrameRate)
		}
	}
	if c.PixelFormat == "" || c.VideoCodec == "" {
		return errors.New("pixel format and video codec must not be empty")
	}
	if c.GOPSize < 0 || c.DecoderThreads < 0 {
		return errors.New("gop size and decoder threads must not be negative")
	}
	if _, err := ParseKeyValues(c.VideoOptions); err != nil {
		return fmt.Errorf("video options: %w", err)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.AudioSampleRate < 0 {
		return fmt.Errorf("invalid sample rate %d", c.AudioSampleRate)
	}
	if c.AudioLayout != "" && !media.ChannelLayout(c.AudioLayout).Valid() {
		return fmt.Errorf("unsupported channel layout %q", c.AudioLayout)
	}
	if c.AudioSampleFormat != "" && !media.SampleFormat(c.AudioSampleFormat).Valid() {
		return fmt.Errorf("unsupported sample format %q", c.AudioSampleFormat)
	}
	if c.AudioCodec == "" {
		return errors.New("audio codec must not be empty")
	}
	if c.AudioChunkSize <= 0 {
		return errors.New("audio chunk size must be positive")
	}
	if c.AudioBitrate != "" {
		normalizedBitrate, err := normalizeAudioBitrate(c.AudioBitrate)
		if err != nil {
			return err
		}
		c.AudioBitrate = normalizedBitrate
	}
	if _, err := ParseKeyValues(c.AudioOptions); err != nil {
		return fmt.Errorf("audio options: %w", err)
	}
	return nil
}

// Subsampled reports whether pixel format pf has chroma planes at half
// resolution in both directions, which requires even frame dimensions.
func Subsampled(pf string) bool {
	switch pf {
	case "nv12", "nv21", "p010le", "p010be":
		return true
	}
	return strings.HasPrefix(pf, "yuv420") || strings.HasPrefix(pf, "yuvj420") || strings.HasPrefix(pf, "yuva420")
}

// normalizeAudioBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "256", "256k", "256K", "256kbps". Output is "<n>k".
func normalizeAudioBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("audio bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audio bitrate %q (use positive Kbps value, e.g. 128k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}

// ParseKeyValues turns "key=value" entries into a map. Later entries win.
func ParseKeyValues(list []string) (map[string]string, error) {
	out := make(map[string]string, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// ValidatePaths ensures the resolved output path is not one of the
// resolved input files, and not inside an input directory where it would be
// discovered as a source on the next run. All arguments must be absolute,
// symlink-resolved paths.
func (c *Config) ValidatePaths(outputAbs string, inputsAbs []string, dirs []string) error {
	sep := string(filepath.Separator)
	for _, in := range inputsAbs {
		if outputAbs == in {
			return fmt.Errorf("output %s is also an input", outputAbs)
		}
	}
	for _, d := range dirs {
		if strings.HasPrefix(outputAbs, d+sep) {
			return fmt.Errorf("output %s must not be inside input directory %s", outputAbs, d)
		}
	}
	return nil
}
