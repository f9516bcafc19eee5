// Package check provides system diagnostics (--check mode) and pre-run
// dependency validation (CheckDeps): the ffprobe binary used for probing
// and the video and audio encoders the output needs.
package check

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/backmassage/reelcat/internal/config"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrFfprobeNotFound    = errors.New("ffprobe not found")
	ErrEncoderUnavailable = errors.New("encoder not available")
)

// Logger is the minimal logging interface needed by RunCheck.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// EncoderLookup reports whether the linked libraries provide an encoder by
// name. libav.HasEncoder is the real one.
type EncoderLookup func(name string) bool

// RunCheck runs the interactive --check flow: prints the ffprobe version and
// the availability of the configured encoders. It is informational only and
// reports whether everything a run needs was found.
func RunCheck(cfg *config.Config, log Logger, hasEncoder EncoderLookup) bool {
	log.Info("=== System Check ===")

	ok := checkFfprobe(cfg, log)
	for _, enc := range encoders(cfg) {
		if hasEncoder(enc.name) {
			log.Success("%s encoder: %s", enc.kind, enc.name)
		} else {
			log.Error("%s encoder %s not available in the linked libavcodec", enc.kind, enc.name)
			ok = false
		}
	}
	log.Debug(cfg.Verbose, "Target: %s %s, audio %s", sizeOrAuto(cfg), cfg.PixelFormat, cfg.AudioBitrate)
	return ok
}

// checkFfprobe verifies ffprobe is runnable and logs its version string.
func checkFfprobe(cfg *config.Config, log Logger) bool {
	path, err := exec.LookPath(cfg.FFprobePath)
	if err != nil {
		log.Error("ffprobe not found (%s)", cfg.FFprobePath)
		return false
	}
	version, err := ffprobeVersion(path)
	if err != nil {
		log.Warn("ffprobe found but -version failed: %v", err)
		return false
	}
	log.Success("ffprobe: %s", version)
	return true
}

// CheckDeps is the pre-run validation: ffprobe must be on PATH and both
// configured encoders must exist. Returns an error wrapping a sentinel on
// failure.
func CheckDeps(cfg *config.Config, hasEncoder EncoderLookup) error {
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFfprobeNotFound, cfg.FFprobePath)
	}
	for _, enc := range encoders(cfg) {
		if !hasEncoder(enc.name) {
			return fmt.Errorf("%w: %s %s", ErrEncoderUnavailable, enc.kind, enc.name)
		}
	}
	return nil
}

// --- internal helpers ---

type encoder struct{ kind, name string }

// encoders lists the encoders a run opens. The audio encoder is only
// opened when some source has audio, but it is checked up front anyway.
func encoders(cfg *config.Config) []encoder {
	return []encoder{
		{"Video", cfg.VideoCodec},
		{"Audio", cfg.AudioCodec},
	}
}

// ffprobeVersion runs "ffprobe -version" and returns its first line.
func ffprobeVersion(path string) (string, error) {
	out, err := exec.Command(path, "-version").Output()
	if err != nil {
		return "", err
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	return firstLine, nil
}

func sizeOrAuto(cfg *config.Config) string {
	if cfg.Width > 0 && cfg.Height > 0 {
		return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	}
	return "size from first source"
}
