package display

import (
	"fmt"
	"math"
	"strconv"

	"github.com/backmassage/reelcat/internal/media"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB, PiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	v, exp := float64(bytes)/unit, 0
	for v >= unit && exp < len(suffixes)-1 {
		v /= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", v, suffixes[exp])
}

// FormatBitrate returns a short label for a bitrate in bits/sec
// (e.g. "800 kbps", "5.0 Mbps"). Zero means unknown.
func FormatBitrate(bps int64) string {
	if bps <= 0 {
		return "? kbps"
	}
	kbps := bps / 1000
	if kbps < 1000 {
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}

// FormatDuration renders seconds as m:ss or h:mm:ss, rounded to the
// nearest second.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	s := int64(math.Round(seconds))
	h, m := s/3600, (s%3600)/60
	s %= 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatFrameRate renders a rate with at most two decimals
// (e.g. "25 fps", "29.97 fps").
func FormatFrameRate(r media.Rational) string {
	if !r.Valid() {
		return "? fps"
	}
	f := math.Round(r.Float64()*100) / 100
	return strconv.FormatFloat(f, 'f', -1, 64) + " fps"
}

// FormatAudio describes an audio track, or "no audio".
func FormatAudio(t media.AudioTrack) string {
	a, ok := t.(media.WithAudio)
	if !ok {
		return "no audio"
	}
	label := fmt.Sprintf("%d Hz %s %s", a.Params.SampleRate, a.Params.Layout, a.Params.Format)
	if a.Codec != "" {
		label = a.Codec + " " + label
	}
	return label
}
