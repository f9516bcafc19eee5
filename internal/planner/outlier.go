package planner

import (
	"fmt"
	"math/big"

	"github.com/backmassage/reelcat/internal/media"
)

// findOutliers compares every source against the target. audio is the
// resolved audio preview (nil for a video-only run).
func findOutliers(sources []media.SourceDescriptor, t *media.TargetFormat, audio *media.AudioParams) []Outlier {
	var out []Outlier
	add := func(k OutlierKind, s media.SourceDescriptor, format string, args ...interface{}) {
		out = append(out, Outlier{Kind: k, Index: s.Index, Path: s.Path, Detail: fmt.Sprintf(format, args...)})
	}
	for _, s := range sources {
		v := s.Video
		if !v.FrameRate.Equal(t.FrameRate) {
			add(OutlierFrameRate, s, "%s source at %s output plays at %.3fx speed",
				v.FrameRate, t.FrameRate, SpeedFactor(v.FrameRate, t.FrameRate))
		}
		if !sameAspect(v.Width, v.Height, t.Width, t.Height) {
			add(OutlierAspect, s, "%dx%d stretched to %dx%d", v.Width, v.Height, t.Width, t.Height)
		}
		if audio == nil {
			continue
		}
		ap, ok := s.AudioParams()
		switch {
		case !ok:
			add(OutlierSilent, s, "no audio track, %s of silence", audio.Layout)
		case ap != *audio:
			add(OutlierResample, s, "%s resampled to %s", ap, *audio)
		}
	}
	return out
}

// SpeedFactor is how much faster a source recorded at src plays when its
// frames are shown at dst.
func SpeedFactor(src, dst media.Rational) float64 {
	if !src.Valid() || !dst.Valid() {
		return 1
	}
	return dst.Float64() / src.Float64()
}

// sameAspect compares w1/h1 and w2/h2 exactly. Sizes that only differ by
// the even rounding of an inferred target still count as the same.
func sameAspect(w1, h1, w2, h2 int) bool {
	if w1 == w2 && h1 == h2 {
		return true
	}
	if w1 <= 0 || h1 <= 0 || w2 <= 0 || h2 <= 0 {
		return false
	}
	if w1&^1 == w2 && h1&^1 == h2 {
		return true
	}
	a := big.NewRat(int64(w1), int64(h1))
	b := big.NewRat(int64(w2), int64(h2))
	return a.Cmp(b) == 0
}
