package planner

import "github.com/backmassage/reelcat/internal/media"

// Plan is the resolved output format plus everything worth telling the user
// about how the sources map onto it.
type Plan struct {
	Target media.TargetFormat

	// Audio previews the audio format the pipeline will resolve at start.
	// Nil when no source has audio.
	Audio *media.AudioParams

	// Origins says where each inferred target field came from,
	// e.g. "size 1280x720 from a.mp4".
	Origins []string

	// Outliers lists sources whose video or audio is converted in a way
	// that changes how they play back.
	Outliers []Outlier
}

// OutlierKind classifies a source that differs from the target.
type OutlierKind int

const (
	// OutlierFrameRate means frames are kept 1:1 at a different rate, so
	// the source plays faster or slower than recorded.
	OutlierFrameRate OutlierKind = iota
	// OutlierAspect means frames are stretched to a different aspect ratio.
	OutlierAspect
	// OutlierResample means audio is converted to the target params.
	OutlierResample
	// OutlierSilent means the source has no audio and gets silence.
	OutlierSilent
)

func (k OutlierKind) String() string {
	switch k {
	case OutlierFrameRate:
		return "frame rate"
	case OutlierAspect:
		return "aspect ratio"
	case OutlierResample:
		return "resample"
	case OutlierSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// Outlier is one note about one source.
type Outlier struct {
	Kind   OutlierKind
	Index  int
	Path   string
	Detail string
}

// Warn reports whether the outlier changes what the viewer sees or hears
// (as opposed to a lossless-in-spirit format conversion).
func (o Outlier) Warn() bool {
	return o.Kind == OutlierFrameRate || o.Kind == OutlierAspect
}
