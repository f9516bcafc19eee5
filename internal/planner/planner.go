package planner

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/media"
)

// BuildPlan resolves the target format from cfg and the probed sources.
// sources must be non-empty and in concatenation order.
//
// Flow:
//  1. Video size and frame rate (explicit config > first source)
//  2. Pixel format and video encoder options
//  3. Audio preset and encoder options
//  4. Audio preview (first source with audio)
//  5. Per-source outliers
func BuildPlan(cfg *config.Config, sources []media.SourceDescriptor) (*Plan, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources to plan")
	}
	first := sources[0]
	plan := &Plan{}
	t := &plan.Target

	// --- 1. Geometry and timing ---
	if err := resolveSize(cfg, first, plan); err != nil {
		return nil, err
	}
	if err := resolveFrameRate(cfg, first, plan); err != nil {
		return nil, err
	}

	// --- 2. Video encoder ---
	t.PixelFormat = cfg.PixelFormat
	t.VideoCodec = cfg.VideoCodec
	opts, err := VideoOptions(cfg)
	if err != nil {
		return nil, err
	}
	t.VideoOptions = opts

	// --- 3. Audio encoder ---
	t.AudioPreset = AudioPreset(cfg)
	t.AudioCodec = cfg.AudioCodec
	if t.AudioOptions, err = AudioOptions(cfg); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	// --- 4. Audio preview ---
	preview := *t
	for _, s := range sources {
		if ap, ok := s.AudioParams(); ok {
			if err := preview.ResolveAudio(ap); err != nil {
				return nil, fmt.Errorf("%s: %w", s.Path, err)
			}
			plan.Audio = preview.Audio
			if cfgAudioUnset(cfg) {
				plan.Origins = append(plan.Origins, fmt.Sprintf("audio %s from %s", *plan.Audio, filepath.Base(s.Path)))
			}
			break
		}
	}

	// --- 5. Outliers ---
	plan.Outliers = findOutliers(sources, t, plan.Audio)
	return plan, nil
}

func cfgAudioUnset(cfg *config.Config) bool {
	return cfg.AudioSampleRate == 0 || cfg.AudioLayout == "" || cfg.AudioSampleFormat == ""
}
