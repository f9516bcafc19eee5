package planner

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/media"
)

// resolveSize sets the target size. Each dimension is taken independently,
// so --width alone keeps the first source's height. Inferred odd sizes are
// rounded down to even for subsampled pixel formats.
func resolveSize(cfg *config.Config, first media.SourceDescriptor, plan *Plan) error {
	t := &plan.Target
	t.Width, t.Height = cfg.Width, cfg.Height
	inferred := false
	if t.Width == 0 {
		t.Width = first.Video.Width
		inferred = true
	}
	if t.Height == 0 {
		t.Height = first.Video.Height
		inferred = true
	}
	if !inferred {
		return nil
	}
	if config.Subsampled(cfg.PixelFormat) {
		t.Width &^= 1
		t.Height &^= 1
	}
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("cannot infer output size from %s (%dx%d)", first.Path, first.Video.Width, first.Video.Height)
	}
	plan.Origins = append(plan.Origins, fmt.Sprintf("size %dx%d from %s", t.Width, t.Height, filepath.Base(first.Path)))
	return nil
}

func resolveFrameRate(cfg *config.Config, first media.SourceDescriptor, plan *Plan) error {
	t := &plan.Target
	if cfg.FrameRate != "" {
		r, err := media.ParseRational(cfg.FrameRate)
		if err != nil {
			return err
		}
		t.FrameRate = r
		return nil
	}
	t.FrameRate = first.Video.FrameRate
	if !t.FrameRate.Valid() {
		return fmt.Errorf("cannot infer frame rate from %s", first.Path)
	}
	plan.Origins = append(plan.Origins, fmt.Sprintf("frame rate %s from %s", t.FrameRate, filepath.Base(first.Path)))
	return nil
}

// VideoOptions builds the video encoder dictionary. Explicit --video-opt
// entries override the GOP size.
func VideoOptions(cfg *config.Config) (map[string]string, error) {
	opts := map[string]string{}
	if cfg.GOPSize > 0 {
		opts["g"] = strconv.Itoa(cfg.GOPSize)
	}
	extra, err := config.ParseKeyValues(cfg.VideoOptions)
	if err != nil {
		return nil, fmt.Errorf("video options: %w", err)
	}
	for k, v := range extra {
		opts[k] = v
	}
	return opts, nil
}
