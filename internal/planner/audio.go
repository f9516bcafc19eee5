package planner

import (
	"fmt"

	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/media"
)

// AudioPreset returns the explicitly configured audio fields. Zero fields
// are filled from the first source with audio when the pipeline starts.
func AudioPreset(cfg *config.Config) media.AudioParams {
	return media.AudioParams{
		SampleRate: cfg.AudioSampleRate,
		Layout:     media.ChannelLayout(cfg.AudioLayout),
		Format:     media.SampleFormat(cfg.AudioSampleFormat),
	}
}

// AudioOptions builds the audio encoder dictionary: the bitrate as "b"
// (already normalized to "<n>k" by config validation), then any explicit
// --audio-opt entries, which win.
func AudioOptions(cfg *config.Config) (map[string]string, error) {
	opts := map[string]string{}
	if cfg.AudioBitrate != "" {
		opts["b"] = cfg.AudioBitrate
	}
	extra, err := config.ParseKeyValues(cfg.AudioOptions)
	if err != nil {
		return nil, fmt.Errorf("audio options: %w", err)
	}
	for k, v := range extra {
		opts[k] = v
	}
	return opts, nil
}
