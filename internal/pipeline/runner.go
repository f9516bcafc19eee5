package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/display"
	"github.com/backmassage/reelcat/internal/logging"
	"github.com/backmassage/reelcat/internal/media"
	"github.com/backmassage/reelcat/internal/planner"
	"github.com/backmassage/reelcat/internal/probe"
)

const minFileSize = 1000

// ProbeFunc probes paths in order. probe.ProbeAll is the real one.
type ProbeFunc func(ctx context.Context, ffprobe string, paths []string, concurrency int) ([]*probe.ProbeResult, error)

// Deps are the collaborators Run needs beyond configuration.
type Deps struct {
	Backend concat.Backend
	Probe   ProbeFunc // Default: probe.ProbeAll.
	Out     io.Writer // Source table destination. Default: os.Stdout.
}

// Run is the top-level batch entry point. It returns the stats gathered so
// far together with the first fatal error; nothing is retried and a failed
// run leaves no output behind.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, deps Deps) (RunStats, error) {
	var stats RunStats
	start := time.Now()
	if deps.Probe == nil {
		deps.Probe = probe.ProbeAll
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	// --- Resolve and validate inputs ---
	files, dirs, err := ResolveInputs(cfg.Inputs)
	if err != nil {
		return stats, err
	}
	stats.Total = len(files)
	if err := validateFiles(files, &stats); err != nil {
		return stats, err
	}
	if err := checkOutputPath(cfg, files, dirs); err != nil {
		return stats, err
	}
	log.Info("Found %d sources (%s)", stats.Total, display.FormatBytes(stats.TotalInputBytes))

	// --- Probe (one ffprobe JSON call per source, run concurrently) ---
	results, err := deps.Probe(ctx, cfg.FFprobePath, files, cfg.ProbeConcurrency)
	if err != nil {
		return stats, err
	}
	sources := make([]media.SourceDescriptor, len(results))
	for i, pr := range results {
		pr.Path = files[i]
		d, err := pr.Descriptor(i)
		if err != nil {
			return stats, err
		}
		sources[i] = d
		stats.InputDuration += d.Duration
	}

	// --- Plan ---
	plan, err := planner.BuildPlan(cfg, sources)
	if err != nil {
		return stats, err
	}
	logBatchHeader(cfg, log, plan)
	logOutliers(cfg, log, plan)
	if cfg.DryRun || cfg.Verbose {
		printSourceTable(deps.Out, results, sources, plan)
	}

	// --- Dry-run ---
	if cfg.DryRun {
		log.Success("[DRY] Would write %s: %d sources, %s",
			cfg.Output, stats.Total, display.FormatDuration(stats.InputDuration))
		return stats, nil
	}

	// --- Concatenate ---
	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return stats, fmt.Errorf("cannot create output directory: %w", err)
	}
	metadata, err := config.ParseKeyValues(cfg.Metadata)
	if err != nil {
		return stats, err
	}
	p, err := concat.New(deps.Backend, sources, plan.Target, concat.Options{
		Output:    cfg.Output,
		Metadata:  metadata,
		ChunkSize: cfg.AudioChunkSize,
		Logger:    log,
		Verbose:   cfg.Verbose,
	})
	if err != nil {
		return stats, err
	}

	err = p.Run(ctx, func(pr concat.Progress) error {
		stats.Completed++
		stats.PaddedSamples += pr.Alignment.Padded
		stats.TrimmedSamples += pr.Alignment.Trimmed
		log.Render("[%d/%d] %s", pr.Index+1, pr.Total, filepath.Base(pr.Path))
		log.Debug(cfg.Verbose, "  %d frames, %d samples", pr.Frames, pr.Alignment.Expected)
		return nil
	})
	clock := p.Clock()
	stats.Frames = clock.VideoFrames()
	stats.AudioSamples = clock.AudioSamples()
	stats.Elapsed = time.Since(start)
	if err != nil {
		return stats, err
	}

	if fi, err := os.Stat(cfg.Output); err == nil {
		stats.TotalOutputBytes = fi.Size()
	}
	logSummary(log, p.Target(), &stats)
	return stats, nil
}

// validateFiles rejects sources that are too small to hold a frame and
// totals the input sizes.
func validateFiles(files []string, stats *RunStats) error {
	for _, path := range files {
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("file not found: %s", path)
		}
		if fi.Size() < minFileSize {
			return fmt.Errorf("file too small (possibly corrupt): %s", path)
		}
		stats.TotalInputBytes += fi.Size()
	}
	return nil
}

// checkOutputPath compares symlink-resolved absolute paths so an output
// that aliases an input is caught before anything is written.
func checkOutputPath(cfg *config.Config, files, dirs []string) error {
	out, err := resolvePath(cfg.Output)
	if err != nil {
		return err
	}
	inputs := make([]string, 0, len(files))
	for _, f := range files {
		r, err := resolvePath(f)
		if err != nil {
			return err
		}
		inputs = append(inputs, r)
	}
	resolvedDirs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		r, err := resolvePath(d)
		if err != nil {
			return err
		}
		resolvedDirs = append(resolvedDirs, r)
	}
	return cfg.ValidatePaths(out, inputs, resolvedDirs)
}

// resolvePath returns the absolute, symlink-free form of path. The last
// element may not exist yet.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r, nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", err
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, plan *planner.Plan) {
	t := plan.Target
	log.Info("Output: %s", cfg.Output)
	log.Info("Video: %dx%d %s @ %s via %s%s", t.Width, t.Height, t.PixelFormat,
		display.FormatFrameRate(t.FrameRate), t.VideoCodec, formatOptions(t.VideoOptions))
	if plan.Audio != nil {
		log.Info("Audio: %s via %s%s", *plan.Audio, t.AudioCodec, formatOptions(t.AudioOptions))
	} else {
		log.Info("Audio: none (no source has an audio track)")
	}
	for _, o := range plan.Origins {
		log.Debug(cfg.Verbose, "  %s", o)
	}
	if len(cfg.Metadata) > 0 {
		log.Debug(cfg.Verbose, "Metadata: %s", strings.Join(cfg.Metadata, ", "))
	}
}

func logOutliers(cfg *config.Config, log *logging.Logger, plan *planner.Plan) {
	for _, o := range plan.Outliers {
		if o.Warn() {
			log.Outlier("  [%d] %s: %s", o.Index+1, filepath.Base(o.Path), o.Detail)
		} else {
			log.Debug(cfg.Verbose, "  [%d] %s: %s", o.Index+1, filepath.Base(o.Path), o.Detail)
		}
	}
}

// formatOptions renders an encoder dictionary as " (k=v, k=v)" in key order.
func formatOptions(opts map[string]string) string {
	if len(opts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + opts[k]
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func logSummary(log *logging.Logger, target media.TargetFormat, stats *RunStats) {
	outDur := 0.0
	if target.FrameRate.Valid() {
		outDur = float64(stats.Frames) / target.FrameRate.Float64()
	}
	log.Info("==============================")
	log.Info("Done: %d/%d sources, %d frames (%s)",
		stats.Completed, stats.Total, stats.Frames, display.FormatDuration(outDur))
	if target.Audio != nil {
		log.Info("  Audio: %d samples (%d padded, %d trimmed)",
			stats.AudioSamples, stats.PaddedSamples, stats.TrimmedSamples)
	}
	log.Success("  Output: %s (%d%% of inputs, %s) in %s",
		display.FormatBytes(stats.TotalOutputBytes), stats.SizeRatio(),
		display.FormatBytes(stats.TotalInputBytes), stats.Elapsed.Round(time.Second))
}
