package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/concat/concattest"
	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/logging"
	"github.com/backmassage/reelcat/internal/media"
	"github.com/backmassage/reelcat/internal/probe"
)

// --- Discover tests ---

func TestDiscover_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "movie.mkv")
	touch(t, dir, "show.mp4")
	touch(t, dir, "music.mp3")
	touch(t, dir, "readme.txt")
	touch(t, dir, "anime.avi")
	touch(t, dir, "special.m4v")

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{"anime.avi", "movie.mkv", "show.mp4", "special.m4v"}
	got := basenames(files)
	if !sliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscover_AllMediaExtensions(t *testing.T) {
	dir := t.TempDir()
	exts := []string{".mkv", ".mp4", ".avi", ".m4v", ".mov", ".wmv",
		".flv", ".webm", ".ts", ".m2ts", ".mpg", ".mpeg", ".vob", ".ogv"}
	for _, ext := range exts {
		touch(t, dir, "file"+ext)
	}
	touch(t, dir, "file.jpg")

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != len(exts) {
		t.Errorf("got %d files, want %d", len(files), len(exts))
	}
}

func TestDiscover_PrunesExtrasAndHidden(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "main.mkv")
	touch(t, dir, ".reel.mp4.partial.mp4")
	os.MkdirAll(filepath.Join(dir, "Extras"), 0o755)
	touch(t, filepath.Join(dir, "Extras"), "bonus.mkv")
	os.MkdirAll(filepath.Join(dir, "extras"), 0o755)
	touch(t, filepath.Join(dir, "extras"), "deleted_scenes.mp4")

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := basenames(files); !sliceEqual(got, []string{"main.mkv"}) {
		t.Errorf("got %v, want [main.mkv] (extras and hidden files pruned)", got)
	}
}

func TestDiscover_RecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "Reel", "Part 01"), 0o755)
	os.MkdirAll(filepath.Join(dir, "Reel", "Part 02"), 0o755)
	touch(t, filepath.Join(dir, "Reel", "Part 02"), "clip01.mkv")
	touch(t, filepath.Join(dir, "Reel", "Part 01"), "clip02.mkv")
	touch(t, filepath.Join(dir, "Reel", "Part 01"), "clip01.mkv")

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	// Should be sorted lexicographically.
	for i := 1; i < len(files); i++ {
		if files[i] < files[i-1] {
			t.Errorf("not sorted: %q before %q", files[i-1], files[i])
		}
	}
}

func TestDiscover_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "MOVIE.MKV")
	touch(t, dir, "Show.Mp4")

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("got %d files, want 2 (case-insensitive ext matching)", len(files))
	}
}

// --- ResolveInputs tests ---

func TestResolveInputs_KeepsArgumentOrder(t *testing.T) {
	root := t.TempDir()
	clips := filepath.Join(root, "clips")
	os.MkdirAll(clips, 0o755)
	touch(t, clips, "b.mp4")
	touch(t, clips, "a.mp4")
	touch(t, root, "intro.raw")
	touch(t, root, "outro.mkv")

	files, dirs, err := ResolveInputs([]string{
		filepath.Join(root, "outro.mkv"),
		clips,
		filepath.Join(root, "intro.raw"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outro.mkv", "a.mp4", "b.mp4", "intro.raw"}, basenames(files))
	assert.Equal(t, []string{clips}, dirs)
}

func TestResolveInputs_Errors(t *testing.T) {
	root := t.TempDir()

	_, _, err := ResolveInputs([]string{filepath.Join(root, "missing.mp4")})
	assert.ErrorContains(t, err, "input not found")

	empty := filepath.Join(root, "empty")
	os.MkdirAll(empty, 0o755)
	touch(t, empty, "notes.txt")
	_, _, err = ResolveInputs([]string{empty})
	assert.ErrorContains(t, err, "no media files")
}

// --- RunStats and report helpers ---

func TestRunStats_SizeRatio(t *testing.T) {
	s := RunStats{TotalInputBytes: 1000, TotalOutputBytes: 600}
	if got := s.SizeRatio(); got != 60 {
		t.Errorf("SizeRatio: got %d, want 60", got)
	}
	if got := (&RunStats{TotalOutputBytes: 10}).SizeRatio(); got != 0 {
		t.Errorf("SizeRatio with no input: got %d, want 0", got)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{25, 17.5},
		{50, 25},
		{100, 40},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestBitrateClassification(t *testing.T) {
	b := computeStats([]float64{4000, 4200, 4400, 4600, 4800, 5000})
	tests := []struct {
		kbps float64
		want string
	}{
		{4500, ""},
		{3000, "outlier"},
		{6000, "outlier"},
		{500, "extreme"},
		{20000, "extreme"},
		{0, ""},
	}
	for _, tt := range tests {
		if got := b.classify(tt.kbps); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.kbps, got, tt.want)
		}
	}

	small := computeStats([]float64{100, 9000, 50})
	if got := small.classify(1); got != "" {
		t.Errorf("fewer than four samples should never classify, got %q", got)
	}
}

func TestFormatOptions(t *testing.T) {
	assert.Equal(t, "", formatOptions(nil))
	assert.Equal(t, " (crf=20, g=48, preset=fast)",
		formatOptions(map[string]string{"preset": "fast", "g": "48", "crf": "20"}))
}

// --- Run tests ---

var stereo48k = media.AudioParams{SampleRate: 48000, Layout: media.LayoutStereo, Format: media.SampleFltP}

// clip is 2 seconds at 25 fps with matching stereo audio.
func clip() *concattest.Source {
	return &concattest.Source{
		Width: 1280, Height: 720, PixelFormat: "yuv420p", Frames: 50,
		AudioParams: stereo48k, AudioBlocks: []int{48000, 48000},
	}
}

type runFixture struct {
	cfg     config.Config
	backend *concattest.Backend
	results map[string]*probe.ProbeResult
	probed  []string
	table   bytes.Buffer
	out     bytes.Buffer
	errOut  bytes.Buffer
	log     *logging.Logger
}

// newRunFixture writes one placeholder file per name under a fresh input
// directory and scripts the backend and prober with the same clip for each.
func newRunFixture(t *testing.T, names ...string) *runFixture {
	t.Helper()
	in := t.TempDir()
	f := &runFixture{
		backend: &concattest.Backend{Sources: map[string]*concattest.Source{}},
		results: map[string]*probe.ProbeResult{},
	}
	for _, name := range names {
		path := filepath.Join(in, name)
		if err := os.WriteFile(path, make([]byte, 2*minFileSize), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		src := clip()
		f.backend.Sources[path] = src
		f.results[path] = probed(src, "25/1")
	}

	f.cfg = config.DefaultConfig()
	f.cfg.Inputs = []string{in}
	f.cfg.Output = filepath.Join(t.TempDir(), "out", "reel.mp4")
	f.cfg.ColorMode = config.ColorNever

	log, err := logging.NewLogger(&f.cfg)
	require.NoError(t, err)
	log.SetOutput(&f.out, &f.errOut)
	t.Cleanup(func() { log.Close() })
	f.log = log
	return f
}

func probed(s *concattest.Source, rate string) *probe.ProbeResult {
	pr := &probe.ProbeResult{
		Format: probe.FormatInfo{FormatName: "mov,mp4", Duration: 2, Size: 2 * minFileSize, BitRate: 4000000},
		PrimaryVideo: &probe.VideoStream{
			Codec: "h264", PixFmt: s.PixelFormat, Width: s.Width, Height: s.Height,
			BitRate: 4000000, AvgFrameRate: rate,
		},
	}
	if len(s.AudioBlocks) > 0 {
		pr.AudioStreams = []probe.AudioStream{{
			Codec:         "aac",
			Channels:      s.AudioParams.Channels(),
			ChannelLayout: string(s.AudioParams.Layout),
			SampleRate:    s.AudioParams.SampleRate,
			SampleFmt:     string(s.AudioParams.Format),
		}}
	}
	return pr
}

func (f *runFixture) probe(_ context.Context, _ string, paths []string, _ int) ([]*probe.ProbeResult, error) {
	f.probed = append([]string(nil), paths...)
	out := make([]*probe.ProbeResult, len(paths))
	for i, p := range paths {
		r, ok := f.results[p]
		if !ok {
			return nil, &probe.Error{Path: p, Err: probe.ErrNoVideo}
		}
		out[i] = r
	}
	return out, nil
}

func (f *runFixture) run(ctx context.Context) (RunStats, error) {
	return Run(ctx, &f.cfg, f.log, Deps{Backend: f.backend, Probe: f.probe, Out: &f.table})
}

func TestRun_ConcatenatesInDirectoryOrder(t *testing.T) {
	f := newRunFixture(t, "b.mp4", "a.mp4")

	stats, err := f.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, int64(100), stats.Frames)
	assert.Equal(t, int64(192000), stats.AudioSamples)
	assert.Equal(t, int64(4*minFileSize), stats.TotalInputBytes)
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, basenames(f.probed))

	require.NotNil(t, f.backend.Muxer)
	assert.True(t, f.backend.Muxer.Finalized)
	assert.Equal(t, f.cfg.Output, f.backend.Muxer.Path)
	assert.Zero(t, f.backend.Live())

	log := f.out.String()
	first := strings.Index(log, "[1/2] a.mp4")
	second := strings.Index(log, "[2/2] b.mp4")
	assert.True(t, first >= 0 && second > first, "render lines out of order:\n%s", log)
	assert.Contains(t, log, "Done: 2/2 sources, 100 frames")
	assert.Empty(t, f.table.String(), "source table is only printed for dry runs and verbose runs")
}

func TestRun_MetadataReachesMuxer(t *testing.T) {
	f := newRunFixture(t, "a.mp4")
	f.cfg.Metadata = []string{"title=Summer Reel"}

	_, err := f.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Summer Reel"}, f.backend.Muxer.Metadata)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	f := newRunFixture(t, "a.mp4", "b.mp4")
	f.cfg.DryRun = true

	stats, err := f.run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, f.backend.Muxer, "dry run must not open an output")
	assert.Zero(t, stats.Completed)
	assert.Equal(t, 4.0, stats.InputDuration)
	assert.Contains(t, f.out.String(), "[DRY] Would write")

	table := f.table.String()
	assert.Contains(t, table, "File")
	assert.Contains(t, table, "a.mp4")
	assert.Contains(t, table, "1280x720 h264")
	assert.Contains(t, table, "25 fps")
	_, err = os.Stat(filepath.Dir(f.cfg.Output))
	assert.True(t, os.IsNotExist(err), "dry run must not create the output directory")
}

func TestRun_WarnsOnFrameRateOutlier(t *testing.T) {
	f := newRunFixture(t, "a.mp4", "b.mp4")
	for p, r := range f.results {
		if filepath.Base(p) == "b.mp4" {
			r.PrimaryVideo.AvgFrameRate = "50/1"
		}
	}

	_, err := f.run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "[2] b.mp4")
}

func TestRun_RejectsSmallFile(t *testing.T) {
	f := newRunFixture(t, "a.mp4")
	touch(t, f.cfg.Inputs[0], "tiny.mp4")

	_, err := f.run(context.Background())
	assert.ErrorContains(t, err, "too small")
	assert.Nil(t, f.probed, "nothing is probed when validation fails")
}

func TestRun_RejectsOutputOverInput(t *testing.T) {
	f := newRunFixture(t, "a.mp4")
	f.cfg.Output = filepath.Join(f.cfg.Inputs[0], "a.mp4")

	_, err := f.run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, f.backend.Muxer)
}

func TestRun_ProbeFailureAborts(t *testing.T) {
	f := newRunFixture(t, "a.mp4", "b.mp4")
	for p := range f.results {
		if filepath.Base(p) == "b.mp4" {
			delete(f.results, p)
		}
	}

	_, err := f.run(context.Background())
	var perr *probe.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "b.mp4", filepath.Base(perr.Path))
	assert.ErrorIs(t, err, probe.ErrNoVideo)
	assert.Nil(t, f.backend.Muxer)
}

func TestRun_DecodeFailureDiscardsOutput(t *testing.T) {
	f := newRunFixture(t, "a.mp4", "b.mp4")
	for p, s := range f.backend.Sources {
		if filepath.Base(p) == "b.mp4" {
			s.FailVideoAt = 10
		}
	}

	stats, err := f.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, concat.ErrDecode)

	var serr *concat.SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Index)

	assert.Equal(t, 1, stats.Completed)
	require.NotNil(t, f.backend.Muxer)
	assert.True(t, f.backend.Muxer.Discarded)
	assert.False(t, f.backend.Muxer.Finalized)
	assert.Zero(t, f.backend.Live())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newRunFixture(t, "a.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.run(ctx)
	assert.ErrorIs(t, err, concat.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, f.backend.Muxer)
}

func TestRun_RejectsBadMetadata(t *testing.T) {
	f := newRunFixture(t, "a.mp4")
	f.cfg.Metadata = []string{"no-separator"}

	_, err := f.run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, f.backend.Muxer)
}

func TestRun_ProbeErrorsSurface(t *testing.T) {
	f := newRunFixture(t, "a.mp4")
	boom := errors.New("ffprobe crashed")
	_, err := Run(context.Background(), &f.cfg, f.log, Deps{
		Backend: f.backend,
		Probe: func(context.Context, string, []string, int) ([]*probe.ProbeResult, error) {
			return nil, boom
		},
		Out: &f.table,
	})
	assert.ErrorIs(t, err, boom)
}

// --- Helpers ---

func touch(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func basenames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
