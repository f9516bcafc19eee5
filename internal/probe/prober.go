package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/reelcat/internal/media"
)

// DefaultConcurrency bounds how many ffprobe processes run at once.
const DefaultConcurrency = 64

// Probe runs a single ffprobe JSON call against path and returns the
// parsed result. ffprobe is the binary to run; empty means "ffprobe".
func Probe(ctx context.Context, ffprobe, path string) (*ProbeResult, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	pr, err := ParseJSON(out)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	pr.Path = path
	return pr, nil
}

// ProbeAll probes paths with at most concurrency ffprobe processes and
// returns results in input order. Every result has a usable video stream;
// the first failure cancels the remaining probes.
func ProbeAll(ctx context.Context, ffprobe string, paths []string, concurrency int) ([]*ProbeResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]*ProbeResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			pr, err := Probe(ctx, ffprobe, path)
			if err != nil {
				return err
			}
			if _, err := pr.Descriptor(i); err != nil {
				return err
			}
			results[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// Descriptor reduces the result to what the concatenation needs. index is
// the source's position in the batch.
func (p *ProbeResult) Descriptor(index int) (media.SourceDescriptor, error) {
	d := media.SourceDescriptor{
		Index:    index,
		Path:     p.Path,
		Size:     p.Format.Size,
		Duration: p.Format.Duration,
		Audio:    media.WithoutAudio{},
	}
	v := p.PrimaryVideo
	if v == nil || v.Width <= 0 || v.Height <= 0 {
		return d, &Error{Path: p.Path, Err: ErrNoVideo}
	}
	rate, err := frameRate(v)
	if err != nil {
		return d, &Error{Path: p.Path, Err: err}
	}
	d.Video = media.VideoParams{
		Width:       v.Width,
		Height:      v.Height,
		FrameRate:   rate,
		PixelFormat: v.PixFmt,
		Codec:       v.Codec,
		BitRate:     p.VideoBitRate(),
	}

	// Only the first audio stream is used. A stream whose params cannot be
	// represented is reported rather than silently treated as absent.
	if len(p.AudioStreams) > 0 {
		a := p.AudioStreams[0]
		params, err := audioParams(a)
		if err != nil {
			return d, &Error{Path: p.Path, Err: fmt.Errorf("audio stream %d: %w", a.Index, err)}
		}
		d.Audio = media.WithAudio{Params: params, Codec: a.Codec}
	}
	return d, nil
}

// frameRate prefers the average rate and falls back to the stream's base
// rate; ffprobe reports "0/0" for whichever it cannot determine.
func frameRate(v *VideoStream) (media.Rational, error) {
	for _, s := range []string{v.AvgFrameRate, v.RFrameRate} {
		if r, err := media.ParseRational(s); err == nil && r.Valid() {
			return r, nil
		}
	}
	return media.Rational{}, fmt.Errorf("no frame rate (avg %q, base %q)", v.AvgFrameRate, v.RFrameRate)
}

func audioParams(a AudioStream) (media.AudioParams, error) {
	p := media.AudioParams{
		SampleRate: a.SampleRate,
		Layout:     media.ChannelLayout(a.ChannelLayout),
		Format:     media.SampleFormat(a.SampleFmt),
	}
	if !p.Layout.Valid() {
		l, ok := media.LayoutForChannels(a.Channels)
		if !ok {
			return p, fmt.Errorf("unsupported channel layout %q (%d channels)", a.ChannelLayout, a.Channels)
		}
		p.Layout = l
	}
	if !p.Format.Valid() {
		return p, fmt.Errorf("unsupported sample format %q", a.SampleFmt)
	}
	if p.SampleRate <= 0 {
		return p, fmt.Errorf("invalid sample rate %d", a.SampleRate)
	}
	return p, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	PixFmt         string            `json:"pix_fmt"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	BitRate        string            `json:"bit_rate"`
	FieldOrder     string            `json:"field_order"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	AvgFrameRate   string            `json:"avg_frame_rate"`
	RFrameRate     string            `json:"r_frame_rate"`
	SampleFmt      string            `json:"sample_fmt"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	SampleRate     string            `json:"sample_rate"`
	Disposition    map[string]int    `json:"disposition"`
	Tags           map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Path:   raw.Format.Filename,
		Format: convertFormat(&raw.Format),
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			vs := convertVideo(s)
			if !vs.IsAttachedPic && pr.PrimaryVideo == nil {
				pr.PrimaryVideo = &vs
			}
		case "audio":
			pr.AudioStreams = append(pr.AudioStreams, convertAudio(s))
		}
	}
	return pr
}

func convertFormat(f *ffprobeFormat) FormatInfo {
	return FormatInfo{
		Filename:   f.Filename,
		FormatName: f.FormatName,
		Duration:   parseFloat(f.Duration),
		Size:       parseInt64(f.Size),
		BitRate:    parseInt64(f.BitRate),
		Tags:       f.Tags,
	}
}

func convertVideo(s *ffprobeStream) VideoStream {
	return VideoStream{
		Index:          s.Index,
		Codec:          s.CodecName,
		PixFmt:         s.PixFmt,
		Width:          s.Width,
		Height:         s.Height,
		BitRate:        parseInt64(s.BitRate),
		FieldOrder:     s.FieldOrder,
		ColorTransfer:  s.ColorTransfer,
		ColorPrimaries: s.ColorPrimaries,
		IsAttachedPic:  s.Disposition["attached_pic"] == 1,
		AvgFrameRate:   s.AvgFrameRate,
		RFrameRate:     s.RFrameRate,
	}
}

func convertAudio(s *ffprobeStream) AudioStream {
	return AudioStream{
		Index:         s.Index,
		Codec:         s.CodecName,
		Channels:      s.Channels,
		ChannelLayout: s.ChannelLayout,
		SampleRate:    parseInt(s.SampleRate),
		SampleFmt:     s.SampleFmt,
		BitRate:       parseInt64(s.BitRate),
		Language:      s.Tags["language"],
	}
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
