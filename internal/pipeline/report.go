package pipeline

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/backmassage/reelcat/internal/display"
	"github.com/backmassage/reelcat/internal/media"
	"github.com/backmassage/reelcat/internal/planner"
	"github.com/backmassage/reelcat/internal/probe"
	"github.com/backmassage/reelcat/internal/term"
)

// sourceRow holds the probed per-source data for the source table.
type sourceRow struct {
	Num      string
	Name     string
	Size     string
	Video    string
	Rate     string
	Duration string
	Kbps     int64
	Audio    string
	Flag     string // "outlier" when the planner warned about this source
	Traits   string
}

// printSourceTable prints one row per source in concatenation order. The
// bitrate column is highlighted when a source's video bitrate sits far
// outside the batch's interquartile range; the FPS column when the planner
// flagged the source.
func printSourceTable(w io.Writer, results []*probe.ProbeResult, sources []media.SourceDescriptor, plan *planner.Plan) {
	warned := map[int]bool{}
	for _, o := range plan.Outliers {
		if o.Warn() {
			warned[o.Index] = true
		}
	}

	rows := make([]sourceRow, len(sources))
	var kbpsVals []float64
	for i, s := range sources {
		r := sourceRow{
			Num:      strconv.Itoa(i + 1),
			Name:     filepath.Base(s.Path),
			Size:     display.FormatBytes(s.Size),
			Video:    fmt.Sprintf("%dx%d %s", s.Video.Width, s.Video.Height, s.Video.Codec),
			Rate:     display.FormatFrameRate(s.Video.FrameRate),
			Duration: display.FormatDuration(s.Duration),
			Kbps:     s.Video.BitRate / 1000,
			Audio:    display.FormatAudio(s.Audio),
		}
		if warned[i] {
			r.Flag = "outlier"
		}
		if i < len(results) && results[i] != nil {
			r.Traits = strings.Join(results[i].Traits(), " ")
		}
		if r.Kbps > 0 {
			kbpsVals = append(kbpsVals, float64(r.Kbps))
		}
		rows[i] = r
	}
	stats := computeStats(kbpsVals)

	headers := []string{"#", "File", "Size", "Video", "FPS", "Length", "Bitrate", "Audio"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, cell := range r.cells() {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	if widths[1] > 40 {
		widths[1] = 40
	}

	var hdr strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&hdr, "  %-*s", widths[i], h)
	}
	header := strings.TrimRight(hdr.String(), " ")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header)-2))

	for _, r := range rows {
		cells := r.cells()
		if len(cells[1]) > widths[1] {
			cells[1] = cells[1][:widths[1]-1] + "…"
		}
		var line strings.Builder
		for i, cell := range cells {
			class := ""
			switch i {
			case 4:
				class = r.Flag
			case 6:
				class = stats.classify(float64(r.Kbps))
			}
			// Pad the plain text first, then color it, so escape bytes do
			// not count toward the column width.
			line.WriteString("  " + colorPad(cell, widths[i], class))
		}
		if r.Traits != "" {
			line.WriteString("  [" + r.Traits + "]")
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
	fmt.Fprintln(w)
}

func (r sourceRow) cells() []string {
	kbps := "n/a"
	if r.Kbps > 0 {
		kbps = display.FormatBitrate(r.Kbps * 1000)
	}
	return []string{r.Num, r.Name, r.Size, r.Video, r.Rate, r.Duration, kbps, r.Audio}
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

// colorPad pads a plain string to width, then colors it by class.
func colorPad(s string, width int, class string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch class {
	case "extreme":
		return term.Red.Sprint(padded)
	case "outlier":
		return term.Orange.Sprint(padded)
	default:
		return padded
	}
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
