package concat

import (
	"math/big"

	"github.com/backmassage/reelcat/internal/media"
)

// ExpectedSamples is the audio length matching frames video frames at
// frameRate: frames / frameRate * sampleRate, rounded to nearest with ties
// away from zero. Exact integer arithmetic keeps long runs drift-free.
func ExpectedSamples(frames int64, frameRate media.Rational, sampleRate int) int64 {
	if frames <= 0 || !frameRate.Valid() || sampleRate <= 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(frames), big.NewInt(frameRate.Den))
	num.Mul(num, big.NewInt(int64(sampleRate)))
	return media.RoundHalfAway(num, big.NewInt(frameRate.Num))
}

// Alignment records how a source's audio was fitted to its video.
type Alignment struct {
	Expected int64
	Actual   int64
	Padded   int64
	Trimmed  int64
}

// Align makes fifo hold exactly expected samples, dropping surplus from the
// end or appending silence.
func Align(fifo *media.AudioFIFO, expected int64) (Alignment, error) {
	a := Alignment{Expected: expected, Actual: int64(fifo.Len())}
	switch {
	case a.Actual > expected:
		a.Trimmed = a.Actual - expected
		fifo.Truncate(int(expected))
	case a.Actual < expected:
		a.Padded = expected - a.Actual
		if err := fifo.Write(Silence(fifo.Params(), int(a.Padded))); err != nil {
			return a, err
		}
	}
	return a, nil
}
