package concat

import "github.com/backmassage/reelcat/internal/media"

// Silence returns n samples of zero amplitude in p.
func Silence(p media.AudioParams, n int) *media.AudioBuffer {
	b := media.NewAudioBuffer(p, n)
	if v := p.Format.SilenceByte(); v != 0 {
		for _, pl := range b.Planes {
			for i := range pl {
				pl[i] = v
			}
		}
	}
	return b
}
