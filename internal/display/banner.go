// Package display renders the human-facing parts of a run: the startup
// banner and compact labels for sizes, durations, rates and audio formats.
package display

import (
	"fmt"
	"io"

	"github.com/backmassage/reelcat/internal/term"
)

const banner = `                   _               _
 _ __   ___   ___ | |  ___   __ _ | |_
| '__| / _ \ / _ \| | / __| / _` + "`" + ` || __|
| |   |  __/|  __/| || (__ | (_| || |_
|_|    \___| \___||_| \___| \__,_| \__|`

// PrintBanner writes the ASCII art banner, in magenta when colors are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprintln(w, term.Magenta.Sprint(banner))
	fmt.Fprintln(w, "  v"+version)
}
