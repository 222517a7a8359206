package theme

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Banner returns the console banner.
func Banner() string {
	const cyan = "\033[36m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	return "" +
		cyan + "  ┌─┐┌─┐┬  ┌─┐┌─┐┌─┐┌─┐┌─┐┌┬┐\n" + reset +
		cyan + "  └─┐├─┤│  ├┤ └─┐│  ├─┤└─┐ │ \n" + reset +
		cyan + "  └─┘┴ ┴┴─┘└─┘└─┘└─┘┴ ┴└─┘ ┴ \n" + reset +
		yellow + "  ───────────────────────────\n" + reset +
		"  weekly sales forecasts and model retraining\n"
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}

// Tone classifies a status line.
type Tone int

const (
	Pending Tone = iota
	Success
	Warning
	Failure
)

var tones = map[Tone]struct {
	icon  string
	color *color.Color
}{
	Pending: {"⏳", color.New(color.FgCyan)},
	Success: {"✅", color.New(color.FgGreen, color.Bold)},
	Warning: {"⚠️ ", color.New(color.FgYellow)},
	Failure: {"❌", color.New(color.FgRed, color.Bold)},
}

// StatusLine formats msg with the icon and color of tone.
func StatusLine(tone Tone, msg string) string {
	t, ok := tones[tone]
	if !ok {
		return msg
	}
	return t.icon + " " + t.color.Sprint(msg)
}

// PrintStatus writes a status line to w.
func PrintStatus(w io.Writer, tone Tone, msg string) {
	fmt.Fprintln(w, StatusLine(tone, msg))
}
