package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` __      __                      _         _   `, "#34d399"},
	{` \ \    / /__ _ _  _ _ __  ___ (_)_ _  __| |_ `, "#2dd4bf"},
	{`  \ \/\/ / _' | || | '_ \/ _ \| | ' \/ _|  _|`, "#22d3ee"},
	{`   \_/\_/\__,_|\_, | .__/\___/|_|_||_\__|\__|`, "#38bdf8"},
	{`               |__/|_|                        `, "#60a5fa"},
}

// PrintBanner writes the waypoint banner followed by the version to w.
// Colors degrade to the terminal's profile.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()

	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line.text).Foreground(p.Color(line.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
