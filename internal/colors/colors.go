// Package colors holds the palette of the apkclone CLI.
//
// Colors are disabled when stdout is not a terminal; fatih/color detects
// that on its own. Init overrides the detection from the --color flag.
package colors

import "github.com/fatih/color"

// Init overrides the detected setting. A nil forceColor keeps it.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

// Done styles the result line of a successful clone.
func Done() *color.Color { return color.New(color.Bold, color.FgHiGreen) }

// Failed styles a classified failure message.
func Failed() *color.Color { return color.New(color.Bold, color.FgHiRed) }

// Progress styles the spinner prefix.
func Progress() *color.Color { return color.New(color.FgBlue) }

// Path styles file paths.
func Path() *color.Color { return color.New(color.Bold) }

// Detail styles secondary information such as sizes.
func Detail() *color.Color { return color.New(color.Faint) }
