package chart

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// DefaultBarsPerLine is used when PrintBars is given a non-positive value.
const DefaultBarsPerLine = 4

// Labels are measured in terminal cells so that glyphs like ø line up. The
// condition is fixed instead of read from the locale.
var width = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

// PrintBars lays out labels in bars, one label per chord. Two chords of the
// same bar whose labels share a local key are joined as "ii-V7/IV". Every bar
// is padded to the widest one and a line ends after barsPerLine bars.
func PrintBars(chords []ChordInBar, labels []string, barsPerLine int) (string, error) {
	if len(chords) != len(labels) {
		return "", fmt.Errorf("chart: %d chords but %d labels", len(chords), len(labels))
	}
	if barsPerLine <= 0 {
		barsPerLine = DefaultBarsPerLine
	}
	if len(chords) == 0 {
		return "", nil
	}

	var bars []string
	current := "|"
	bar := 0
	for i := 0; i < len(chords); i++ {
		for chords[i].Bar > bar {
			bars = append(bars, current)
			current = "|"
			bar++
		}
		if i+1 < len(chords) && chords[i+1].Bar == chords[i].Bar {
			if joined, ok := join(labels[i], labels[i+1]); ok {
				current += " " + joined
				i++
				continue
			}
		}
		current += " " + labels[i]
	}
	bars = append(bars, current)

	cell := 0
	for _, b := range bars {
		cell = max(cell, width.StringWidth(b))
	}
	cell++

	var out strings.Builder
	for i, b := range bars {
		out.WriteString(width.FillRight(b, cell))
		if i%barsPerLine == barsPerLine-1 || i == len(bars)-1 {
			out.WriteString("|\n")
		}
	}
	return out.String(), nil
}

// join merges "ii/IV" and "V7/IV" into "ii-V7/IV". Labels carrying a
// runner-up or a chord prefix are never merged.
func join(a, b string) (string, bool) {
	if !simple(a) || !simple(b) {
		return "", false
	}
	fa, ka, _ := strings.Cut(a, "/")
	fb, kb, _ := strings.Cut(b, "/")
	if ka == "" || ka != kb {
		return "", false
	}
	return fa + "-" + fb + "/" + ka, true
}

func simple(label string) bool {
	return strings.Count(label, "/") == 1 && !strings.ContainsAny(label, " :")
}
