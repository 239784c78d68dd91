package theory

import (
	"fmt"
	"regexp"
	"strings"
)

// Quality is the seventh-chord family a chord symbol belongs to. It is derived
// once from the symbol and drives candidate generation.
type Quality int

const (
	Maj7 Quality = iota
	Dom7
	Min7
	HalfDim7
	Dim7
)

func (q Quality) String() string {
	switch q {
	case Maj7:
		return "maj7"
	case Dom7:
		return "dom7"
	case Min7:
		return "m7"
	case HalfDim7:
		return "m7b5"
	case Dim7:
		return "o7"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// IsMinor reports whether the chord has a minor third and a minor seventh.
func (q Quality) IsMinor() bool {
	return q == Min7 || q == HalfDim7
}

// ParseError reports a chord symbol or tonic that cannot be read.
type ParseError struct {
	Symbol string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("theory: cannot parse %q: %s", e.Symbol, e.Reason)
}

var (
	rootRe = regexp.MustCompile(`[A-G][#b]?`)
	// Alternation order matters: longer tokens must win over their prefixes.
	// Capitalized major spellings are matched case-sensitively, so "CM7" is
	// major and "Cm7" minor.
	qualityRe = regexp.MustCompile(`maj7|Maj7|M7|m7b5|ø7?|m7|dim7?|o7|aug7|7|maj|Maj|M|m`)
)

// Chord is a parsed chord symbol.
type Chord struct {
	Symbol  string
	Root    string
	Token   string // raw quality token, "" for a plain triad
	Quality Quality
}

// ParseChord extracts the root and quality of a chord symbol. A symbol without
// a recognizable root is a *ParseError. Unknown quality tokens fall back to
// Maj7, so "C6" or "C9" are read as major-family chords.
func ParseChord(symbol string) (Chord, error) {
	s := strings.TrimSpace(symbol)
	loc := rootRe.FindStringIndex(s)
	if loc == nil {
		return Chord{}, &ParseError{Symbol: symbol, Reason: "no chord root"}
	}
	c := Chord{Symbol: s, Root: s[loc[0]:loc[1]]}
	c.Token = qualityRe.FindString(s[loc[1]:])
	c.Quality = qualityOf(c.Token)
	return c, nil
}

func qualityOf(token string) Quality {
	switch token {
	case "7", "aug7":
		return Dom7
	case "m7", "m":
		return Min7
	case "m7b5", "ø", "ø7":
		return HalfDim7
	case "dim", "dim7", "o7":
		return Dim7
	case "maj7", "Maj7", "M7", "maj", "Maj", "M":
		return Maj7
	}
	return Maj7
}

// ChromaticIndex returns the semitone distance (0..11) from the tonic of scale
// up to root.
func ChromaticIndex(root string, scale []string) (int, error) {
	if len(scale) == 0 {
		return 0, &ParseError{Symbol: root, Reason: "empty scale"}
	}
	rootPC, err := PitchClass(root)
	if err != nil {
		return 0, err
	}
	tonicPC, err := PitchClass(scale[0])
	if err != nil {
		return 0, err
	}
	return (rootPC - tonicPC + 12) % 12, nil
}

var (
	degreeNumerals    = [7]string{"I", "II", "III", "IV", "V", "VI", "VII"}
	chromaticNumerals = [12]string{"I", "bII", "II", "bIII", "III", "IV", "bV", "V", "bVI", "VI", "bVII", "VII"}
)

// RomanNumeral returns the upper-case scale-degree numeral of root in scale.
// Roots outside the scale are spelled relative to the nearest degree: a root
// whose flattened name is in the scale becomes "#N", one whose sharpened name
// is in the scale becomes "bN". Anything else uses the chromatic spelling.
func RomanNumeral(root string, scale []string) (string, error) {
	degrees := scale
	if len(degrees) > len(degreeNumerals) {
		degrees = degrees[:len(degreeNumerals)]
	}
	if i := indexOf(degrees, root); i >= 0 {
		return degreeNumerals[i], nil
	}
	if i := indexOf(degrees, flatten(root)); i >= 0 {
		return "#" + degreeNumerals[i], nil
	}
	if i := indexOf(degrees, sharpen(root)); i >= 0 {
		return "b" + degreeNumerals[i], nil
	}
	idx, err := ChromaticIndex(root, scale)
	if err != nil {
		return "", err
	}
	return chromaticNumerals[idx], nil
}

// flatten lowers a note by a semitone in name only: a sharp is dropped,
// otherwise a flat is appended.
func flatten(note string) string {
	if strings.Contains(note, "#") {
		return note[:1]
	}
	return note + "b"
}

func sharpen(note string) string {
	if strings.Contains(note, "b") {
		return note[:1]
	}
	return note + "#"
}

func indexOf(notes []string, note string) int {
	for i, n := range notes {
		if n == note {
			return i
		}
	}
	return -1
}
