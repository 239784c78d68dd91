package harmony

import (
	"strings"

	"github.com/starford/numeral/internal/theory"
)

// Display controls how labels are rendered. It never affects which candidate
// wins.
type Display struct {
	ShowFunctions        bool `yaml:"show_functions"`
	ShowOriginalChords   bool `yaml:"show_original_chords"`
	AllHarmonicFunctions bool `yaml:"all_harmonic_functions"`
	ExplicitMinorSeventh bool `yaml:"explicit_minor_seventh"`
	HalfDiminishedGlyph  bool `yaml:"half_diminished_glyph"`
}

// DefaultDisplay renders plain diatonic numerals with the ø glyph.
func DefaultDisplay() Display {
	return Display{HalfDiminishedGlyph: true}
}

// Unknown is the label of a chord with no candidates.
const Unknown = "?"

func suffix(q theory.Quality, d Display) string {
	switch q {
	case theory.Dom7:
		return "7"
	case theory.Min7:
		if d.ExplicitMinorSeventh {
			return "m7"
		}
	case theory.HalfDim7:
		if d.HalfDiminishedGlyph {
			return "ø7"
		}
		return "m7b5"
	case theory.Dim7:
		return "o7"
	}
	return ""
}

// Label renders c as position, quality suffix and, outside the tonic, the
// local key: "V7/ii", "iiø7/iii", "I".
func (c Candidate) Label(d Display) string {
	label := string(c.Position) + suffix(c.Quality, d)
	if c.Key == KeyI {
		return label
	}
	return label + "/" + string(c.Key)
}

func functionalLabel(s *Slot, d Display) string {
	b := s.best()
	if b < 0 {
		return Unknown
	}
	label := s.Candidates[b].Label(d)
	if d.AllHarmonicFunctions {
		if r := s.runnerUp(); r >= 0 {
			label += " (" + s.Candidates[r].Label(d) + ")"
		}
	}
	return label
}

// diatonicLabel names the chord by its scale degree only.
func diatonicLabel(s *Slot, scale []string, d Display) (string, error) {
	numeral, err := theory.RomanNumeral(s.Root, scale)
	if err != nil {
		return "", err
	}
	switch s.Quality {
	case theory.Min7, theory.HalfDim7, theory.Dim7:
		numeral = strings.ToLower(numeral)
	}
	return numeral + suffix(s.Quality, d), nil
}
