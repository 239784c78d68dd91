// Package theory provides the pitch and chord-symbol primitives consumed by the
// harmony engine: major scales, pitch classes, chord roots and qualities.
package theory

import (
	"regexp"
	"strings"
)

var (
	flatNotes  = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
	sharpNotes = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

	majorSteps = [7]int{2, 2, 1, 2, 2, 2, 1}

	// Major keys written with sharps in the key signature.
	sharpKeys = map[string]bool{
		"G": true, "D": true, "A": true, "E": true, "B": true, "F#": true, "C#": true,
	}

	letterPitch = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

	tonicRe = regexp.MustCompile(`^[A-G][#b]?$`)
)

// Scale returns the major scale of tonic as eight note names, the octave
// repeated at the end. Sharp-signature keys (and any tonic spelled with #) use
// sharps; every other key uses flats.
func Scale(tonic string) ([]string, error) {
	tonic = strings.TrimSpace(tonic)
	if !tonicRe.MatchString(tonic) {
		return nil, &ParseError{Symbol: tonic, Reason: "tonic must be a note letter A-G with optional # or b"}
	}
	pc, err := PitchClass(tonic)
	if err != nil {
		return nil, err
	}

	notes := flatNotes
	if sharpKeys[tonic] || strings.HasSuffix(tonic, "#") {
		notes = sharpNotes
	}

	scale := make([]string, 0, len(majorSteps)+1)
	scale = append(scale, tonic)
	for _, step := range majorSteps {
		pc = (pc + step) % 12
		scale = append(scale, notes[pc])
	}
	return scale, nil
}

// PitchClass returns the pitch class (0 = C .. 11 = B) of a note name such as
// "Eb" or "F#". Any number of trailing accidentals is accepted.
func PitchClass(note string) (int, error) {
	if note == "" {
		return 0, &ParseError{Symbol: note, Reason: "empty note"}
	}
	pc, ok := letterPitch[note[0]]
	if !ok {
		return 0, &ParseError{Symbol: note, Reason: "unknown note letter"}
	}
	for _, r := range note[1:] {
		switch r {
		case '#':
			pc++
		case 'b':
			pc--
		default:
			return 0, &ParseError{Symbol: note, Reason: "unknown accidental"}
		}
	}
	return ((pc % 12) + 12) % 12, nil
}
