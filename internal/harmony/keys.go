package harmony

import (
	"fmt"
	"strings"
)

// Key is a local key expressed as a Roman numeral relative to the tonic.
// Upper-case labels are major keys, lower-case labels are minor keys; a
// leading b is a flat in both cases ("bVI", "bvi").
type Key string

const KeyI Key = "I"

// IsMinor reports whether k names a minor key.
func (k Key) IsMinor() bool {
	s := strings.TrimLeft(string(k), "b#")
	return s != "" && s == strings.ToLower(s)
}

// Minor returns the minor key on the same degree.
func (k Key) Minor() Key {
	return Key(strings.ToLower(string(k)))
}

var chromatic = [12]Key{"I", "bII", "II", "bIII", "III", "IV", "bV", "V", "bVI", "VI", "bVII", "VII"}

// Circles of fifths ordered by closeness to the tonic. Entries come in pairs
// equidistant from I: IV and V, bVII and II, and so on.
var (
	majorCircle = [12]Key{"I", "IV", "V", "bVII", "II", "bIII", "VI", "bVI", "III", "bII", "VII", "bV"}
	minorCircle = [12]Key{"vi", "ii", "iii", "v", "vii", "i", "bv", "iv", "bii", "bvii", "bvi", "biii"}
)

// RangeError reports an index or label outside the fixed tables. It indicates
// a defect in the caller, never bad user input.
type RangeError struct {
	What  string
	Value any
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("harmony: %s %v out of range", e.What, e.Value)
}

// DistanceFromI returns how far k lies from the tonic on the circle of fifths
// matching its case.
func DistanceFromI(k Key) (int, error) {
	circle := majorCircle
	if k.IsMinor() {
		circle = minorCircle
	}
	for idx, c := range circle {
		if c != k {
			continue
		}
		if idx == 0 || idx%2 == 1 {
			return idx, nil
		}
		return idx - 1, nil
	}
	return 0, &RangeError{What: "key", Value: k}
}

// keyAt returns the key d semitones away from chromatic index.
func keyAt(index, d int, minor bool) Key {
	k := chromatic[((index+d)%12+12)%12]
	if minor {
		return k.Minor()
	}
	return k
}
