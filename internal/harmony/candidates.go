package harmony

import (
	"github.com/starford/numeral/internal/theory"
)

// Position is the functional role a chord plays inside its local key.
type Position string

const (
	PosI   Position = "I"
	PosIV  Position = "IV"
	PosV   Position = "V"
	PosII  Position = "ii"
	PosIII Position = "iii"
	PosIVm Position = "iv"
	PosVI  Position = "vi"
	PosVII Position = "vii"
	PosBD  Position = "BD" // backdoor dominant
	PosTT  Position = "TT" // tritone substitute
	PosIm  Position = "i"
	PosTTm Position = "tt"
)

// IsDominant reports whether p resolves like a dominant.
func (p Position) IsDominant() bool {
	return p == PosV || p == PosTT || p == PosBD
}

// Candidate is one interpretation of a chord: a position within a local key.
// Order is the generation index and breaks weight ties.
type Candidate struct {
	Key      Key
	Position Position
	Quality  theory.Quality
	Order    int
}

// IsDiatonic reports whether c is an ordinary degree of the tonic key.
func (c Candidate) IsDiatonic() bool {
	if c.Key != KeyI {
		return false
	}
	switch c.Position {
	case PosI, PosII, PosIII, PosIV, PosV, PosVI, PosVII:
		return true
	}
	return false
}

type template struct {
	pos      Position
	distance int
	minor    bool
}

var templates = map[theory.Quality][]template{
	theory.Maj7: {
		{PosI, 0, false},
		{PosIV, 7, false},
	},
	theory.Dom7: {
		{PosV, -7, false},
		{PosV, -7, true},
		{PosBD, 2, false},
		{PosTT, -1, false},
		{PosTT, -1, true},
	},
	theory.Min7: {
		{PosII, -2, false},
		{PosIII, -4, false},
		{PosVI, -9, false},
		{PosIVm, -5, false},
		{PosTTm, -8, false},
		{PosIm, 0, false},
	},
	theory.HalfDim7: {
		{PosII, -2, true},
	},
	theory.Dim7: {
		{PosVII, 1, true},
		{PosVII, -2, true},
		{PosVII, -5, true},
		{PosVII, -8, true},
	},
}

// Generate returns every candidate interpretation of a chord of quality q
// whose root sits index semitones above the tonic, in template order, along
// with each candidate's seed weight.
func Generate(index int, q theory.Quality, w Weights) ([]Candidate, []float64, error) {
	if index < 0 || index > 11 {
		return nil, nil, &RangeError{What: "chromatic index", Value: index}
	}
	tmpl := templates[q]
	cands := make([]Candidate, 0, len(tmpl))
	weights := make([]float64, 0, len(tmpl))
	for i, t := range tmpl {
		k := keyAt(index, t.distance, t.minor)
		d, err := DistanceFromI(k)
		if err != nil {
			return nil, nil, err
		}
		cands = append(cands, Candidate{Key: k, Position: t.pos, Quality: q, Order: i})
		weights = append(weights, 1-float64(d)/w.Divider)
	}
	return cands, weights, nil
}
