package harmony

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/starford/numeral/internal/theory"
)

// Weights holds the tunable constants of the analysis.
//
// PreserveDiatonic keeps the ii-V pass from boosting a chord whose leading
// candidate is already diatonic in the tonic, so Am7 D7 Gmaj7 in C reads
// "vi V7/V I/V" rather than "ii/V V7/V I/V". This departs from a literal
// neighbour-pair rule on purpose; turn it off to get the literal reading.
type Weights struct {
	Divider          float64 `yaml:"divider"`    // seed = 1 - distance/Divider
	IIV              float64 `yaml:"ii_v"`       // neighbor ii-V and iv-BD pairs
	V                float64 `yaml:"v"`          // dominant resolving to its target
	I                float64 `yaml:"i"`          // the resolution target
	II               float64 `yaml:"ii"`         // ii (or iv) before the chosen dominant
	MinorV           float64 `yaml:"minor_v"`    // minor-key V after a half-diminished ii
	KeyChange        float64 `yaml:"key_change"` // added to an interrupted local key
	PreserveDiatonic bool    `yaml:"preserve_diatonic"`
}

// DefaultWeights returns the stock tuning.
func DefaultWeights() Weights {
	return Weights{
		Divider:          10,
		IIV:              1.1,
		V:                10,
		I:                4,
		II:               10,
		MinorV:           35,
		KeyChange:        2,
		PreserveDiatonic: true,
	}
}

// Slot is one chord of a sequence with its candidates. Weights[i] belongs to
// Candidates[i]; nothing else changes once the slot is built.
type Slot struct {
	Symbol     string
	Root       string
	Quality    theory.Quality
	Index      int
	Candidates []Candidate
	Weights    []float64
}

// best returns the index of the heaviest candidate, or -1 for an empty slot.
// floats.MaxIdx returns the lowest index among equal maxima and candidates
// are stored in Order, so ties go to the earlier template.
func (s *Slot) best() int {
	if len(s.Weights) == 0 {
		return -1
	}
	return floats.MaxIdx(s.Weights)
}

// runnerUp returns the index of the second heaviest candidate, or -1.
func (s *Slot) runnerUp() int {
	b := s.best()
	second := -1
	for i, w := range s.Weights {
		if i == b {
			continue
		}
		if second < 0 || w > s.Weights[second] {
			second = i
		}
	}
	return second
}

func (s *Slot) bestKey() (Key, bool) {
	b := s.best()
	if b < 0 {
		return "", false
	}
	return s.Candidates[b].Key, true
}

func (s *Slot) find(pos Position, k Key) int {
	for i, c := range s.Candidates {
		if c.Position == pos && c.Key == k {
			return i
		}
	}
	return -1
}

func (s *Slot) findKey(k Key) int {
	for i, c := range s.Candidates {
		if c.Key == k {
			return i
		}
	}
	return -1
}

// delta collects the changes of one pass so they are all computed against
// the same state and applied together.
type delta struct {
	scale [][]float64
	add   [][]float64
}

func newDelta(slots []Slot) *delta {
	d := &delta{
		scale: make([][]float64, len(slots)),
		add:   make([][]float64, len(slots)),
	}
	for i := range slots {
		n := len(slots[i].Weights)
		d.scale[i] = make([]float64, n)
		d.add[i] = make([]float64, n)
		for j := range d.scale[i] {
			d.scale[i][j] = 1
		}
	}
	return d
}

// changed reports how many candidates the pass touched.
func (d *delta) changed() int {
	n := 0
	for i := range d.scale {
		for j := range d.scale[i] {
			if d.scale[i][j] != 1 || d.add[i][j] != 0 {
				n++
			}
		}
	}
	return n
}

func (d *delta) apply(slots []Slot) {
	for i := range slots {
		floats.Mul(slots[i].Weights, d.scale[i])
		floats.Add(slots[i].Weights, d.add[i])
	}
}

type pass struct {
	name string
	run  func(w Weights, slots []Slot, d *delta)
}

// The order is fixed: each pass reads what the previous one left.
var passes = []pass{
	{"cadence", cadencePass},
	{"ii-v", iiVPass},
	{"key-change", keyChangePass},
}

func reinforce(slots []Slot, w Weights, logger *slog.Logger) {
	for _, p := range passes {
		d := newDelta(slots)
		p.run(w, slots, d)
		d.apply(slots)
		logger.Debug("harmony: pass applied",
			slog.String("pass", p.name),
			slog.Int("changed", d.changed()),
		)
	}
}

// cadencePass rewards adjacent pairs that form a ii-V, a iv-BD or a dominant
// resolving to its target.
func cadencePass(w Weights, slots []Slot, d *delta) {
	for i := 1; i < len(slots); i++ {
		prev, cur := &slots[i-1], &slots[i]
		for pi, p := range prev.Candidates {
			for ci, c := range cur.Candidates {
				if p.Key == c.Key &&
					((p.Position == PosII && c.Position == PosV) ||
						(p.Position == PosIVm && c.Position == PosBD)) {
					d.scale[i-1][pi] *= w.IIV
					d.scale[i][ci] *= w.IIV
				}
				if !p.Position.IsDominant() {
					continue
				}
				resolvesToDegree := string(p.Key) == string(c.Position) && c.Key == KeyI
				resolvesToTonic := p.Key == c.Key && c.Position == PosI
				if resolvesToDegree || resolvesToTonic {
					d.scale[i-1][pi] *= w.V
					d.scale[i][ci] *= w.I
				}
			}
		}
	}
}

// iiVPass locks a minor-type chord onto the key of the dominant after it.
func iiVPass(w Weights, slots []Slot, d *delta) {
	for i := 0; i+1 < len(slots); i++ {
		cur, next := &slots[i], &slots[i+1]
		if !cur.Quality.IsMinor() || next.Quality != theory.Dom7 {
			continue
		}
		cb, nb := cur.best(), next.best()
		if cb < 0 || nb < 0 {
			continue
		}
		if w.PreserveDiatonic && cur.Candidates[cb].IsDiatonic() {
			continue
		}
		follower := next.Candidates[nb]
		target := PosII
		if follower.Position == PosBD {
			target = PosIVm
		}
		if j := cur.find(target, follower.Key); j >= 0 {
			d.scale[i][j] *= w.II
		}
		if cur.Quality == theory.HalfDim7 {
			if j := next.find(PosV, follower.Key.Minor()); j >= 0 {
				d.scale[i+1][j] *= w.MinorV
			}
		}
	}
}

// keyChangePass pulls an interior chord back into the key both of its
// neighbours agree on.
func keyChangePass(w Weights, slots []Slot, d *delta) {
	for i := 1; i+1 < len(slots); i++ {
		prevKey, ok := slots[i-1].bestKey()
		if !ok {
			continue
		}
		nextKey, ok := slots[i+1].bestKey()
		if !ok || nextKey != prevKey {
			continue
		}
		curKey, ok := slots[i].bestKey()
		if !ok || curKey == prevKey {
			continue
		}
		if j := slots[i].findKey(prevKey); j >= 0 {
			d.add[i][j] += w.KeyChange
		}
	}
}
