// Package harmony infers the harmonic function of each chord in a progression
// and renders it as a Roman numeral relative to a tonic.
//
// Every chord gets a list of candidate interpretations seeded by how far their
// local key lies from the tonic. A fixed sequence of cadence passes then
// reinforces candidates that agree with their neighbours, and the heaviest
// candidate of each chord is rendered.
package harmony

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/numeral/internal/theory"
)

// Analyzer converts chord symbols into Roman-numeral labels. It holds only
// configuration, so one Analyzer may serve concurrent calls as long as the
// setters are used before it is shared.
type Analyzer struct {
	weights Weights
	display Display
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWeights overrides the tuning constants.
func WithWeights(w Weights) Option {
	return func(a *Analyzer) {
		a.weights = w
	}
}

// WithDisplay sets the default rendering options.
func WithDisplay(d Display) Option {
	return func(a *Analyzer) {
		a.display = d
	}
}

// WithLogger sets the logger used for candidate tables at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// New returns an Analyzer with default weights and display.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		weights: DefaultWeights(),
		display: DefaultDisplay(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.weights.Divider == 0 {
		a.weights.Divider = DefaultWeights().Divider
	}
	return a
}

// Display returns the default rendering options.
func (a *Analyzer) Display() Display { return a.display }

// Weights returns the tuning constants.
func (a *Analyzer) Weights() Weights { return a.weights }

// Fingerprint identifies the weights and default display together with
// tonic. Labels produced under equal fingerprints are equal.
func (a *Analyzer) Fingerprint(tonic string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%+v|%+v|%s", a.weights, a.display, tonic))
	return hex.EncodeToString(h[:8])
}

// ShowFunctions switches between functional labels and plain scale degrees.
func (a *Analyzer) ShowFunctions(v bool) *Analyzer {
	a.display.ShowFunctions = v
	return a
}

// ShowOriginalChords prefixes each label with its chord symbol.
func (a *Analyzer) ShowOriginalChords(v bool) *Analyzer {
	a.display.ShowOriginalChords = v
	return a
}

// AllHarmonicFunctions appends the runner-up candidate in parentheses.
func (a *Analyzer) AllHarmonicFunctions(v bool) *Analyzer {
	a.display.AllHarmonicFunctions = v
	return a
}

// Analyze labels chords relative to tonic using the default display. The
// result has one label per chord.
func (a *Analyzer) Analyze(chords []string, tonic string) ([]string, error) {
	return a.AnalyzeWith(chords, tonic, a.display)
}

// AnalyzeWith is Analyze with an explicit display.
func (a *Analyzer) AnalyzeWith(chords []string, tonic string, d Display) ([]string, error) {
	if len(chords) == 0 {
		return []string{}, nil
	}
	slots, scale, err := a.build(chords, tonic)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(slots))
	if d.ShowFunctions {
		reinforce(slots, a.weights, a.logger)
		for i := range slots {
			labels[i] = functionalLabel(&slots[i], d)
		}
	} else {
		for i := range slots {
			if labels[i], err = diatonicLabel(&slots[i], scale, d); err != nil {
				return nil, fmt.Errorf("harmony: chord %d: %w", i+1, err)
			}
		}
	}

	if d.ShowOriginalChords {
		for i := range labels {
			labels[i] = slots[i].Symbol + ":" + labels[i]
		}
	}
	return labels, nil
}

// CandidateReport is one candidate with its final weight.
type CandidateReport struct {
	Label    string   `json:"label"`
	Key      Key      `json:"key"`
	Position Position `json:"position"`
	Weight   float64  `json:"weight"`
	Order    int      `json:"order"`
}

// SlotReport explains how one chord was labelled.
type SlotReport struct {
	Symbol     string            `json:"symbol"`
	Label      string            `json:"label"`
	Candidates []CandidateReport `json:"candidates"`
}

// Explain runs the functional analysis and returns every candidate of every
// chord, heaviest first.
func (a *Analyzer) Explain(chords []string, tonic string) ([]SlotReport, error) {
	return a.ExplainWith(chords, tonic, a.display)
}

// ExplainWith is Explain with an explicit display. Labels are always
// functional, whatever d.ShowFunctions says.
func (a *Analyzer) ExplainWith(chords []string, tonic string, d Display) ([]SlotReport, error) {
	if len(chords) == 0 {
		return []SlotReport{}, nil
	}
	slots, _, err := a.build(chords, tonic)
	if err != nil {
		return nil, err
	}
	reinforce(slots, a.weights, a.logger)

	d.ShowFunctions = true
	reports := make([]SlotReport, len(slots))
	for i := range slots {
		s := &slots[i]
		r := SlotReport{
			Symbol:     s.Symbol,
			Label:      functionalLabel(s, d),
			Candidates: make([]CandidateReport, len(s.Candidates)),
		}
		for j, c := range s.Candidates {
			r.Candidates[j] = CandidateReport{
				Label:    c.Label(d),
				Key:      c.Key,
				Position: c.Position,
				Weight:   s.Weights[j],
				Order:    c.Order,
			}
		}
		slices.SortStableFunc(r.Candidates, func(x, y CandidateReport) int {
			return cmp.Compare(y.Weight, x.Weight)
		})
		reports[i] = r
	}
	return reports, nil
}

func (a *Analyzer) build(chords []string, tonic string) ([]Slot, []string, error) {
	scale, err := theory.Scale(tonic)
	if err != nil {
		return nil, nil, fmt.Errorf("harmony: key: %w", err)
	}

	debug := a.logger.Enabled(context.Background(), slog.LevelDebug)
	slots := make([]Slot, len(chords))
	for i, sym := range chords {
		c, err := theory.ParseChord(sym)
		if err != nil {
			return nil, nil, fmt.Errorf("harmony: chord %d: %w", i+1, err)
		}
		idx, err := theory.ChromaticIndex(c.Root, scale)
		if err != nil {
			return nil, nil, fmt.Errorf("harmony: chord %d: %w", i+1, err)
		}
		cands, weights, err := Generate(idx, c.Quality, a.weights)
		if err != nil {
			return nil, nil, fmt.Errorf("harmony: chord %d: %w", i+1, err)
		}
		slots[i] = Slot{
			Symbol:     c.Symbol,
			Root:       c.Root,
			Quality:    c.Quality,
			Index:      idx,
			Candidates: cands,
			Weights:    weights,
		}
		if debug {
			a.logger.Debug("harmony: candidates",
				slog.String("chord", c.Symbol),
				slog.Int("index", idx),
				slog.String("quality", c.Quality.String()),
				slog.String("candidates", slots[i].table()),
			)
		}
	}
	return slots, scale, nil
}

// table formats the candidates as "V/I=1.00 v/i=0.50".
func (s *Slot) table() string {
	var b strings.Builder
	for i, c := range s.Candidates {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s/%s=%.2f", c.Position, c.Key, s.Weights[i])
	}
	return b.String()
}
