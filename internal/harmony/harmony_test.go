package harmony

import (
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/starford/numeral/internal/theory"
)

func analyze(t *testing.T, a *Analyzer, progression, key string) string {
	t.Helper()
	labels, err := a.Analyze(strings.Fields(progression), key)
	if err != nil {
		t.Fatalf("Analyze(%q, %q): %v", progression, key, err)
	}
	return strings.Join(labels, " ")
}

func functional() *Analyzer {
	return New().ShowFunctions(true)
}

func TestAnalyze_Diatonic(t *testing.T) {
	a := New()
	if got := analyze(t, a, "C G Am F", "C"); got != "I V vi IV" {
		t.Errorf("labels = %q, want %q", got, "I V vi IV")
	}
	if got := analyze(t, a, "Dm7 G7 Cmaj7 Am7", "C"); got != "ii V7 I vi" {
		t.Errorf("labels = %q, want %q", got, "ii V7 I vi")
	}
}

func TestAnalyze_DiatonicChromaticRoots(t *testing.T) {
	got := analyze(t, New(), "F#m7b5 Bb7 Ebmaj7", "C")
	if got != "#ivø7 bVII7 bIII" {
		t.Errorf("labels = %q, want %q", got, "#ivø7 bVII7 bIII")
	}
}

func TestAnalyze_Functional(t *testing.T) {
	cases := []struct {
		progression string
		key         string
		want        string
	}{
		{"Dm7 G7 Cmaj7", "C", "ii V7 I"},
		{"Fm7 Bb7", "C", "iv BD7"},
		{"F#m7b5 B7", "C", "iiø7/iii V7/iii"},
		{"D7", "C", "V7/V"},
		{"Em7 A7 D7", "G", "vi V7/V V7"},
		{"Em7 A7 Dm7", "C", "iii V7/ii ii"},
		{"F7 Em7", "C", "TT7/iii iii"},
		{"B7 E7 A7 D7 G7 C7", "C", "V7/iii V7/vi V7/ii V7/V V7 V7/IV"},
		{"Dbmaj7 Eb7 Abmaj7", "C", "IV/bVI V7/bVI I/bVI"},
		{"Em7b5 A7 Dm7", "F", "iiø7/vi V7/vi vi"},
		{"Gm7b5 C7", "Ab", "iiø7/vi V7/vi"},
		{"Cmaj7 C#dim7 Dm7", "C", "I viio7/ii ii"},
	}
	for _, tc := range cases {
		if got := analyze(t, functional(), tc.progression, tc.key); got != tc.want {
			t.Errorf("%s in %s = %q, want %q", tc.progression, tc.key, got, tc.want)
		}
	}
}

func TestAnalyze_KeyChangeSmoothing(t *testing.T) {
	got := analyze(t, functional(), "Dbmaj7 Cm7 Dbmaj7", "C")
	if got != "IV/bVI iii/bVI IV/bVI" {
		t.Errorf("labels = %q, want %q", got, "IV/bVI iii/bVI IV/bVI")
	}
}

func TestAnalyze_PreserveDiatonicOff(t *testing.T) {
	w := DefaultWeights()
	w.PreserveDiatonic = false
	a := New(WithWeights(w)).ShowFunctions(true)
	if got := analyze(t, a, "Em7 A7 D7", "G"); got != "ii/V V7/V V7" {
		t.Errorf("labels = %q, want %q", got, "ii/V V7/V V7")
	}
	if got := analyze(t, a, "Am7 D7 Gmaj7", "C"); !strings.HasPrefix(got, "ii/V ") {
		t.Errorf("labels = %q, want ii/V first", got)
	}
}

func TestAnalyze_PreserveDiatonicKeepsTonicReading(t *testing.T) {
	a := New().ShowFunctions(true)
	if got := analyze(t, a, "Am7 D7 Gmaj7", "C"); got != "vi V7/V I/V" {
		t.Errorf("labels = %q, want %q", got, "vi V7/V I/V")
	}
}

func TestAnalyze_Empty(t *testing.T) {
	displays := []Display{
		{},
		{ShowFunctions: true},
		{ShowFunctions: true, ShowOriginalChords: true, AllHarmonicFunctions: true},
		{ShowOriginalChords: true, ExplicitMinorSeventh: true},
	}
	for _, d := range displays {
		labels, err := New().AnalyzeWith(nil, "C", d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if labels == nil || len(labels) != 0 {
			t.Errorf("labels = %#v, want empty slice", labels)
		}
	}
}

func TestAnalyze_LengthMatchesInput(t *testing.T) {
	progressions := []string{
		"C",
		"Dm7 G7",
		"C G Am F Dm7 G7 C",
		"Gm7 C7 F#m7b5 B7 Bm7b5 E7 Am7 D7",
		"Cmaj7 C#dim7 Dm7 D#dim7 Em7 A7 Dm7 G7",
	}
	for _, p := range progressions {
		in := strings.Fields(p)
		for _, a := range []*Analyzer{New(), functional(), functional().AllHarmonicFunctions(true)} {
			labels, err := a.Analyze(in, "C")
			if err != nil {
				t.Fatalf("Analyze(%q): %v", p, err)
			}
			if len(labels) != len(in) {
				t.Errorf("len(labels) = %d, want %d for %q", len(labels), len(in), p)
			}
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := functional().AllHarmonicFunctions(true)
	in := strings.Fields("Gm7 C7 F#m7b5 B7 Bm7b5 E7 Dbmaj7 Cm7 Dbmaj7")
	first, err := a.Analyze(in, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.Analyze(in, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(first, second) {
		t.Errorf("first = %v, second = %v", first, second)
	}
}

func TestAnalyze_Concurrent(t *testing.T) {
	a := functional()
	in := strings.Fields("F#m7b5 B7 Em7 A7 Dm7 G7 Cmaj7")
	want, err := a.Analyze(in, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := a.Analyze(in, "C")
			if err != nil || !slices.Equal(got, want) {
				errs <- strings.Join(got, " ")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent labels = %q, want %q", got, strings.Join(want, " "))
	}
}

func TestAnalyze_ShowOriginalChords(t *testing.T) {
	a := functional().ShowOriginalChords(true)
	if got := analyze(t, a, "Dm7 G7 Cmaj7", "C"); got != "Dm7:ii G7:V7 Cmaj7:I" {
		t.Errorf("labels = %q", got)
	}
}

func TestAnalyze_AllHarmonicFunctions(t *testing.T) {
	a := functional().AllHarmonicFunctions(true)
	labels, err := a.Analyze([]string{"Dm7", "G7", "Cmaj7"}, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"ii (vi/IV)", "V7 (BD7/VI)", "I (IV/V)"}
	if !slices.Equal(labels, want) {
		t.Errorf("labels = %q, want %q", labels, want)
	}
}

func TestAnalyze_SuffixOptions(t *testing.T) {
	a := New(WithDisplay(Display{ShowFunctions: true, ExplicitMinorSeventh: true}))
	if got := analyze(t, a, "Dm7 G7", "C"); got != "iim7 V7" {
		t.Errorf("labels = %q, want %q", got, "iim7 V7")
	}
	if got := analyze(t, a, "F#m7b5 B7", "C"); got != "iim7b5/iii V7/iii" {
		t.Errorf("labels = %q, want %q", got, "iim7b5/iii V7/iii")
	}
}

func TestAnalyze_ParseErrors(t *testing.T) {
	_, err := functional().Analyze([]string{"Dm7", "xyz"}, "C")
	var pe *theory.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *theory.ParseError", err)
	}
	if !strings.Contains(err.Error(), "chord 2") {
		t.Errorf("error %q does not name the chord position", err)
	}

	_, err = New().Analyze([]string{"C"}, "H")
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want *theory.ParseError", err)
	}
}

func TestExplain(t *testing.T) {
	reports, err := New().Explain([]string{"Dm7", "G7", "Cmaj7"}, "C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("len(reports) = %d, want 3", len(reports))
	}
	dm := reports[0]
	if dm.Symbol != "Dm7" || dm.Label != "ii" {
		t.Errorf("report = %s %s, want Dm7 ii", dm.Symbol, dm.Label)
	}
	if len(dm.Candidates) != 6 {
		t.Fatalf("len(candidates) = %d, want 6", len(dm.Candidates))
	}
	if dm.Candidates[0].Label != "ii" || !approx(dm.Candidates[0].Weight, 1.1) {
		t.Errorf("top candidate = %s %.3f, want ii 1.100", dm.Candidates[0].Label, dm.Candidates[0].Weight)
	}
	for i := 1; i < len(dm.Candidates); i++ {
		if dm.Candidates[i].Weight > dm.Candidates[i-1].Weight {
			t.Errorf("candidates not sorted by weight: %v", dm.Candidates)
		}
	}
	if g := reports[1].Candidates[0]; g.Label != "V7" || !approx(g.Weight, 11) {
		t.Errorf("G7 top candidate = %s %.3f, want V7 11", g.Label, g.Weight)
	}
}

func TestExplainWith_Display(t *testing.T) {
	a := New()
	reports, err := a.ExplainWith([]string{"Dm7", "G7"}, "C", Display{ExplicitMinorSeventh: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reports[0].Label != "iim7" || reports[0].Candidates[0].Label != "iim7" {
		t.Errorf("report = %+v", reports[0])
	}
	plain, _ := a.Explain([]string{"Dm7", "G7"}, "C")
	if plain[0].Label != "ii" {
		t.Errorf("default explain label = %q, want ii", plain[0].Label)
	}
	if empty, err := a.ExplainWith(nil, "C", Display{}); err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ExplainWith(nil) = %v, %v", empty, err)
	}
}

func TestFingerprint(t *testing.T) {
	base := New()
	if base.Fingerprint("C") != New().Fingerprint("C") {
		t.Error("equal settings should share a fingerprint")
	}
	if base.Fingerprint("C") == base.Fingerprint("G") {
		t.Error("tonic should change the fingerprint")
	}
	if base.Fingerprint("C") == New().ShowFunctions(true).Fingerprint("C") {
		t.Error("display should change the fingerprint")
	}
	w := DefaultWeights()
	w.KeyChange = 3
	if base.Fingerprint("C") == New(WithWeights(w)).Fingerprint("C") {
		t.Error("weights should change the fingerprint")
	}
}

func TestDistanceFromI(t *testing.T) {
	cases := map[Key]int{
		"I": 0, "IV": 1, "V": 1, "bVII": 3, "II": 3, "bIII": 5, "VI": 5,
		"bVI": 7, "III": 7, "bII": 9, "VII": 9, "bV": 11,
		"vi": 0, "ii": 1, "iii": 1, "v": 3, "vii": 3, "i": 5, "bv": 5,
		"iv": 7, "bii": 7, "bvii": 9, "bvi": 9, "biii": 11,
	}
	for k, want := range cases {
		got, err := DistanceFromI(k)
		if err != nil {
			t.Fatalf("DistanceFromI(%q): %v", k, err)
		}
		if got != want {
			t.Errorf("DistanceFromI(%q) = %d, want %d", k, got, want)
		}
	}
}

func TestDistanceFromI_Unknown(t *testing.T) {
	_, err := DistanceFromI("X")
	var re *RangeError
	if !errors.As(err, &re) {
		t.Errorf("error = %v, want *RangeError", err)
	}
}

func TestKey_IsMinor(t *testing.T) {
	for k, want := range map[Key]bool{"I": false, "bII": false, "ii": true, "bvi": true, "VII": false} {
		if got := k.IsMinor(); got != want {
			t.Errorf("%q.IsMinor() = %v, want %v", k, got, want)
		}
	}
}

func TestGenerate(t *testing.T) {
	counts := map[theory.Quality]int{
		theory.Maj7: 2, theory.Dom7: 5, theory.Min7: 6, theory.HalfDim7: 1, theory.Dim7: 4,
	}
	for q, want := range counts {
		cands, weights, err := Generate(0, q, DefaultWeights())
		if err != nil {
			t.Fatalf("Generate(0, %v): %v", q, err)
		}
		if len(cands) != want || len(weights) != want {
			t.Errorf("Generate(0, %v) = %d candidates, want %d", q, len(cands), want)
		}
		for i, c := range cands {
			if c.Order != i {
				t.Errorf("candidate %d has order %d", i, c.Order)
			}
		}
	}
}

func TestGenerate_Dominant(t *testing.T) {
	cands, weights, err := Generate(7, theory.Dom7, DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct {
		label  string
		weight float64
	}{
		{"V7", 1.0},
		{"V7/i", 0.5},
		{"BD7/VI", 0.5},
		{"TT7/bV", -0.1},
		{"TT7/bv", 0.5},
	}
	for i, w := range want {
		if got := cands[i].Label(DefaultDisplay()); got != w.label {
			t.Errorf("candidate %d = %q, want %q", i, got, w.label)
		}
		if !approx(weights[i], w.weight) {
			t.Errorf("weight %d = %.3f, want %.3f", i, weights[i], w.weight)
		}
	}
}

func TestGenerate_OutOfRange(t *testing.T) {
	for _, idx := range []int{-1, 12} {
		_, _, err := Generate(idx, theory.Maj7, DefaultWeights())
		var re *RangeError
		if !errors.As(err, &re) {
			t.Errorf("Generate(%d) error = %v, want *RangeError", idx, err)
		}
	}
}

func TestSlot_TieBreakByOrder(t *testing.T) {
	s := Slot{
		Candidates: []Candidate{{Key: "IV", Position: PosII, Order: 0}, {Key: "V", Position: PosIm, Order: 1}},
		Weights:    []float64{0.9, 0.9},
	}
	if got := s.best(); got != 0 {
		t.Errorf("best = %d, want 0", got)
	}
	if got := s.runnerUp(); got != 1 {
		t.Errorf("runnerUp = %d, want 1", got)
	}
	empty := Slot{}
	if functionalLabel(&empty, DefaultDisplay()) != Unknown {
		t.Errorf("empty slot label != %q", Unknown)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
