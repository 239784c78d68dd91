package chartservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/numeral/internal/apperr"
	"github.com/starford/numeral/internal/harmony"
	"github.com/starford/numeral/internal/storage"
	"github.com/starford/numeral/internal/testutil"
)

const autumn = "---\ntitle: Autumn Leaves\nkey: Bb\ntags:\n  - standard\n---\n" +
	"| Cm7 | F7 | Bbmaj7 | Ebmaj7 |\n| Am7b5 | D7 | Gm7 | |\n"

func newService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	a := harmony.New(harmony.WithDisplay(harmony.Display{ShowFunctions: true, HalfDiminishedGlyph: true}))
	return NewService(store, db, a, Config{DefaultKey: "C", Workers: 2}, testutil.Logger())
}

func TestCreateAndGetChart(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateChart(ctx, "autumn.chart", []byte(autumn))
	if err != nil {
		t.Fatalf("CreateChart: %v", err)
	}
	if created.Title != "Autumn Leaves" || created.Key != "Bb" || created.Bars != 8 {
		t.Errorf("created = %+v", created)
	}

	got, err := svc.GetChart(ctx, "autumn.chart")
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if got.Checksum != storage.Checksum([]byte(autumn)) {
		t.Errorf("checksum = %q", got.Checksum)
	}
	if len(got.Chords) != 7 {
		t.Errorf("len(chords) = %d, want 7", len(got.Chords))
	}
}

func TestCreateChart_Errors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateChart(ctx, "notes.txt", []byte("| C |")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad extension: error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateChart(ctx, "bad.chart", []byte("---\nkey: H\n---\n| C |")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad key: error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateChart(ctx, "bad.chart", []byte("| Dm7 xyz |")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad chord: error = %v, want ErrInvalidInput", err)
	}
	_, _ = svc.CreateChart(ctx, "dup.chart", []byte("| C |"))
	if _, err := svc.CreateChart(ctx, "dup.chart", []byte("| C |")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate: error = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateChart_IfMatch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, _ := svc.CreateChart(ctx, "u.chart", []byte("| C |"))

	if _, err := svc.UpdateChart(ctx, "u.chart", []byte("| G7 | C |"), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
	updated, err := svc.UpdateChart(ctx, "u.chart", []byte("| G7 | C |"), created.Checksum)
	if err != nil {
		t.Fatalf("UpdateChart: %v", err)
	}
	if updated.Bars != 2 {
		t.Errorf("bars = %d, want 2", updated.Bars)
	}
	if _, err := svc.UpdateChart(ctx, "missing.chart", []byte("| C |"), ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteChart(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateChart(ctx, "d.chart", []byte("| C |"))

	if err := svc.DeleteChart(ctx, "d.chart"); err != nil {
		t.Fatalf("DeleteChart: %v", err)
	}
	if _, err := svc.GetChart(ctx, "d.chart"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteChart(ctx, "d.chart"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestListAndSearch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateChart(ctx, "autumn.chart", []byte(autumn))
	_, _ = svc.CreateChart(ctx, "blues.chart", []byte("# Blues\n| F7 | Bb7 | F7 | F7 |\n"))

	items, total, err := svc.ListCharts(ctx, 10, 0, "standard", "")
	if err != nil {
		t.Fatalf("ListCharts: %v", err)
	}
	if total != 1 || items[0].Path != "autumn.chart" || items[0].Key != "Bb" {
		t.Errorf("items = %+v total = %d", items, total)
	}

	hits, err := svc.Search(ctx, "Blues", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "blues.chart" {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := svc.Search(ctx, "  ", 10); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty query error = %v, want ErrInvalidInput", err)
	}
}

func TestChartsInKey(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateChart(ctx, "sec.chart", []byte("| F#m7b5 B7 | Em7 |\n"))

	paths, err := svc.ChartsInKey(ctx, "iii")
	if err != nil {
		t.Fatalf("ChartsInKey: %v", err)
	}
	if len(paths) != 1 || paths[0] != "sec.chart" {
		t.Errorf("paths = %v, want [sec.chart]", paths)
	}
	if paths, _ := svc.ChartsInKey(ctx, "bVI"); len(paths) != 0 {
		t.Errorf("paths = %v, want none", paths)
	}
	if _, err := svc.ChartsInKey(ctx, "X"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyze(t *testing.T) {
	svc := newService(t)
	labels, err := svc.Analyze(context.Background(), []string{"Dm7", "G7", "Cmaj7"}, "", svc.Display())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := strings.Join(labels, " "); got != "ii V7 I" {
		t.Errorf("labels = %q, want %q", got, "ii V7 I")
	}
	if _, err := svc.Analyze(context.Background(), []string{"Q7"}, "C", svc.Display()); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyzeBatch_KeepsOrder(t *testing.T) {
	svc := newService(t)
	progs := []Progression{
		{Chords: []string{"Dm7", "G7", "Cmaj7"}, Key: "C"},
		{Chords: []string{"Fm7", "Bb7"}, Key: "C"},
		{Chords: []string{"D7"}},
		{Chords: []string{"F#m7b5", "B7"}, Key: "C"},
	}
	out, err := svc.AnalyzeBatch(context.Background(), progs, svc.Display())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	want := []string{"ii V7 I", "iv BD7", "V7/V", "iiø7/iii V7/iii"}
	for i, w := range want {
		if got := strings.Join(out[i], " "); got != w {
			t.Errorf("progression %d = %q, want %q", i, got, w)
		}
	}
}

func TestAnalyzeBatch_Failure(t *testing.T) {
	svc := newService(t)
	progs := []Progression{{Chords: []string{"C"}}, {Chords: []string{"C"}, Key: "H"}}
	if _, err := svc.AnalyzeBatch(context.Background(), progs, svc.Display()); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyzeChart_UsesCache(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateChart(ctx, "ii-v.chart", []byte("| Dm7 G7 | Cmaj7 |\n"))

	res, err := svc.AnalyzeChart(ctx, "ii-v.chart", svc.Display())
	if err != nil {
		t.Fatalf("AnalyzeChart: %v", err)
	}
	if !res.Cached {
		t.Error("expected cached analysis")
	}
	if got := strings.Join(res.Labels, " "); got != "ii V7 I" {
		t.Errorf("labels = %q", got)
	}
	if !strings.HasPrefix(res.Bars, "| ii V7") {
		t.Errorf("bars = %q", res.Bars)
	}

	d := svc.Display()
	d.ShowOriginalChords = true
	res, err = svc.AnalyzeChart(ctx, "ii-v.chart", d)
	if err != nil {
		t.Fatalf("AnalyzeChart: %v", err)
	}
	if res.Cached || res.Labels[0] != "Dm7:ii" {
		t.Errorf("res = %+v", res)
	}
}

func TestAnalyzeChart_SettingsChangeInvalidatesCache(t *testing.T) {
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	ctx := context.Background()

	degrees := NewService(store, db, harmony.New(), Config{DefaultKey: "C"}, testutil.Logger())
	if _, err := degrees.CreateChart(ctx, "d7.chart", []byte("| D7 |\n")); err != nil {
		t.Fatalf("CreateChart: %v", err)
	}
	res, err := degrees.AnalyzeChart(ctx, "d7.chart", degrees.Display())
	if err != nil {
		t.Fatalf("AnalyzeChart: %v", err)
	}
	if !res.Cached || res.Labels[0] != "II7" {
		t.Fatalf("degrees: res = %+v", res)
	}
	if paths, _ := degrees.ChartsInKey(ctx, "V"); len(paths) != 0 {
		t.Errorf("degrees: ChartsInKey(V) = %v, want none", paths)
	}

	functions := NewService(store, db, harmony.New(harmony.WithDisplay(harmony.Display{ShowFunctions: true})),
		Config{DefaultKey: "C"}, testutil.Logger())
	res, err = functions.AnalyzeChart(ctx, "d7.chart", functions.Display())
	if err != nil {
		t.Fatalf("AnalyzeChart: %v", err)
	}
	if res.Cached || res.Labels[0] != "V7/V" {
		t.Errorf("functions: res = %+v, want uncached V7/V", res)
	}

	w := harmony.DefaultWeights()
	w.PreserveDiatonic = false
	reweighted := NewService(store, db, harmony.New(harmony.WithWeights(w)), Config{DefaultKey: "C"}, testutil.Logger())
	if degrees.Settings() == reweighted.Settings() || degrees.Settings() == functions.Settings() {
		t.Error("settings fingerprints should differ")
	}
	if other := NewService(store, db, harmony.New(), Config{DefaultKey: "G"}, testutil.Logger()); other.Settings() == degrees.Settings() {
		t.Error("default key should change settings fingerprint")
	}

	if err := functions.IndexFile("d7.chart", []byte("| D7 |\n")); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	res, err = functions.AnalyzeChart(ctx, "d7.chart", functions.Display())
	if err != nil {
		t.Fatalf("AnalyzeChart: %v", err)
	}
	if !res.Cached || res.Labels[0] != "V7/V" {
		t.Errorf("after reindex: res = %+v", res)
	}
	paths, err := functions.ChartsInKey(ctx, "V")
	if err != nil {
		t.Fatalf("ChartsInKey: %v", err)
	}
	if len(paths) != 1 || paths[0] != "d7.chart" {
		t.Errorf("ChartsInKey(V) = %v", paths)
	}
}

func TestIndexFile_KeepsUnanalyzableCharts(t *testing.T) {
	svc := newService(t)
	if err := svc.IndexFile("odd.chart", []byte("| Zz7 |")); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	items, total, err := svc.ListCharts(context.Background(), 10, 0, "", "")
	if err != nil {
		t.Fatalf("ListCharts: %v", err)
	}
	if total != 1 || items[0].Path != "odd.chart" {
		t.Errorf("items = %+v", items)
	}
}
