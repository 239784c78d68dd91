//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM charts_fts`).Scan(&count); err != nil {
		t.Fatalf("charts_fts table missing: %v", err)
	}
}

func TestFTS5_SearchByComposer(t *testing.T) {
	db := testDB(t)
	row, a := stella()
	if err := db.UpsertChart(row, "", a); err != nil {
		t.Fatalf("UpsertChart: %v", err)
	}

	results, err := db.Search("young", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "stella.chart" {
		t.Errorf("path = %q", results[0].Path)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertChart(ChartRow{Path: "gone.chart", Title: "Vanishing", Checksum: "g", UpdatedAt: time.Now()}, "", nil)
	_ = db.DeleteChart("gone.chart")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.chart" {
			t.Error("deleted chart still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertChart(ChartRow{Path: "evo.chart", Title: "Original", Checksum: "1", UpdatedAt: now}, "", nil)
	_ = db.UpsertChart(ChartRow{Path: "evo.chart", Title: "Replacement", Checksum: "2", UpdatedAt: now}, "", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "Replacement" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
