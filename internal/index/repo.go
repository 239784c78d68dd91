package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/starford/numeral/internal/apperr"
	"github.com/starford/numeral/internal/models"
)

// ChartRow represents a row in the charts table.
type ChartRow struct {
	Path      string
	Title     string
	Composer  string
	Tonic     string
	Checksum  string
	Tags      []string
	Bars      int
	Chords    []string
	Settings  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertChart inserts or replaces a chart, its FTS entry, its cached analysis
// and the local keys the analysis visits, within one transaction. A nil
// analysis clears the cache.
func (db *DB) UpsertChart(c ChartRow, body string, a *models.Analysis) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(c.Tags)
	chords := strings.Join(c.Chords, " ")

	var blob []byte
	if a != nil {
		if blob, err = msgpack.Marshal(a); err != nil {
			return fmt.Errorf("index: encode analysis: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO charts (path, title, composer, tonic, checksum, tags, bars, chords, body, analysis, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			composer   = excluded.composer,
			tonic      = excluded.tonic,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			bars       = excluded.bars,
			chords     = excluded.chords,
			body       = excluded.body,
			analysis   = excluded.analysis,
			settings   = excluded.settings,
			updated_at = excluded.updated_at
	`, c.Path, c.Title, c.Composer, c.Tonic, c.Checksum, string(tagsJSON), c.Bars, chords, body, blob, c.Settings, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert chart: %w", err)
	}

	if err := ftsUpsert(tx, c.Path, c.Title, c.Composer, chords, c.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM chart_keys WHERE path = ?`, c.Path); err != nil {
		return fmt.Errorf("index: clear keys: %w", err)
	}
	if a != nil {
		if keys := a.LocalKeys(); len(keys) > 0 {
			stmt, err := tx.Prepare(`INSERT OR IGNORE INTO chart_keys (path, key) VALUES (?, ?)`)
			if err != nil {
				return fmt.Errorf("index: prepare key insert: %w", err)
			}
			defer stmt.Close()
			for _, k := range keys {
				if _, err := stmt.Exec(c.Path, k); err != nil {
					return fmt.Errorf("index: insert key: %w", err)
				}
			}
		}
	}

	return tx.Commit()
}

// DeleteChart removes a chart, its FTS entry and its local keys.
func (db *DB) DeleteChart(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM chart_keys WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM charts WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a chart, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM charts WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

const chartColumns = `path, title, composer, tonic, checksum, tags, bars, chords, settings, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanChart(s scanner) (*ChartRow, error) {
	var (
		r      ChartRow
		tags   string
		chords string
	)
	if err := s.Scan(&r.Path, &r.Title, &r.Composer, &r.Tonic, &r.Checksum, &tags, &r.Bars, &chords, &r.Settings, &r.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	r.Chords = strings.Fields(chords)
	return &r, nil
}

// GetChart returns the indexed metadata of one chart.
func (db *DB) GetChart(path string) (*ChartRow, error) {
	r, err := scanChart(db.conn.QueryRow(`SELECT `+chartColumns+` FROM charts WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get chart: %w", err)
	}
	return r, nil
}

// GetAnalysis returns the cached analysis of a chart together with the
// checksum of the content it was computed from. A chart indexed without an
// analysis yields a nil analysis.
func (db *DB) GetAnalysis(path string) (*models.Analysis, string, error) {
	var (
		blob []byte
		cs   string
	)
	err := db.conn.QueryRow(`SELECT analysis, checksum FROM charts WHERE path = ?`, path).Scan(&blob, &cs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperr.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("index: get analysis: %w", err)
	}
	if len(blob) == 0 {
		return nil, cs, nil
	}
	var a models.Analysis
	if err := msgpack.Unmarshal(blob, &a); err != nil {
		return nil, "", fmt.Errorf("index: decode analysis: %w", err)
	}
	return &a, cs, nil
}

var sortOrders = map[string]string{
	"":        "path",
	"path":    "path",
	"title":   "title COLLATE NOCASE, path",
	"updated": "updated_at DESC, path",
	"bars":    "bars DESC, path",
}

// ListCharts returns a page of charts, optionally restricted to one tag, and
// the total number of matching charts.
func (db *DB) ListCharts(limit, offset int, tag, sort string) ([]ChartRow, int, error) {
	order, ok := sortOrders[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q: %w", sort, apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const where = `WHERE (? = '' OR EXISTS (SELECT 1 FROM json_each(charts.tags) WHERE json_each.value = ?))`

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM charts `+where, tag, tag).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count charts: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+chartColumns+` FROM charts `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		tag, tag, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list charts: %w", err)
	}
	defer rows.Close()

	var out []ChartRow
	for rows.Next() {
		r, err := scanChart(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// ChartsVisitingKey returns the paths of charts whose analysis passes
// through the given local key, such as "ii" or "bVI".
func (db *DB) ChartsVisitingKey(key string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM chart_keys WHERE key = ? ORDER BY path`, key)
	if err != nil {
		return nil, fmt.Errorf("index: charts visiting key: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed chart path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM charts`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM charts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllSettings maps every indexed path to the analyzer settings it was
// indexed under.
func (db *DB) AllSettings() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, settings FROM charts`)
	if err != nil {
		return nil, fmt.Errorf("index: all settings: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, s string
		if err := rows.Scan(&p, &s); err != nil {
			return nil, err
		}
		out[p] = s
	}
	return out, rows.Err()
}
