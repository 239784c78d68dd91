package chartservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/numeral/internal/apperr"
	"github.com/starford/numeral/internal/chart"
	"github.com/starford/numeral/internal/harmony"
	"github.com/starford/numeral/internal/index"
	"github.com/starford/numeral/internal/models"
	"github.com/starford/numeral/internal/storage"
	"github.com/starford/numeral/internal/theory"
)

// ChartDetail is the full representation of a chart.
type ChartDetail struct {
	Path        string             `json:"path"`
	Title       string             `json:"title"`
	Key         string             `json:"key"`
	Composer    string             `json:"composer,omitempty"`
	Content     string             `json:"content"`
	Checksum    string             `json:"checksum"`
	Tags        []string           `json:"tags"`
	Bars        int                `json:"bars"`
	Chords      []chart.ChordInBar `json:"chords"`
	Frontmatter map[string]any     `json:"frontmatter,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ChartListItem is a lightweight item in a list response.
type ChartListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Key       string    `json:"key"`
	Composer  string    `json:"composer,omitempty"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Bars      int       `json:"bars"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChartAnalysis is the labelled form of a chart.
type ChartAnalysis struct {
	Path   string   `json:"path"`
	Key    string   `json:"key"`
	Chords []string `json:"chords"`
	Labels []string `json:"labels"`
	Bars   string   `json:"bars"`
	Cached bool     `json:"cached"`
}

// Progression is one input of a batch analysis.
type Progression struct {
	Chords []string `json:"chords"`
	Key    string   `json:"key"`
}

// Config carries the analysis defaults of the service.
type Config struct {
	DefaultKey  string
	Workers     int
	BarsPerLine int
}

// Service coordinates storage, index and analysis operations.
type Service struct {
	store    storage.Provider
	db       index.ChartIndex
	analyzer *harmony.Analyzer
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a new chart service.
func NewService(store storage.Provider, db index.ChartIndex, analyzer *harmony.Analyzer, cfg Config, logger *slog.Logger) *Service {
	if cfg.DefaultKey == "" {
		cfg.DefaultKey = "C"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BarsPerLine <= 0 {
		cfg.BarsPerLine = chart.DefaultBarsPerLine
	}
	return &Service{store: store, db: db, analyzer: analyzer, cfg: cfg, logger: logger}
}

// Display returns the rendering options used when a caller supplies none.
func (s *Service) Display() harmony.Display {
	return s.analyzer.Display()
}

// Settings fingerprints the analyzer configuration and default key that
// charts without a key of their own are indexed under.
func (s *Service) Settings() string {
	return s.analyzer.Fingerprint(s.cfg.DefaultKey)
}

// GetChart reads a chart from storage and parses it.
func (s *Service) GetChart(_ context.Context, path string) (*ChartDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, data)
}

// CreateChart writes a new chart and indexes it. The chart must analyze.
func (s *Service) CreateChart(_ context.Context, path string, content []byte) (*ChartDetail, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.check(content); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildDetail(path, content)
}

// UpdateChart writes updated content with optimistic concurrency.
func (s *Service) UpdateChart(_ context.Context, path string, content []byte, ifMatch string) (*ChartDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != storage.Checksum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.check(content); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildDetail(path, content)
}

// DeleteChart removes a chart from storage and index.
func (s *Service) DeleteChart(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteChart(path)
}

// ListCharts returns paginated charts with optional tag filter.
func (s *Service) ListCharts(_ context.Context, limit, offset int, tag, sort string) ([]ChartListItem, int, error) {
	rows, total, err := s.db.ListCharts(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ChartListItem, len(rows))
	for i, r := range rows {
		items[i] = ChartListItem{
			Path:      r.Path,
			Title:     r.Title,
			Key:       r.Tonic,
			Composer:  r.Composer,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			Bars:      r.Bars,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", apperr.ErrInvalidInput)
	}
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// ChartsInKey returns the charts whose analysis passes through a local key.
func (s *Service) ChartsInKey(_ context.Context, key string) ([]string, error) {
	if _, err := harmony.DistanceFromI(harmony.Key(key)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	paths, err := s.db.ChartsVisitingKey(key)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(paths), nil
}

// Analyze labels chords relative to key, or to the default key when key is
// empty. Unreadable chords or keys are reported as apperr.ErrInvalidInput.
func (s *Service) Analyze(_ context.Context, chords []string, key string, d harmony.Display) ([]string, error) {
	labels, err := s.analyzer.AnalyzeWith(chords, s.KeyOr(key), d)
	if err != nil {
		return nil, invalid(err)
	}
	return labels, nil
}

// Explain returns the candidate tables of a progression.
func (s *Service) Explain(_ context.Context, chords []string, key string, d harmony.Display) ([]harmony.SlotReport, error) {
	reports, err := s.analyzer.ExplainWith(chords, s.KeyOr(key), d)
	if err != nil {
		return nil, invalid(err)
	}
	return reports, nil
}

// AnalyzeBatch analyzes several progressions concurrently. Results keep the
// order of the input; the first failure cancels the rest.
func (s *Service) AnalyzeBatch(ctx context.Context, progs []Progression, d harmony.Display) ([][]string, error) {
	out := make([][]string, len(progs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, p := range progs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			labels, err := s.Analyze(ctx, p.Chords, p.Key, d)
			if err != nil {
				return fmt.Errorf("progression %d: %w", i+1, err)
			}
			out[i] = labels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeChart labels a stored chart and lays the labels out in bars. The
// cached analysis is used when the display matches the default and the
// chart has not changed since it was indexed.
func (s *Service) AnalyzeChart(ctx context.Context, path string, d harmony.Display) (*ChartAnalysis, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	c, err := chart.Parse(data)
	if err != nil {
		return nil, err
	}

	res := &ChartAnalysis{Path: path, Key: s.KeyOr(c.Key), Chords: c.Symbols()}
	if d == s.analyzer.Display() {
		cached, cs, err := s.db.GetAnalysis(path)
		if err == nil && cached != nil && cs == storage.Checksum(data) && cached.Fingerprint == s.analyzer.Fingerprint(res.Key) {
			res.Labels = cached.Labels
			res.Cached = true
		}
	}
	if res.Labels == nil {
		if res.Labels, err = s.Analyze(ctx, res.Chords, res.Key, d); err != nil {
			return nil, err
		}
	}
	if res.Bars, err = chart.PrintBars(c.Chords, res.Labels, s.cfg.BarsPerLine); err != nil {
		return nil, err
	}
	return res, nil
}

// IndexFile parses data, analyzes it with the default display and upserts it
// into the index. Exported so that sync and watcher can reuse it. A chart
// that does not analyze is still indexed, without a cached analysis.
func (s *Service) IndexFile(path string, data []byte) error {
	c, err := chart.Parse(data)
	if err != nil {
		return err
	}
	key := s.KeyOr(c.Key)
	row := index.ChartRow{
		Path:      path,
		Title:     c.Title,
		Composer:  c.Composer,
		Tonic:     key,
		Checksum:  storage.Checksum(data),
		Tags:      nonNilSlice(c.Tags),
		Bars:      c.Bars,
		Chords:    c.Symbols(),
		Settings:  s.Settings(),
		UpdatedAt: time.Now(),
	}

	var a *models.Analysis
	labels, err := s.analyzer.Analyze(row.Chords, key)
	if err != nil {
		s.logger.Warn("index: chart does not analyze", slog.String("path", path), slog.String("error", err.Error()))
	} else {
		a = &models.Analysis{Key: key, Chords: row.Chords, Labels: labels, Fingerprint: s.analyzer.Fingerprint(key)}
	}
	return s.db.UpsertChart(row, c.Body, a)
}

// check rejects content whose key or chords cannot be analyzed.
func (s *Service) check(content []byte) error {
	c, err := chart.Parse(content)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if _, err := s.analyzer.Analyze(c.Symbols(), s.KeyOr(c.Key)); err != nil {
		return invalid(err)
	}
	return nil
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// KeyOr returns key, or the default key when key is empty.
func (s *Service) KeyOr(key string) string {
	if key == "" {
		return s.cfg.DefaultKey
	}
	return key
}

// buildDetail constructs a ChartDetail from raw data without re-reading the file.
func (s *Service) buildDetail(path string, data []byte) (*ChartDetail, error) {
	c, err := chart.Parse(data)
	if err != nil {
		return nil, err
	}
	return &ChartDetail{
		Path:        path,
		Title:       c.Title,
		Key:         s.KeyOr(c.Key),
		Composer:    c.Composer,
		Content:     string(data),
		Checksum:    storage.Checksum(data),
		Tags:        nonNilSlice(c.Tags),
		Bars:        c.Bars,
		Chords:      nonNilSlice(c.Chords),
		Frontmatter: c.Frontmatter,
		UpdatedAt:   time.Now(),
	}, nil
}

func validPath(path string) error {
	if !storage.IsChart(path) {
		return fmt.Errorf("path must end in %s: %w", storage.Ext, apperr.ErrInvalidInput)
	}
	return nil
}

// invalid maps analysis input errors onto apperr.ErrInvalidInput.
func invalid(err error) error {
	var pe *theory.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
