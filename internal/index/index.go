package index

import "github.com/starford/numeral/internal/models"

// ChartIndex defines the interface for chart indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ChartIndex interface {
	UpsertChart(c ChartRow, body string, a *models.Analysis) error
	DeleteChart(path string) error
	GetChecksum(path string) (string, error)
	GetChart(path string) (*ChartRow, error)
	GetAnalysis(path string) (*models.Analysis, string, error)
	ListCharts(limit, offset int, tag, sort string) ([]ChartRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	ChartsVisitingKey(key string) ([]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	AllSettings() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies ChartIndex at compile time.
var _ ChartIndex = (*DB)(nil)
