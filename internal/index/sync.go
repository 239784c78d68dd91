package index

import (
	"log/slog"

	"github.com/starford/numeral/internal/storage"
)

// IndexFunc parses and analyzes the chart at path and upserts it. The chart
// service provides it so the index package stays free of analysis code.
type IndexFunc func(path string, data []byte) error

// Sync walks the library and brings the index up to date:
//   - new/changed charts are parsed, analyzed and upserted
//   - charts indexed under other analyzer settings are re-indexed
//   - charts removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, index IndexFunc, settings string, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	indexedUnder, err := db.AllSettings()
	if err != nil {
		return err
	}

	var indexed, removed int
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum && indexedUnder[m.Path] == settings {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := index(m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteChart(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: done",
		slog.Int("charts", len(metas)),
		slog.Int("indexed", indexed),
		slog.Int("removed", removed),
	)
	return nil
}
