package index

import (
	"context"
	"log/slog"

	"github.com/starford/nbserde/internal/notebook"
	"github.com/starford/nbserde/internal/storage"
)

// Sync walks the workspace and brings the catalog up to date:
//   - new/changed notebooks are decoded and upserted
//   - notebooks removed from disk are deleted from the catalog
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(ctx, db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNotebook(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile decodes data and upserts its summary. Malformed notebooks are
// reported as errors and leave the catalog unchanged.
func IndexFile(ctx context.Context, db NotebookIndex, path string, data []byte) error {
	nb, err := notebook.Decode(ctx, data)
	if err != nil {
		return err
	}
	row, body := Summarize(path, data, nb)
	return db.UpsertNotebook(row, body)
}
