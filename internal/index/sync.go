package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/furrow/internal/checksum"
	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/storage"
)

// docKeyPrefix marks rows that came from CMS documents.
const docKeyPrefix = "cms:"

// Event kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after an index change with the affected entry id.
type EventCallback func(kind string, id string)

// Sources names where indexable entries come from.
type Sources struct {
	Files       storage.Provider
	Static      *content.StaticSource
	Docs        content.Source // may be nil
	Collections []string
}

// Sync brings the whole index up to date with files and documents.
func Sync(ctx context.Context, db *DB, src Sources, logger *slog.Logger) error {
	if err := SyncFiles(db, src, logger, nil); err != nil {
		return err
	}
	return SyncDocs(ctx, db, src, logger, nil)
}

// SyncFiles walks the content root and brings file-backed rows up to date:
//   - new/changed files are parsed and upserted
//   - drafts and files removed from disk are deleted from the index
func SyncFiles(db *DB, src Sources, logger *slog.Logger, cb EventCallback) error {
	metas, err := src.Files.List("")
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

		prev, known := checksums[m.Path]
		if prev == m.Checksum {
			continue
		}
		id, err := indexFile(db, src, m.Path, m.Checksum)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if id == "" {
			if known {
				removeKey(db, m.Path, logger, cb)
			}
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		notify(cb, known, id)
	}

	// Remove stale entries.
	for k := range checksums {
		if strings.HasPrefix(k, docKeyPrefix) {
			continue
		}
		if _, ok := disk[k]; !ok {
			removeKey(db, k, logger, cb)
		}
	}
	return nil
}

// SyncDocs brings document-backed rows up to date with src.Docs.
func SyncDocs(ctx context.Context, db *DB, src Sources, logger *slog.Logger, cb EventCallback) error {
	if src.Docs == nil {
		return nil
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for _, collection := range src.Collections {
		entries, err := src.Docs.Entries(ctx, collection)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Draft {
				continue
			}
			key := docKeyPrefix + e.ID
			seen[key] = struct{}{}
			data, _ := json.Marshal(e)
			cs := checksum.Sum(data)
			prev, known := checksums[key]
			if prev == cs {
				continue
			}
			if err := db.Upsert(RowFor(key, e, cs), e.Body); err != nil {
				logger.Warn("sync: index document failed", slog.String("id", e.ID), slog.String("error", err.Error()))
				continue
			}
			notify(cb, known, e.ID)
		}
	}
	for k := range checksums {
		if !strings.HasPrefix(k, docKeyPrefix) {
			continue
		}
		if _, ok := seen[k]; !ok {
			removeKey(db, k, logger, cb)
		}
	}
	return nil
}

// indexFile parses the file at rel and upserts it. It returns "" without
// error for files that are not published entries.
func indexFile(db *DB, src Sources, rel, cs string) (string, error) {
	collection, _, _ := strings.Cut(rel, "/")
	if !slices.Contains(src.Collections, collection) {
		return "", nil
	}
	e, ok, err := src.Static.EntryFile(rel)
	if err != nil || !ok || e.Draft {
		return "", err
	}
	if err := db.Upsert(RowFor(rel, e, cs), e.Body); err != nil {
		return "", err
	}
	return e.ID, nil
}

func removeKey(db *DB, key string, logger *slog.Logger, cb EventCallback) {
	id, err := db.Delete(key)
	if err != nil {
		logger.Warn("sync: delete failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if id == "" {
		return
	}
	logger.Debug("sync: removed", slog.String("key", key))
	if cb != nil {
		cb(KindDeleted, id)
	}
}

func notify(cb EventCallback, known bool, id string) {
	if cb == nil {
		return
	}
	if known {
		cb(KindUpdated, id)
	} else {
		cb(KindCreated, id)
	}
}
