package index

import (
	"context"
	"path/filepath"
	"time"

	apperrors "github.com/driftwood-dev/semcode/internal/errors"
	"github.com/driftwood-dev/semcode/internal/watcher"
)

// IndexPath indexes a single file, satisfying internal/core.Indexer. path
// may be absolute or already relative to the project root; it's normalized
// to root-relative before being folded into a synthetic file event and run
// through the same HandleEvents path the watcher drives.
func (c *Coordinator) IndexPath(ctx context.Context, path string) error {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(c.config.RootPath, path)
		if err != nil {
			return apperrors.New(apperrors.KindValidation, "path is not under the project root", err)
		}
		rel = r
	}
	event := watcher.FileEvent{
		Path:      rel,
		Operation: watcher.OpModify,
		Timestamp: time.Now().UTC(),
	}
	if err := c.HandleEvents(ctx, []watcher.FileEvent{event}); err != nil {
		return apperrors.Storage("index path", err)
	}
	return nil
}

// Reindex resyncs the whole project against on-disk state, satisfying
// internal/core.Indexer. projectID is accepted for interface symmetry with
// the other project-scoped operations but is expected to match the
// coordinator's own configured project; a mismatch is a caller bug, not a
// runtime condition worth failing on here since one Coordinator instance
// only ever serves one project.
func (c *Coordinator) Reindex(ctx context.Context, projectID string) error {
	if err := c.ReconcileFilesOnStartup(ctx); err != nil {
		return apperrors.Storage("reindex project", err)
	}
	return nil
}
