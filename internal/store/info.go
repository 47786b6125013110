package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EmbedderInfoInput carries the currently-configured embedder's identity, for
// comparison against what an existing index was built with.
type EmbedderInfoInput struct {
	Model      string
	Backend    string
	Dimensions int
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatTime formats a timestamp for display, or "unknown" for the zero value.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// inferBackendFromModel guesses the embedding backend from a model identifier,
// for legacy indexes that predate explicit backend tracking in state.
func inferBackendFromModel(model string) string {
	switch model {
	case "static", "static768":
		return "static"
	}
	if strings.HasPrefix(model, "/") || containsAny(model, []string{"mlx-community/", "mlx-"}) {
		return "mlx"
	}
	return "ollama"
}

// getDirSize recursively sums file sizes under path. Nonexistent paths
// return 0 rather than an error, since a missing index component (e.g. no
// vector store yet) is a normal state to report on.
func getDirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// GetIndexInfo assembles a full report on an index's configuration and
// statistics for the `amanmcp index info` command. current may be nil if the
// embedder could not be constructed (e.g. Ollama unreachable).
func GetIndexInfo(ctx context.Context, metadata *SQLiteStore, dataDir string, current *EmbedderInfoInput) (*IndexInfo, error) {
	db := metadata.DB()

	var chunkCount, fileCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunkCount); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&fileCount); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	var minIndexed, maxIndexed int64
	_ = db.QueryRowContext(ctx, `SELECT COALESCE(MIN(indexed_at), 0), COALESCE(MAX(indexed_at), 0) FROM files`).
		Scan(&minIndexed, &maxIndexed)

	indexModel, err := metadata.GetState(ctx, StateKeyIndexModel)
	if err != nil {
		return nil, fmt.Errorf("failed to read index model state: %w", err)
	}
	dimStr, err := metadata.GetState(ctx, StateKeyIndexDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to read index dimension state: %w", err)
	}

	var indexDimensions int
	if dimStr != "" {
		_, _ = fmt.Sscanf(dimStr, "%d", &indexDimensions)
	}

	var indexBackend string
	if indexModel != "" {
		indexBackend = inferBackendFromModel(indexModel)
	}

	metadataPath := filepath.Join(dataDir, "metadata.db")
	bm25SQLitePath := filepath.Join(dataDir, "bm25.db")
	bm25BlevePath := filepath.Join(dataDir, "bm25.bleve")
	vectorPath := filepath.Join(dataDir, "vectors.hnsw")

	bm25Size := fileSize(bm25SQLitePath)
	if bm25Size == 0 {
		bm25Size = getDirSize(bm25BlevePath)
	}
	vectorSize := fileSize(vectorPath)
	metaSize := fileSize(metadataPath)

	info := &IndexInfo{
		Location:        dataDir,
		ProjectRoot:     filepath.Dir(dataDir),
		IndexModel:      indexModel,
		IndexBackend:    indexBackend,
		IndexDimensions: indexDimensions,
		ChunkCount:      chunkCount,
		DocumentCount:   fileCount,
		BM25SizeBytes:   bm25Size,
		VectorSizeBytes: vectorSize,
		IndexSizeBytes:  metaSize + bm25Size + vectorSize,
		CreatedAt:       unixNanoToTime(minIndexed),
		UpdatedAt:       unixNanoToTime(maxIndexed),
	}

	if current != nil {
		info.CurrentModel = current.Model
		info.CurrentBackend = current.Backend
		info.CurrentDimensions = current.Dimensions
		info.Compatible = indexDimensions == 0 || indexDimensions == current.Dimensions
	}

	return info, nil
}
