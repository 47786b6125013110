package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftwood-dev/semcode/internal/config"
	"github.com/driftwood-dev/semcode/internal/embed"
	"github.com/driftwood-dev/semcode/internal/store"
)

// DebugInfo aggregates everything `amanmcp debug` reports: index location,
// embedder configuration, storage footprint, and per-language file stats.
type DebugInfo struct {
	ProjectRoot string `json:"project_root"`
	IndexPath   string `json:"index_path"`

	FileCount  int `json:"file_count"`
	ChunkCount int `json:"chunk_count"`

	IndexedAt time.Time `json:"indexed_at"`

	EmbedderProvider string `json:"embedder_provider"`
	EmbedderModel    string `json:"embedder_model"`
	EmbedderDims     int    `json:"embedder_dimensions"`

	BM25SizeBytes   int64 `json:"bm25_size_bytes"`
	VectorSizeBytes int64 `json:"vector_size_bytes"`
	MetadataBytes   int64 `json:"metadata_size_bytes"`

	Languages map[string]float64 `json:"languages"`
}

func newDebugCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Show detailed diagnostic information about the index",
		Long: `Display low-level diagnostic information useful for filing bug reports
and investigating indexing problems: storage sizes, embedder configuration,
and the language breakdown of indexed files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebug(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDebug(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	dataDir := filepath.Join(root, ".amanmcp")
	metadataPath := filepath.Join(dataDir, "metadata.db")
	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found in %s\nRun 'amanmcp index' to create one", root)
	}

	info, err := collectDebugInfo(ctx, root, dataDir)
	if err != nil {
		return fmt.Errorf("failed to collect debug info: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	return renderDebugInfo(cmd, info)
}

func collectDebugInfo(ctx context.Context, root, dataDir string) (*DebugInfo, error) {
	info := &DebugInfo{
		ProjectRoot: root,
		IndexPath:   dataDir,
		Languages:   map[string]float64{},
	}

	metadataPath := filepath.Join(dataDir, "metadata.db")
	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	projectID := hashString(root)
	project, err := metadata.GetProject(ctx, projectID)
	if err == nil && project != nil {
		info.FileCount = project.FileCount
		info.ChunkCount = project.ChunkCount
		info.IndexedAt = project.IndexedAt
	}

	info.Languages = languageBreakdown(ctx, metadata, projectID)

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	info.EmbedderProvider = cfg.Embeddings.Provider
	if info.EmbedderProvider == "" {
		info.EmbedderProvider = "hugot"
	}
	info.EmbedderModel = cfg.Embeddings.ModelID
	if info.EmbedderModel == "" {
		info.EmbedderModel = "embeddinggemma"
	}
	provider := embed.ParseProvider(info.EmbedderProvider)
	if embedder, embErr := embed.NewEmbedder(ctx, provider, info.EmbedderModel); embErr == nil {
		info.EmbedderDims = embedder.Dimensions()
		_ = embedder.Close()
	}

	info.MetadataBytes = getFileSize(metadataPath)

	bm25SQLitePath := filepath.Join(dataDir, "bm25.db")
	bm25BlevePath := filepath.Join(dataDir, "bm25.bleve")
	if size := getFileSize(bm25SQLitePath); size > 0 {
		info.BM25SizeBytes = size
	} else {
		info.BM25SizeBytes = getDirSize(bm25BlevePath)
	}

	info.VectorSizeBytes = getFileSize(filepath.Join(dataDir, "vectors.hnsw"))

	return info, nil
}

// languageBreakdown returns the fraction of indexed files per normalized
// language extension, walking the metadata store's file listing in pages.
func languageBreakdown(ctx context.Context, metadata store.MetadataStore, projectID string) map[string]float64 {
	counts := map[string]int{}
	total := 0

	cursor := ""
	for {
		files, next, err := metadata.ListFiles(ctx, projectID, cursor, 500)
		if err != nil {
			break
		}
		for _, f := range files {
			lang := f.Language
			if lang == "" {
				lang = normalizeExtension(filepath.Ext(f.Path))
			}
			counts[lang]++
			total++
		}
		if next == "" || len(files) == 0 {
			break
		}
		cursor = next
	}

	if total == 0 {
		return map[string]float64{}
	}

	out := make(map[string]float64, len(counts))
	for lang, n := range counts {
		out[lang] = float64(n) / float64(total)
	}
	return out
}

func renderDebugInfo(cmd *cobra.Command, info *DebugInfo) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "AmanMCP Debug Info")
	fmt.Fprintln(out, "==================")
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Project:  %s\n", info.ProjectRoot)
	fmt.Fprintf(out, "Index:    %s\n", info.IndexPath)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "FILES & CHUNKS")
	fmt.Fprintf(out, "  Files:    %s\n", formatNumber(info.FileCount))
	fmt.Fprintf(out, "  Chunks:   %s\n", formatNumber(info.ChunkCount))
	fmt.Fprintf(out, "  Indexed:  %s\n", formatAge(info.IndexedAt))
	fmt.Fprintf(out, "  Languages: %s\n", formatLanguages(info.Languages))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "EMBEDDER")
	fmt.Fprintf(out, "  Provider:   %s\n", info.EmbedderProvider)
	fmt.Fprintf(out, "  Model:      %s\n", info.EmbedderModel)
	fmt.Fprintf(out, "  Dimensions: %d\n", info.EmbedderDims)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "BM25 INDEX")
	fmt.Fprintf(out, "  Size: %s\n", store.FormatBytes(info.BM25SizeBytes))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "VECTOR STORE")
	fmt.Fprintf(out, "  Size: %s\n", store.FormatBytes(info.VectorSizeBytes))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "STORAGE")
	fmt.Fprintf(out, "  Metadata: %s\n", store.FormatBytes(info.MetadataBytes))
	fmt.Fprintf(out, "  BM25:     %s\n", store.FormatBytes(info.BM25SizeBytes))
	fmt.Fprintf(out, "  Vectors:  %s\n", store.FormatBytes(info.VectorSizeBytes))
	total := info.MetadataBytes + info.BM25SizeBytes + info.VectorSizeBytes
	fmt.Fprintf(out, "  Total:    %s\n", store.FormatBytes(total))

	return nil
}

// formatAge renders a human-friendly relative age, matching the granularity
// used throughout the CLI's status output.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	d := time.Since(t)
	switch {
	case d < 30*time.Second:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins < 1 {
			mins = 1
		}
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours < 1 {
			hours = 1
		}
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days < 1 {
			days = 1
		}
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

// formatNumber adds thousands separators, e.g. 12345 -> "12,345".
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)

	result := ""
	for i, g := range groups {
		if i > 0 {
			result += ","
		}
		result += g
	}
	if neg {
		result = "-" + result
	}
	return result
}

// formatLanguages renders a language fraction map sorted by descending
// share, e.g. "go (50%), ts (30%), md (20%)".
func formatLanguages(langs map[string]float64) string {
	if len(langs) == 0 {
		return "none"
	}

	type entry struct {
		lang string
		frac float64
	}
	entries := make([]entry, 0, len(langs))
	for l, f := range langs {
		entries = append(entries, entry{l, f})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].frac != entries[j].frac {
			return entries[i].frac > entries[j].frac
		}
		return entries[i].lang < entries[j].lang
	})

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s (%d%%)", e.lang, int(e.frac*100+0.5)))
	}

	result := parts[0]
	for _, p := range parts[1:] {
		result += ", " + p
	}
	return result
}

// normalizeExtension maps file extensions to the canonical language label
// used when grouping files (e.g. "tsx" and "ts" both normalize to "ts").
func normalizeExtension(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}

	switch ext {
	case "tsx":
		return "ts"
	case "jsx", "mjs":
		return "js"
	case "yml":
		return "yaml"
	case "htm":
		return "html"
	default:
		return ext
	}
}
