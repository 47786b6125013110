package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/driftwood-dev/semcode/internal/async"
	"github.com/driftwood-dev/semcode/internal/callgraph"
	"github.com/driftwood-dev/semcode/internal/chunk"
	"github.com/driftwood-dev/semcode/internal/config"
	"github.com/driftwood-dev/semcode/internal/core"
	"github.com/driftwood-dev/semcode/internal/embed"
	"github.com/driftwood-dev/semcode/internal/index"
	"github.com/driftwood-dev/semcode/internal/logging"
	"github.com/driftwood-dev/semcode/internal/mcp"
	"github.com/driftwood-dev/semcode/internal/memory"
	"github.com/driftwood-dev/semcode/internal/retrievalgate"
	"github.com/driftwood-dev/semcode/internal/scanner"
	"github.com/driftwood-dev/semcode/internal/search"
	"github.com/driftwood-dev/semcode/internal/session"
	"github.com/driftwood-dev/semcode/internal/store"
	"github.com/driftwood-dev/semcode/internal/usage"
	"github.com/driftwood-dev/semcode/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		debug         bool
		transport     string
		port          int
		sessionName   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server over stdio (or, eventually, SSE).

This is the entrypoint AI coding assistants (Claude Code, Cursor, etc.) use
to talk to AmanMCP. Once started, stdout carries ONLY JSON-RPC protocol
bytes - all diagnostic output goes to the debug log file instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				logger, cleanup, err := logging.Setup(logging.DebugConfig())
				if err == nil {
					slog.SetDefault(logger)
					defer cleanup()
				}
			}

			if sessionName != "" {
				return runServeBySessionName(cmd.Context(), sessionName, transport, port)
			}
			return runServe(cmd.Context(), transport, port)
		},
	}

	// Local flags (declared here, not inherited) so they're visible via
	// cmd.Find(...).Flags().Lookup(...) before Execute merges persistent flags.
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to ~/.amanmcp/logs/")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio|sse)")
	cmd.Flags().IntVar(&port, "port", 8765, "Port for SSE transport (unused for stdio)")
	cmd.Flags().StringVar(&sessionName, "session", "", "Serve a named session instead of the current directory")

	return cmd
}

// runServeBySessionName resolves or creates a named session rooted at the
// current working directory, then serves it.
func runServeBySessionName(ctx context.Context, name, transport string, port int) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg := config.NewConfig()
	mgr, err := session.NewManager(session.ManagerConfig{
		StoragePath: cfg.Sessions.StoragePath,
		MaxSessions: cfg.Sessions.MaxSessions,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	sess, err := mgr.Open(name, root)
	if err != nil {
		return fmt.Errorf("failed to open session %q: %w", name, err)
	}

	return runServeWithSession(ctx, name, sess.ProjectPath, transport, port)
}

// runServe starts the MCP server for the project rooted at the current
// working directory (or its nearest ancestor project root).
func runServe(ctx context.Context, transport string, port int) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return serveProject(ctx, root, transport, port)
}

// runServeWithSession starts the MCP server for an already-resolved named
// session's project path. It sets up MCP-safe logging independently of
// runServe (BUG-035: this was previously missed, letting session serves
// log to stdout and corrupt the JSON-RPC stream).
func runServeWithSession(ctx context.Context, sessionName, projectPath, transport string, port int) error {
	_ = sessionName
	return serveProject(ctx, projectPath, transport, port)
}

// serveProject assembles every dependency the MCP server needs and serves
// it. File watcher startup and initial reconciliation run in a background
// goroutine bounded by watcherStartupTimeout so a slow filesystem can never
// delay the MCP handshake (BUG-035).
func serveProject(ctx context.Context, root, transport string, port int) error {
	// BUG-034/BUG-035: stdout is reserved exclusively for JSON-RPC. All
	// logging must go to the file-backed MCP log, never stderr/stdout.
	if cleanup, err := logging.SetupMCPMode(); err == nil {
		defer cleanup()
	}

	if termErr := verifyStdinForMCP(); termErr != nil {
		slog.Warn("stdin_check", slog.String("error", termErr.Error()))
	}

	dataDir := filepath.Join(root, ".amanmcp")
	metadataPath := filepath.Join(dataDir, "metadata.db")
	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found in %s\nRun 'amanmcp index' first", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	// Legacy backward-compat shim: AMANMCP_EMBEDDER used to select the
	// embedder backend directly; the factory now only honors CLAUDE_RAG_EMBEDDER.
	if legacy := os.Getenv("AMANMCP_EMBEDDER"); legacy != "" && os.Getenv("CLAUDE_RAG_EMBEDDER") == "" {
		_ = os.Setenv("CLAUDE_RAG_EMBEDDER", legacy)
	}

	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		_ = metadata.Close()
		return fmt.Errorf("failed to open BM25 index: %w", err)
	}

	// Unlike `index`, serve degrades to the static embedder rather than
	// refusing to start - a degraded MCP server is more useful than none.
	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedCtx, embedCancel := context.WithTimeout(ctx, 15*time.Second)
	embedder, embErr := embed.NewEmbedder(embedCtx, provider, cfg.Embeddings.ModelID)
	embedCancel()
	if embErr != nil {
		slog.Warn("embedder_init_failed_falling_back_to_static", slog.String("error", embErr.Error()))
		embedder = embed.NewStaticEmbedder768()
	}

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	vectorCfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		_ = embedder.Close()
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	if fileExists(vectorPath) {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			slog.Warn("vector_store_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	engine, err := search.NewEngine(bm25, vector, embedder, metadata, search.DefaultConfig(),
		search.WithMultiQuerySearch(search.NewPatternDecomposer()),
		search.WithClassifier(search.NewPatternClassifier()))
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		_ = vector.Close()
		_ = embedder.Close()
		return fmt.Errorf("failed to create search engine: %w", err)
	}

	mcpServer, err := mcp.NewServer(engine, metadata, embedder, cfg, root)
	if err != nil {
		_ = engine.Close()
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = mcpServer.Close() }()

	progress := async.NewIndexProgress()
	mcpServer.SetIndexProgress(progress)

	projectID := hashString(root)
	coordinator := index.NewCoordinator(index.CoordinatorConfig{
		ProjectID:       projectID,
		RootPath:        root,
		DataDir:         dataDir,
		Engine:          engine,
		Metadata:        metadata,
		CodeChunker:     chunk.NewCodeChunker(),
		MDChunker:       chunk.NewMarkdownChunker(),
		Scanner:         newScannerOrNil(),
		ExcludePatterns: cfg.Indexing.ExcludePatterns,
	})

	coreServer, coreCleanup := buildCoreServer(root, dataDir, engine, metadata, coordinator, cfg)
	if coreCleanup != nil {
		defer coreCleanup()
	}

	go watchInBackground(ctx, root, coordinator, coreServer, progress)

	return mcpServer.Serve(ctx, transport, fmt.Sprintf(":%d", port))
}

// newScannerOrNil builds a scanner for gitignore-driven reconciliation.
// Reconciliation still works without one; a scanner failure shouldn't block
// serving.
func newScannerOrNil() *scanner.Scanner {
	s, err := scanner.New()
	if err != nil {
		slog.Warn("scanner_init_failed", slog.String("error", err.Error()))
		return nil
	}
	return s
}

// watcherStartupTimeout bounds how long initial reconciliation + watcher
// startup may block before the background goroutine gives up waiting and
// just lets the watcher keep running on its own. Configurable for tests
// that want to simulate a slow filesystem (AMANMCP_WATCHER_STARTUP_TIMEOUT).
func watcherStartupTimeout() time.Duration {
	if v := os.Getenv("AMANMCP_WATCHER_STARTUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 2 * time.Second
}

// watchInBackground reconciles the index against disk and starts the file
// watcher without ever blocking the caller. BUG-035: MCP handshake must
// complete within 500ms; this goroutine runs independently of Serve.
func watchInBackground(ctx context.Context, root string, coordinator *index.Coordinator, coreServer *core.Server, progress *async.IndexProgress) {
	progress.SetStage(async.StageScanning, 0)

	startupCtx, cancel := context.WithTimeout(ctx, watcherStartupTimeout())
	defer cancel()

	if err := coordinator.ReconcileFilesOnStartup(startupCtx); err != nil {
		slog.Warn("startup_reconcile_failed", slog.String("error", err.Error()))
		progress.SetError(err.Error())
	}

	progress.SetReady()

	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		slog.Warn("watcher_init_failed", slog.String("error", err.Error()))
		return
	}

	if coreServer != nil {
		if err := coreServer.Watch(ctx, root, true, w); err != nil {
			slog.Warn("watcher_start_failed", slog.String("error", err.Error()))
			return
		}
	} else if err := w.Start(ctx, root); err != nil {
		slog.Warn("watcher_start_failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-w.Events():
			if !ok {
				return
			}
			if err := coordinator.HandleEvents(ctx, events); err != nil {
				slog.Warn("handle_events_failed", slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// buildCoreServer assembles the internal/core façade on a best-effort
// basis: memory notes, consent, call graph, usage tracking, and the
// retrieval gate all share one SQLite file under dataDir. Any failure here
// is logged and degrades to a nil Server - the MCP server itself does not
// depend on it.
func buildCoreServer(root, dataDir string, engine search.SearchEngine, metadata store.MetadataStore, coordinator *index.Coordinator, cfg *config.Config) (*core.Server, func()) {
	dbPath := filepath.Join(dataDir, "core.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		slog.Warn("core_db_open_failed", slog.String("error", err.Error()))
		return nil, nil
	}

	if err := memory.InitSchema(db); err != nil {
		slog.Warn("memory_schema_init_failed", slog.String("error", err.Error()))
		_ = db.Close()
		return nil, nil
	}
	if err := core.InitConsentSchema(db); err != nil {
		slog.Warn("consent_schema_init_failed", slog.String("error", err.Error()))
		_ = db.Close()
		return nil, nil
	}
	if err := usage.InitSchema(db); err != nil {
		slog.Warn("usage_schema_init_failed", slog.String("error", err.Error()))
		_ = db.Close()
		return nil, nil
	}

	usageStore, err := usage.NewStore(db)
	if err != nil {
		slog.Warn("usage_store_init_failed", slog.String("error", err.Error()))
		_ = db.Close()
		return nil, nil
	}

	cgPath := filepath.Join(dataDir, "callgraph.db")
	cg, err := callgraph.NewStore(cgPath)
	if err != nil {
		slog.Warn("callgraph_store_init_failed", slog.String("error", err.Error()))
		cg = nil
	}

	gate := retrievalgate.New(cfg.RetrievalGate)

	srv := core.NewServer(
		memory.NewStore(db),
		core.NewConsentStore(db),
		engine,
		metadata,
		cg,
		usage.NewTracker(usageStore),
		usageStore,
		gate,
		coordinator,
	)

	cleanup := func() {
		if cg != nil {
			_ = cg.Close()
		}
		_ = db.Close()
	}
	return srv, cleanup
}

// verifyStdinForMCP warns when stdin looks like an interactive terminal
// rather than a pipe - a common source of "why won't it connect" confusion
// since the MCP handshake expects a JSON-RPC peer on the other end, not a
// human typing at a shell.
func verifyStdinForMCP() error {
	info, err := os.Stdin.Stat()
	if err != nil {
		return nil
	}
	if (info.Mode() & os.ModeCharDevice) != 0 {
		return fmt.Errorf("stdin is a terminal, not a pipe: the MCP server expects a JSON-RPC client on stdin")
	}
	return nil
}
