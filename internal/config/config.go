package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration. It mirrors the grouped
// schema: indexing, embeddings, storage, search, lifecycle, retrieval
// gate, and a top-level read-only switch.
type Config struct {
	Version       int                 `yaml:"version" json:"version"`
	Indexing      IndexingConfig      `yaml:"indexing" json:"indexing"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings" json:"embeddings"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Search        SearchConfig        `yaml:"search" json:"search"`
	Lifecycle     LifecycleConfig     `yaml:"lifecycle" json:"lifecycle"`
	RetrievalGate RetrievalGateConfig `yaml:"retrieval_gate" json:"retrieval_gate"`
	Sessions      SessionsConfig      `yaml:"sessions" json:"sessions"`
	ReadOnly      bool                `yaml:"read_only" json:"read_only"`
}

// FileWatcherConfig configures the indexer's filesystem watch.
type FileWatcherConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	DebounceMS int  `yaml:"debounce_ms" json:"debounce_ms"`
}

// IndexingConfig configures scanning and incremental-index behavior.
type IndexingConfig struct {
	EnableAuto      bool              `yaml:"enable_auto" json:"enable_auto"`
	ExcludePatterns []string          `yaml:"exclude_patterns" json:"exclude_patterns"`
	MaxFileBytes    int64             `yaml:"max_file_bytes" json:"max_file_bytes"`
	FileWatcher     FileWatcherConfig `yaml:"file_watcher" json:"file_watcher"`
	// ParallelWorkers is "auto" (runtime.NumCPU()) or a decimal integer string.
	ParallelWorkers string `yaml:"parallel_workers" json:"parallel_workers"`
}

// ResolveParallelWorkers interprets ParallelWorkers, defaulting to
// runtime.NumCPU() for "auto" or an unparsable value.
func (c IndexingConfig) ResolveParallelWorkers() int {
	if strings.EqualFold(c.ParallelWorkers, "auto") || c.ParallelWorkers == "" {
		return runtime.NumCPU()
	}
	n, err := strconv.Atoi(c.ParallelWorkers)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// EmbeddingsConfig configures the embedding engine and its on-disk cache.
type EmbeddingsConfig struct {
	// Provider selects the Embedder implementation: "ollama" (default,
	// network-backed) or "static" (deterministic offline hash embedder).
	Provider      string `yaml:"provider" json:"provider"`
	ModelID       string `yaml:"model_id" json:"model_id"`
	Dimension     int    `yaml:"dimension" json:"dimension"`
	BatchSize     int    `yaml:"batch_size" json:"batch_size"`
	Parallel      bool   `yaml:"parallel" json:"parallel"`
	CachePath     string `yaml:"cache_path" json:"cache_path"`
	CacheMaxBytes int64  `yaml:"cache_max_bytes" json:"cache_max_bytes"`
	// OllamaHost is the HTTP endpoint used when ModelID names an Ollama
	// model rather than the built-in static hash embedder.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// InterBatchDelay, TimeoutProgression, and RetryTimeoutMultiplier tune
	// the embedder's backoff under sustained load; see embed.ThermalConfig.
	InterBatchDelay        string  `yaml:"inter_batch_delay" json:"inter_batch_delay"`
	TimeoutProgression     float64 `yaml:"timeout_progression" json:"timeout_progression"`
	RetryTimeoutMultiplier float64 `yaml:"retry_timeout_multiplier" json:"retry_timeout_multiplier"`
}

// PoolConfig configures the bounded vector-store connection pool.
type PoolConfig struct {
	Min               int `yaml:"min" json:"min"`
	Max               int `yaml:"max" json:"max"`
	AcquireTimeoutMS  int `yaml:"acquire_timeout_ms" json:"acquire_timeout_ms"`
	OpTimeoutMS       int `yaml:"op_timeout_ms" json:"op_timeout_ms"`
}

// StorageConfig configures the vector store's connection pool and health checks.
type StorageConfig struct {
	Pool                  PoolConfig `yaml:"pool" json:"pool"`
	HealthCheckIntervalMS int        `yaml:"health_check_interval_ms" json:"health_check_interval_ms"`
}

// BM25Config configures the lexical index's Okapi BM25/BM25+ parameters.
type BM25Config struct {
	K1       float64 `yaml:"k1" json:"k1"`
	B        float64 `yaml:"b" json:"b"`
	PlusDelta float64 `yaml:"plus_delta" json:"plus_delta"`
}

// RerankWeights configures the post-fusion re-ranking signal blend.
type RerankWeights struct {
	Similarity float64 `yaml:"similarity" json:"similarity"`
	Recency    float64 `yaml:"recency" json:"recency"`
	Usage      float64 `yaml:"usage" json:"usage"`
	Keyword    float64 `yaml:"keyword" json:"keyword"`
	Diversity  float64 `yaml:"diversity" json:"diversity"`
}

// SearchConfig configures hybrid search: mode/fusion defaults, BM25
// tuning, re-ranking weights, and MMR diversification.
type SearchConfig struct {
	DefaultMode   string        `yaml:"default_mode" json:"default_mode"`
	DefaultFusion string        `yaml:"default_fusion" json:"default_fusion"`
	Alpha         float64       `yaml:"alpha" json:"alpha"`
	BM25          BM25Config    `yaml:"bm25" json:"bm25"`
	BM25Backend   string        `yaml:"bm25_backend" json:"bm25_backend"`
	RerankWeights RerankWeights `yaml:"rerank_weights" json:"rerank_weights"`
	MMRLambda     float64       `yaml:"mmr_lambda" json:"mmr_lambda"`
}

// LifecycleConfig configures unit aging thresholds and session TTL.
type LifecycleConfig struct {
	ActiveDays      int `yaml:"active_days" json:"active_days"`
	RecentDays      int `yaml:"recent_days" json:"recent_days"`
	ArchivedDays    int `yaml:"archived_days" json:"archived_days"`
	SessionTTLHours int `yaml:"session_ttl_hours" json:"session_ttl_hours"`
}

// RetrievalGateConfig configures the optional pre-search relevance gate.
type RetrievalGateConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// SessionsConfig configures the named-session store used by `resume`,
// `sessions`, and `switch` to persist and reopen per-project server state.
type SessionsConfig struct {
	// StoragePath is the directory where session records are kept.
	// Defaults to ~/.semcode/sessions.
	StoragePath string `yaml:"storage_path" json:"storage_path"`
	// MaxSessions bounds how many sessions may be stored at once.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

func defaultSessionsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".semcode", "sessions")
	}
	return filepath.Join(home, ".semcode", "sessions")
}

// defaultExcludePatterns are always excluded from indexing.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Indexing: IndexingConfig{
			EnableAuto:      true,
			ExcludePatterns: defaultExcludePatterns,
			MaxFileBytes:    2 * 1024 * 1024,
			FileWatcher: FileWatcherConfig{
				Enabled:    true,
				DebounceMS: 300,
			},
			ParallelWorkers: "auto",
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "static",
			ModelID:       "static-hash-v1",
			Dimension:     256,
			BatchSize:     32,
			Parallel:      true,
			CachePath:     defaultEmbeddingCachePath(),
			CacheMaxBytes: 512 * 1024 * 1024,
			OllamaHost:    "",
		},
		Storage: StorageConfig{
			Pool: PoolConfig{
				Min:              1,
				Max:              8,
				AcquireTimeoutMS: 2000,
				OpTimeoutMS:      5000,
			},
			HealthCheckIntervalMS: 30000,
		},
		Search: SearchConfig{
			DefaultMode:   "hybrid",
			DefaultFusion: "weighted",
			Alpha:         0.5,
			BM25: BM25Config{
				K1:        1.2,
				B:         0.75,
				PlusDelta: 1.0,
			},
			RerankWeights: RerankWeights{
				Similarity: 0.60,
				Recency:    0.20,
				Usage:      0.20,
				Keyword:    0,
				Diversity:  0,
			},
			MMRLambda: 0.5,
		},
		Lifecycle: LifecycleConfig{
			ActiveDays:      7,
			RecentDays:      30,
			ArchivedDays:    180,
			SessionTTLHours: 48,
		},
		RetrievalGate: RetrievalGateConfig{
			Enabled:   false,
			Threshold: 0.35,
		},
		Sessions: SessionsConfig{
			StoragePath: defaultSessionsPath(),
			MaxSessions: 20,
		},
		ReadOnly: false,
	}
}

func defaultEmbeddingCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".semcode", "embedding-cache")
	}
	return filepath.Join(home, ".semcode", "embedding-cache")
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semcode", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "semcode", "config.yaml")
	}
	return filepath.Join(home, ".config", "semcode", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the project at dir, applying in order of
// increasing precedence: hardcoded defaults, user/global config
// (~/.config/semcode/config.yaml), project config (.semcode.yaml in dir),
// then CLAUDE_RAG_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .semcode.yaml or .semcode.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".semcode.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".semcode.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Indexing.ExcludePatterns) > 0 {
		c.Indexing.ExcludePatterns = append(c.Indexing.ExcludePatterns, other.Indexing.ExcludePatterns...)
	}
	if other.Indexing.MaxFileBytes != 0 {
		c.Indexing.MaxFileBytes = other.Indexing.MaxFileBytes
	}
	if other.Indexing.ParallelWorkers != "" {
		c.Indexing.ParallelWorkers = other.Indexing.ParallelWorkers
	}
	if other.Indexing.FileWatcher.DebounceMS != 0 {
		c.Indexing.FileWatcher.DebounceMS = other.Indexing.FileWatcher.DebounceMS
	}

	if other.Embeddings.ModelID != "" {
		c.Embeddings.ModelID = other.Embeddings.ModelID
	}
	if other.Embeddings.Dimension != 0 {
		c.Embeddings.Dimension = other.Embeddings.Dimension
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CachePath != "" {
		c.Embeddings.CachePath = other.Embeddings.CachePath
	}
	if other.Embeddings.CacheMaxBytes != 0 {
		c.Embeddings.CacheMaxBytes = other.Embeddings.CacheMaxBytes
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}

	if other.Storage.Pool.Min != 0 {
		c.Storage.Pool.Min = other.Storage.Pool.Min
	}
	if other.Storage.Pool.Max != 0 {
		c.Storage.Pool.Max = other.Storage.Pool.Max
	}
	if other.Storage.Pool.AcquireTimeoutMS != 0 {
		c.Storage.Pool.AcquireTimeoutMS = other.Storage.Pool.AcquireTimeoutMS
	}
	if other.Storage.Pool.OpTimeoutMS != 0 {
		c.Storage.Pool.OpTimeoutMS = other.Storage.Pool.OpTimeoutMS
	}
	if other.Storage.HealthCheckIntervalMS != 0 {
		c.Storage.HealthCheckIntervalMS = other.Storage.HealthCheckIntervalMS
	}

	if other.Search.DefaultMode != "" {
		c.Search.DefaultMode = other.Search.DefaultMode
	}
	if other.Search.DefaultFusion != "" {
		c.Search.DefaultFusion = other.Search.DefaultFusion
	}
	if other.Search.Alpha != 0 {
		c.Search.Alpha = other.Search.Alpha
	}
	if other.Search.BM25.K1 != 0 {
		c.Search.BM25.K1 = other.Search.BM25.K1
	}
	if other.Search.BM25.B != 0 {
		c.Search.BM25.B = other.Search.BM25.B
	}
	if other.Search.BM25.PlusDelta != 0 {
		c.Search.BM25.PlusDelta = other.Search.BM25.PlusDelta
	}
	if other.Search.BM25Backend != "" {
		c.Search.BM25Backend = other.Search.BM25Backend
	}
	if other.Search.MMRLambda != 0 {
		c.Search.MMRLambda = other.Search.MMRLambda
	}
	if (other.Search.RerankWeights != RerankWeights{}) {
		c.Search.RerankWeights = other.Search.RerankWeights
	}

	if other.Lifecycle.ActiveDays != 0 {
		c.Lifecycle.ActiveDays = other.Lifecycle.ActiveDays
	}
	if other.Lifecycle.RecentDays != 0 {
		c.Lifecycle.RecentDays = other.Lifecycle.RecentDays
	}
	if other.Lifecycle.ArchivedDays != 0 {
		c.Lifecycle.ArchivedDays = other.Lifecycle.ArchivedDays
	}
	if other.Lifecycle.SessionTTLHours != 0 {
		c.Lifecycle.SessionTTLHours = other.Lifecycle.SessionTTLHours
	}

	if other.RetrievalGate.Threshold != 0 {
		c.RetrievalGate.Threshold = other.RetrievalGate.Threshold
	}
	c.RetrievalGate.Enabled = c.RetrievalGate.Enabled || other.RetrievalGate.Enabled

	if other.Sessions.StoragePath != "" {
		c.Sessions.StoragePath = other.Sessions.StoragePath
	}
	if other.Sessions.MaxSessions != 0 {
		c.Sessions.MaxSessions = other.Sessions.MaxSessions
	}

	c.ReadOnly = c.ReadOnly || other.ReadOnly
}

// applyEnvOverrides applies CLAUDE_RAG_* environment overrides, mapping
// dotted config paths to SCREAMING_SNAKE_CASE with dots replaced by
// underscores (e.g. search.alpha -> CLAUDE_RAG_SEARCH_ALPHA).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLAUDE_RAG_SEARCH_ALPHA"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.Alpha = f
		}
	}
	if v := os.Getenv("CLAUDE_RAG_SEARCH_DEFAULT_MODE"); v != "" {
		c.Search.DefaultMode = v
	}
	if v := os.Getenv("CLAUDE_RAG_SEARCH_DEFAULT_FUSION"); v != "" {
		c.Search.DefaultFusion = v
	}
	if v := os.Getenv("CLAUDE_RAG_SEARCH_BM25_K1"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Search.BM25.K1 = f
		}
	}
	if v := os.Getenv("CLAUDE_RAG_SEARCH_BM25_B"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Search.BM25.B = f
		}
	}
	if v := os.Getenv("CLAUDE_RAG_SEARCH_MMR_LAMBDA"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Search.MMRLambda = f
		}
	}

	if v := os.Getenv("CLAUDE_RAG_EMBEDDINGS_MODEL_ID"); v != "" {
		c.Embeddings.ModelID = v
	}
	if v := os.Getenv("CLAUDE_RAG_EMBEDDINGS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CLAUDE_RAG_EMBEDDINGS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.BatchSize = n
		}
	}

	if v := os.Getenv("CLAUDE_RAG_INDEXING_PARALLEL_WORKERS"); v != "" {
		c.Indexing.ParallelWorkers = v
	}
	if v := os.Getenv("CLAUDE_RAG_INDEXING_ENABLE_AUTO"); v != "" {
		c.Indexing.EnableAuto = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("CLAUDE_RAG_LIFECYCLE_ACTIVE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Lifecycle.ActiveDays = n
		}
	}
	if v := os.Getenv("CLAUDE_RAG_LIFECYCLE_RECENT_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Lifecycle.RecentDays = n
		}
	}
	if v := os.Getenv("CLAUDE_RAG_LIFECYCLE_ARCHIVED_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Lifecycle.ArchivedDays = n
		}
	}

	if v := os.Getenv("CLAUDE_RAG_RETRIEVAL_GATE_ENABLED"); v != "" {
		c.RetrievalGate.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CLAUDE_RAG_RETRIEVAL_GATE_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.RetrievalGate.Threshold = f
		}
	}

	if v := os.Getenv("CLAUDE_RAG_READ_ONLY"); v != "" {
		c.ReadOnly = strings.EqualFold(v, "true") || v == "1"
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate checks invariants on the final merged configuration.
func (c *Config) Validate() error {
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %f", c.Search.Alpha)
	}

	validModes := map[string]bool{"semantic": true, "keyword": true, "hybrid": true}
	if !validModes[c.Search.DefaultMode] {
		return fmt.Errorf("search.default_mode must be 'semantic', 'keyword', or 'hybrid', got %s", c.Search.DefaultMode)
	}

	validFusion := map[string]bool{"weighted": true, "rrf": true, "cascade": true}
	if !validFusion[c.Search.DefaultFusion] {
		return fmt.Errorf("search.default_fusion must be 'weighted', 'rrf', or 'cascade', got %s", c.Search.DefaultFusion)
	}

	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return fmt.Errorf("search.mmr_lambda must be between 0 and 1, got %f", c.Search.MMRLambda)
	}

	if c.Storage.Pool.Min < 0 || c.Storage.Pool.Max < c.Storage.Pool.Min {
		return fmt.Errorf("storage.pool.max must be >= storage.pool.min, got min=%d max=%d",
			c.Storage.Pool.Min, c.Storage.Pool.Max)
	}

	if c.Lifecycle.ActiveDays <= 0 || c.Lifecycle.RecentDays <= c.Lifecycle.ActiveDays ||
		c.Lifecycle.ArchivedDays <= c.Lifecycle.RecentDays {
		return fmt.Errorf("lifecycle thresholds must be strictly increasing (active < recent < archived), got %d/%d/%d",
			c.Lifecycle.ActiveDays, c.Lifecycle.RecentDays, c.Lifecycle.ArchivedDays)
	}

	if c.RetrievalGate.Threshold < 0 || c.RetrievalGate.Threshold > 1 {
		return fmt.Errorf("retrieval_gate.threshold must be between 0 and 1, got %f", c.RetrievalGate.Threshold)
	}

	if math.IsNaN(c.Search.Alpha) {
		return fmt.Errorf("search.alpha must not be NaN")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file, if present.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// FindProjectRoot walks up from startDir looking for a .git directory or
// a .semcode.yaml/.yml marker file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".semcode.yaml")) ||
			fileExists(filepath.Join(currentDir, ".semcode.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
