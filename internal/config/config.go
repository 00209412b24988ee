package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete ewbsearch configuration. Engine connectivity,
// registry naming, ingestion tuning, and the query catalogue defaults all
// live here; per-corpus metadata mappings sit under the corpora map keyed
// by corpus stem.
type Config struct {
	Version  int                     `yaml:"version" json:"version"`
	Engine   EngineConfig            `yaml:"engine" json:"engine"`
	Registry RegistryConfig          `yaml:"registry" json:"registry"`
	Ingest   IngestConfig            `yaml:"ingest" json:"ingest"`
	Fields   FieldsConfig            `yaml:"fields" json:"fields"`
	Query    QueryConfig             `yaml:"query" json:"query"`
	Corpora  map[string]CorpusConfig `yaml:"corpora" json:"corpora"`
	Mallet   MalletConfig            `yaml:"mallet" json:"mallet"`
	Server   ServerConfig            `yaml:"server" json:"server"`
	Logging  LoggingConfig           `yaml:"logging" json:"logging"`
}

// EngineConfig configures the search engine connection.
type EngineConfig struct {
	// URL is the engine base URL, e.g. http://localhost:8983.
	URL string `yaml:"url" json:"url"`

	// Timeout bounds every engine HTTP request. Default: 10s.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Shards and ReplicationFactor are passed to collection creation.
	Shards            int `yaml:"shards" json:"shards"`
	ReplicationFactor int `yaml:"replication_factor" json:"replication_factor"`
}

// RegistryConfig configures the corpora registry collection.
type RegistryConfig struct {
	// Collection is the registry collection name. Default: "Corpora".
	Collection string `yaml:"collection" json:"collection"`
}

// IngestConfig tunes the indexing pipeline.
type IngestConfig struct {
	// BatchSize is the number of documents per update request. Default: 100.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// PayloadScale is the integer total S that the weighted payload entries
	// of a document sum to. Default: 1000.
	PayloadScale int `yaml:"payload_scale" json:"payload_scale"`

	// MaxSum is a synonym for PayloadScale kept for operators migrating old
	// configs. When both are set they must agree.
	MaxSum int `yaml:"max_sum" json:"max_sum"`

	// ParallelBatches caps how many update batches are in flight at once
	// within a single pipeline step. Default: 1 (strictly sequential).
	ParallelBatches int `yaml:"parallel_batches" json:"parallel_batches"`

	// LockDir holds the per-collection ingest lock files.
	// Default: <tmp>/ewbsearch-locks.
	LockDir string `yaml:"lock_dir" json:"lock_dir"`
}

// FieldsConfig names the engine field types used for the per-model fields on
// corpus documents. The types must exist in the engine's schema
// configuration; collection setup fails when they are absent.
type FieldsConfig struct {
	DocTopicsType  string `yaml:"doc_topics_type" json:"doc_topics_type"`
	SimilarityType string `yaml:"similarity_type" json:"similarity_type"`
}

// QueryConfig configures the query catalogue defaults.
type QueryConfig struct {
	// DenylistFields are engine-internal or bulky fields never reported as
	// corpus metadata and never returned by metadata queries.
	DenylistFields []string `yaml:"denylist_fields" json:"denylist_fields"`

	// ResultsDir is where bare result file names are persisted.
	// Default: ./results.
	ResultsDir string `yaml:"results_dir" json:"results_dir"`
}

// CorpusConfig maps source-specific metadata columns of one corpus onto the
// canonical title/date fields. Sections are keyed by corpus stem,
// case-insensitively.
type CorpusConfig struct {
	TitleField string `yaml:"title_field" json:"title_field"`
	DateField  string `yaml:"date_field" json:"date_field"`
}

// MalletConfig configures the Mallet trainer family.
type MalletConfig struct {
	// CorpusFile is the file inside a Mallet model folder that carries the
	// document identifiers, one per line. Default: "corpus.txt".
	CorpusFile string `yaml:"corpus_file" json:"corpus_file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8321".
	Addr string `yaml:"addr" json:"addr"`

	// Metrics exposes Prometheus metrics on /metrics. Default: true.
	Metrics bool `yaml:"metrics" json:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`

	// File enables size-rotated file logging when non-empty.
	File string `yaml:"file" json:"file"`

	// WriteToStderr mirrors log output to stderr. Default: true.
	WriteToStderr bool `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// defaultDenylistFields are never reported as corpus metadata fields.
// all_lemmas is the computed lemma text the loader indexes; it is bulky
// and only Q15 asks for it explicitly.
var defaultDenylistFields = []string{
	"lemmas",
	"all_lemmas",
	"bow",
	"_version_",
	"nwords_per_doc",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			URL:               "http://localhost:8983",
			Timeout:           10 * time.Second,
			Shards:            2,
			ReplicationFactor: 1,
		},
		Registry: RegistryConfig{
			Collection: "Corpora",
		},
		Ingest: IngestConfig{
			BatchSize:    100,
			PayloadScale: 1000,
			// MaxSum stays 0 so a configured synonym is detectable.
			ParallelBatches: 1,
			LockDir:         defaultLockDir(),
		},
		Fields: FieldsConfig{
			DocTopicsType:  "VectorField",
			SimilarityType: "VectorFloatField",
		},
		Query: QueryConfig{
			DenylistFields: defaultDenylistFields,
			ResultsDir:     "./results",
		},
		Corpora: map[string]CorpusConfig{},
		Mallet: MalletConfig{
			CorpusFile: "corpus.txt",
		},
		Server: ServerConfig{
			Addr:    ":8321",
			Metrics: true,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "json",
			File:          "",
			WriteToStderr: true,
		},
	}
}

// defaultLockDir returns the default ingest lock directory.
func defaultLockDir() string {
	return filepath.Join(os.TempDir(), "ewbsearch-locks")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/ewbsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ewbsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ewbsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "ewbsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "ewbsearch", "config.yaml")
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
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/ewbsearch/config.yaml)
//  3. Deployment config (.ewbsearch.yaml in dir)
//  4. Environment variables (EWBSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.reconcilePayloadScale(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFile loads configuration from an explicit file path (the --config
// flag). The file must exist. Environment overrides still apply on top.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.reconcilePayloadScale(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir attempts to load configuration from .ewbsearch.yaml or
// .ewbsearch.yml in dir.
func (c *Config) loadFromDir(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".ewbsearch.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".ewbsearch.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Engine
	if other.Engine.URL != "" {
		c.Engine.URL = other.Engine.URL
	}
	if other.Engine.Timeout != 0 {
		c.Engine.Timeout = other.Engine.Timeout
	}
	if other.Engine.Shards != 0 {
		c.Engine.Shards = other.Engine.Shards
	}
	if other.Engine.ReplicationFactor != 0 {
		c.Engine.ReplicationFactor = other.Engine.ReplicationFactor
	}

	// Registry
	if other.Registry.Collection != "" {
		c.Registry.Collection = other.Registry.Collection
	}

	// Ingest
	if other.Ingest.BatchSize != 0 {
		c.Ingest.BatchSize = other.Ingest.BatchSize
	}
	if other.Ingest.PayloadScale != 0 {
		c.Ingest.PayloadScale = other.Ingest.PayloadScale
	}
	if other.Ingest.MaxSum != 0 {
		c.Ingest.MaxSum = other.Ingest.MaxSum
	}
	if other.Ingest.ParallelBatches != 0 {
		c.Ingest.ParallelBatches = other.Ingest.ParallelBatches
	}
	if other.Ingest.LockDir != "" {
		c.Ingest.LockDir = other.Ingest.LockDir
	}

	// Fields
	if other.Fields.DocTopicsType != "" {
		c.Fields.DocTopicsType = other.Fields.DocTopicsType
	}
	if other.Fields.SimilarityType != "" {
		c.Fields.SimilarityType = other.Fields.SimilarityType
	}

	// Query
	if len(other.Query.DenylistFields) > 0 {
		c.Query.DenylistFields = other.Query.DenylistFields
	}
	if other.Query.ResultsDir != "" {
		c.Query.ResultsDir = other.Query.ResultsDir
	}

	// Corpora sections override per stem, not wholesale
	for stem, section := range other.Corpora {
		if c.Corpora == nil {
			c.Corpora = map[string]CorpusConfig{}
		}
		c.Corpora[stem] = section
	}

	// Mallet
	if other.Mallet.CorpusFile != "" {
		c.Mallet.CorpusFile = other.Mallet.CorpusFile
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	// Metrics is boolean and defaults to true; merge it only when the
	// server section is recognizably present.
	if other.Server.Addr != "" {
		c.Server.Metrics = other.Server.Metrics
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	// WriteToStderr is boolean and defaults to true; merge it only when the
	// logging section is recognizably present.
	if other.Logging.Level != "" || other.Logging.Format != "" || other.Logging.File != "" {
		c.Logging.WriteToStderr = other.Logging.WriteToStderr
	}
}

// applyEnvOverrides applies EWBSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EWBSEARCH_ENGINE_URL"); v != "" {
		c.Engine.URL = v
	}
	if v := os.Getenv("EWBSEARCH_REGISTRY_COLLECTION"); v != "" {
		c.Registry.Collection = v
	}
	if v := os.Getenv("EWBSEARCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.BatchSize = n
		}
	}
	if v := os.Getenv("EWBSEARCH_PAYLOAD_SCALE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.PayloadScale = n
		}
	}
	// EWBSEARCH_MAX_SUM is the synonym spelling of EWBSEARCH_PAYLOAD_SCALE.
	if v := os.Getenv("EWBSEARCH_MAX_SUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.MaxSum = n
		}
	}
	if v := os.Getenv("EWBSEARCH_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("EWBSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EWBSEARCH_RESULTS_DIR"); v != "" {
		c.Query.ResultsDir = v
	}
}

// reconcilePayloadScale folds the max_sum synonym into payload_scale.
// A max_sum next to an untouched payload_scale adopts it; a max_sum that
// contradicts an explicit payload_scale is an operator mistake.
func (c *Config) reconcilePayloadScale() error {
	if c.Ingest.MaxSum == 0 {
		return nil
	}
	defaults := NewConfig()
	if c.Ingest.PayloadScale == defaults.Ingest.PayloadScale {
		c.Ingest.PayloadScale = c.Ingest.MaxSum
		return nil
	}
	if c.Ingest.PayloadScale != c.Ingest.MaxSum {
		return fmt.Errorf("ingest.max_sum (%d) and ingest.payload_scale (%d) disagree; set one or make them equal",
			c.Ingest.MaxSum, c.Ingest.PayloadScale)
	}
	return nil
}

// SectionFor returns the per-corpus metadata mapping for a corpus stem.
// Section keys match case-insensitively.
func (c *Config) SectionFor(stem string) (CorpusConfig, bool) {
	if section, ok := c.Corpora[stem]; ok {
		return section, true
	}
	for key, section := range c.Corpora {
		if strings.EqualFold(key, stem) {
			return section, true
		}
	}
	return CorpusConfig{}, false
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Engine connectivity
	if c.Engine.URL == "" {
		return fmt.Errorf("engine.url must not be empty")
	}
	u, err := url.Parse(c.Engine.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("engine.url must be an absolute URL, got %q", c.Engine.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("engine.url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if c.Engine.Shards < 1 {
		return fmt.Errorf("engine.shards must be at least 1, got %d", c.Engine.Shards)
	}
	if c.Engine.ReplicationFactor < 1 {
		return fmt.Errorf("engine.replication_factor must be at least 1, got %d", c.Engine.ReplicationFactor)
	}

	// Registry
	if c.Registry.Collection == "" {
		return fmt.Errorf("registry.collection must not be empty")
	}

	// Ingest
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.PayloadScale < 1 {
		return fmt.Errorf("ingest.payload_scale must be at least 1, got %d", c.Ingest.PayloadScale)
	}
	if c.Ingest.ParallelBatches < 1 {
		return fmt.Errorf("ingest.parallel_batches must be at least 1, got %d", c.Ingest.ParallelBatches)
	}

	// Fields
	if c.Fields.DocTopicsType == "" {
		return fmt.Errorf("fields.doc_topics_type must not be empty")
	}
	if c.Fields.SimilarityType == "" {
		return fmt.Errorf("fields.similarity_type must not be empty")
	}

	// Server
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format must be 'json' or 'text', got %s", c.Logging.Format)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
