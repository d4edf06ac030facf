package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"dirzip/internal/dirzip"
)

// Config represents the main configuration for dirzip.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // debug, info, warn or error
	Server     ServerConfig     `toml:"server"`
	Transfer   TransferConfig   `toml:"transfer"`
	Flow       FlowConfig       `toml:"flow"`
	Memory     MemoryConfig     `toml:"memory"`
	Database   DatabaseConfig   `toml:"database"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Encryption EncryptionConfig `toml:"encryption"`
	Export     ExportConfig     `toml:"export"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	FolderRoot        string   `toml:"folder_root"` // directory whose children are served
	MaxConnections    int      `toml:"max_connections"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
	// SkipLength makes calculateLength default to false when a request
	// does not set it.
	SkipLength bool `toml:"skip_length"`
}

// TransferConfig holds the per-transfer deadlines and read size.
type TransferConfig struct {
	Timeout          Duration `toml:"timeout"`
	SizeTimeout      Duration `toml:"size_timeout"`
	ChunkSize        int      `toml:"chunk_size"`
	StreamOnSlowSize bool     `toml:"stream_on_slow_size"`
}

// FlowConfig holds the flush thresholds. A negative SinkFlushFiles or
// Yield disables that behavior.
type FlowConfig struct {
	EntryFlushBytes      int64    `toml:"entry_flush_bytes"`
	LargeEntryFlushBytes int64    `toml:"large_entry_flush_bytes"`
	LargeFileThreshold   int64    `toml:"large_file_threshold"`
	SinkFlushBytes       int64    `toml:"sink_flush_bytes"`
	SinkFlushFiles       int      `toml:"sink_flush_files"`
	Yield                Duration `toml:"yield"`
}

// MemoryConfig holds the resource monitor settings.
type MemoryConfig struct {
	Disabled      bool     `toml:"disabled"`
	CheckFloor    int64    `toml:"check_floor_bytes"`
	CheckInterval Duration `toml:"check_interval"`
	Ceiling       uint64   `toml:"ceiling_bytes"`
}

// DatabaseConfig represents configuration for the transfer journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// EncryptionConfig holds paths to the age key pair used for encrypted exports.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ExportConfig holds settings for pack destinations.
type ExportConfig struct {
	S3Region      string `toml:"s3_region,omitempty"`
	S3Endpoint    string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	S3PartSize    int64  `toml:"s3_part_size,omitempty"`
	S3Concurrency int    `toml:"s3_concurrency,omitempty"`
	// Static credentials. When empty the default AWS credential chain
	// (environment, shared config, instance role) is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// Server defaults.
const (
	DefaultAddr              = ":8080"
	DefaultMaxConnections    = 100
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultLogLevel          = "info"
)

// NewConfig creates a Config rooted at baseDir with every setting at its
// default.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
	return cfg.WithDefaults()
}

// WithDefaults fills every zero setting with its default and returns cfg.
func (cfg *Config) WithDefaults() *Config {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogDir == "" && cfg.BaseDir != "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}

	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if s.FolderRoot == "" && cfg.BaseDir != "" {
		s.FolderRoot = filepath.Join(cfg.BaseDir, "folders")
	}
	if s.MaxConnections == 0 {
		s.MaxConnections = DefaultMaxConnections
	}
	setDuration(&s.ReadHeaderTimeout, DefaultReadHeaderTimeout)
	setDuration(&s.ShutdownTimeout, DefaultShutdownTimeout)

	tr := &cfg.Transfer
	setDuration(&tr.Timeout, dirzip.DefaultTimeout)
	setDuration(&tr.SizeTimeout, dirzip.DefaultSizeTimeout)
	if tr.ChunkSize <= 0 {
		tr.ChunkSize = dirzip.DefaultChunkSize
	}

	f := &cfg.Flow
	setInt64(&f.EntryFlushBytes, dirzip.DefaultEntryFlushBytes)
	setInt64(&f.LargeEntryFlushBytes, dirzip.DefaultLargeEntryFlushBytes)
	setInt64(&f.LargeFileThreshold, dirzip.DefaultLargeFileThreshold)
	setInt64(&f.SinkFlushBytes, dirzip.DefaultSinkFlushBytes)
	if f.SinkFlushFiles == 0 {
		f.SinkFlushFiles = dirzip.DefaultSinkFlushFiles
	}
	setDuration(&f.Yield, dirzip.DefaultYield)

	m := &cfg.Memory
	setInt64(&m.CheckFloor, dirzip.DefaultCheckFloor)
	setDuration(&m.CheckInterval, dirzip.DefaultCheckInterval)
	if m.Ceiling == 0 {
		m.Ceiling = dirzip.DefaultMemoryCeiling
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" && cfg.BaseDir != "" {
		cfg.Database.DataDir = filepath.Join(cfg.BaseDir, "db")
	}
	e := &cfg.Encryption
	if e.Type == "" {
		e.Type = "age"
	}
	if cfg.BaseDir != "" {
		if e.PublicKeyPath == "" {
			e.PublicKeyPath = filepath.Join(cfg.BaseDir, "keys", "dirzip.pub")
		}
		if e.PrivateKeyPath == "" {
			e.PrivateKeyPath = filepath.Join(cfg.BaseDir, "keys", "dirzip.key")
		}
	}
	return cfg
}

// Validate reports settings that cannot work.
func (cfg *Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if cfg.Transfer.SizeTimeout.Duration > cfg.Transfer.Timeout.Duration {
		return fmt.Errorf("transfer.size_timeout (%s) exceeds transfer.timeout (%s)",
			cfg.Transfer.SizeTimeout, cfg.Transfer.Timeout)
	}
	return nil
}

// FlowPolicy converts the flow settings into the archive flow policy.
func (f FlowConfig) FlowPolicy() dirzip.FlowPolicy {
	p := dirzip.FlowPolicy{
		EntryFlushBytes:      f.EntryFlushBytes,
		LargeEntryFlushBytes: f.LargeEntryFlushBytes,
		LargeFileThreshold:   f.LargeFileThreshold,
		SinkFlushBytes:       f.SinkFlushBytes,
		SinkFlushFiles:       max(f.SinkFlushFiles, 0),
		Yield:                max(f.Yield.Duration, 0),
	}
	return p.WithDefaults()
}

// Options converts the transfer settings into archive service options.
func (t TransferConfig) Options() dirzip.Options {
	return dirzip.Options{
		Timeout:          t.Timeout.Duration,
		SizeTimeout:      t.SizeTimeout.Duration,
		ChunkSize:        t.ChunkSize,
		StreamOnSlowSize: t.StreamOnSlowSize,
	}
}

func setDuration(d *Duration, def time.Duration) {
	if d.Duration == 0 {
		d.Duration = def
	}
}

func setInt64(v *int64, def int64) {
	if *v <= 0 {
		*v = def
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Unset settings take
// their defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg.WithDefaults(), nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
