package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source   SourceConfig `yaml:"source"`
	Dest     DestConfig   `yaml:"dest"`
	Transfer Transfer     `yaml:"transfer"`
	LogLevel string       `yaml:"log_level"`
}

// SourceConfig describes the source object store and container
type SourceConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Container string `yaml:"container"`
	Prefix    string `yaml:"prefix"`
}

// DestConfig describes the destination object store and bucket
type DestConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Transfer represents transfer-specific configuration
type Transfer struct {
	Object         string `yaml:"object"`
	Concurrency    int    `yaml:"concurrency"`
	BandwidthMBps  int64  `yaml:"bandwidth_mbps"`
	MaxAttempts    int    `yaml:"max_attempts"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
	StageDir       string `yaml:"stage_dir"`
	Ledger         string `yaml:"ledger"`
	Resume         bool   `yaml:"resume"`
	DryRun         bool   `yaml:"dry_run"`
	ShowProgress   bool   `yaml:"show_progress"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Transfer: Transfer{
			Concurrency:    8,
			BandwidthMBps:  100,
			MaxAttempts:    3,
			RetryBackoffMs: 1000,
			StageDir:       "",
			Ledger:         "./transfer.db",
			ShowProgress:   true,
		},
	}

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	// Credentials fall back to the environment when not set elsewhere
	applyEnv(cfg)

	if cfg.Transfer.StageDir == "" {
		cfg.Transfer.StageDir = fmt.Sprintf("%s/%s", os.TempDir(), cfg.Dest.Bucket)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	if flags.Changed("src-endpoint") {
		cfg.Source.Endpoint, _ = flags.GetString("src-endpoint")
	}
	if flags.Changed("src-access-key") {
		cfg.Source.AccessKey, _ = flags.GetString("src-access-key")
	}
	if flags.Changed("src-secret-key") {
		cfg.Source.SecretKey, _ = flags.GetString("src-secret-key")
	}
	if flags.Changed("src-secure") {
		cfg.Source.Secure, _ = flags.GetBool("src-secure")
	}
	if flags.Changed("container") {
		cfg.Source.Container, _ = flags.GetString("container")
	}
	if flags.Changed("src-prefix") {
		cfg.Source.Prefix, _ = flags.GetString("src-prefix")
	}

	if flags.Changed("dst-endpoint") {
		cfg.Dest.Endpoint, _ = flags.GetString("dst-endpoint")
	}
	if flags.Changed("dst-access-key") {
		cfg.Dest.AccessKey, _ = flags.GetString("dst-access-key")
	}
	if flags.Changed("dst-secret-key") {
		cfg.Dest.SecretKey, _ = flags.GetString("dst-secret-key")
	}
	if flags.Changed("dst-secure") {
		cfg.Dest.Secure, _ = flags.GetBool("dst-secure")
	}
	if flags.Changed("region") {
		cfg.Dest.Region, _ = flags.GetString("region")
	}
	if flags.Changed("bucket") {
		cfg.Dest.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("dst-prefix") {
		cfg.Dest.Prefix, _ = flags.GetString("dst-prefix")
	}

	if flags.Changed("object") {
		cfg.Transfer.Object, _ = flags.GetString("object")
	}
	if flags.Changed("concurrency") {
		cfg.Transfer.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("bandwidth-mbps") {
		cfg.Transfer.BandwidthMBps, _ = flags.GetInt64("bandwidth-mbps")
	}
	if flags.Changed("max-attempts") {
		cfg.Transfer.MaxAttempts, _ = flags.GetInt("max-attempts")
	}
	if flags.Changed("retry-backoff-ms") {
		cfg.Transfer.RetryBackoffMs, _ = flags.GetInt("retry-backoff-ms")
	}
	if flags.Changed("stage-dir") {
		cfg.Transfer.StageDir, _ = flags.GetString("stage-dir")
	}
	if flags.Changed("ledger") {
		cfg.Transfer.Ledger, _ = flags.GetString("ledger")
	}
	if flags.Changed("resume") {
		cfg.Transfer.Resume, _ = flags.GetBool("resume")
	}
	if flags.Changed("dry-run") {
		cfg.Transfer.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("show-progress") {
		cfg.Transfer.ShowProgress, _ = flags.GetBool("show-progress")
	}
	if flags.Changed("metrics-addr") {
		cfg.Transfer.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func applyEnv(cfg *Config) {
	if cfg.Source.AccessKey == "" {
		cfg.Source.AccessKey = os.Getenv("SRC_ACCESS_KEY_ID")
	}
	if cfg.Source.SecretKey == "" {
		cfg.Source.SecretKey = os.Getenv("SRC_SECRET_ACCESS_KEY")
	}
	if cfg.Dest.AccessKey == "" {
		cfg.Dest.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if cfg.Dest.SecretKey == "" {
		cfg.Dest.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

func (c *Config) validate() error {
	if c.Source.Endpoint == "" {
		return fmt.Errorf("source endpoint is required")
	}
	if c.Source.AccessKey == "" {
		return fmt.Errorf("source access key is required")
	}
	if c.Source.SecretKey == "" {
		return fmt.Errorf("source secret key is required")
	}
	if c.Source.Container == "" {
		return fmt.Errorf("source container is required")
	}

	if c.Dest.Endpoint == "" {
		return fmt.Errorf("destination endpoint is required")
	}
	if c.Dest.AccessKey == "" {
		return fmt.Errorf("destination access key is required")
	}
	if c.Dest.SecretKey == "" {
		return fmt.Errorf("destination secret key is required")
	}
	if c.Dest.Bucket == "" {
		return fmt.Errorf("destination bucket is required")
	}

	if c.Transfer.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.Transfer.BandwidthMBps < 1 {
		return fmt.Errorf("bandwidth limit must be at least 1 MB/s")
	}
	if c.Transfer.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}

	return nil
}
