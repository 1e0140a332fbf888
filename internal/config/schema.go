package config

// Config holds redline configuration.
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server"`
	Pool       PoolCfg       `mapstructure:"pool" yaml:"pool"`
	Storage    StorageCfg    `mapstructure:"storage" yaml:"storage"`
	Blob       BlobCfg       `mapstructure:"blob" yaml:"blob"`
	Extraction ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Analysis   AnalysisCfg   `mapstructure:"analysis" yaml:"analysis"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
	// StatusCacheTTLSeconds bounds how stale a cached status read may be.
	StatusCacheTTLSeconds int `mapstructure:"status_cache_ttl_seconds" yaml:"status_cache_ttl_seconds"`
}

// PoolCfg configures the shared extraction worker pool.
type PoolCfg struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// StorageCfg configures content persistence.
type StorageCfg struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "duckdb", "memory"
	Path    string `mapstructure:"path" yaml:"path"`       // DuckDB database file
}

// BlobCfg configures page-image staging.
type BlobCfg struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "local", "gcs", "memory"
	Dir     string `mapstructure:"dir" yaml:"dir"`         // local backend root
	Bucket  string `mapstructure:"bucket" yaml:"bucket"`   // gcs backend bucket
}

// ExtractionCfg configures the page-extraction engine.
type ExtractionCfg struct {
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
}

// AnalysisCfg configures the risk-analysis engine.
type AnalysisCfg struct {
	Provider       string `mapstructure:"provider" yaml:"provider"` // "openai", "http", "mock"
	Model          string `mapstructure:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Mode           string `mapstructure:"mode" yaml:"mode"` // "sync", "async"
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:                  "0.0.0.0",
			Port:                  8080,
			LogLevel:              "info",
			StatusCacheTTLSeconds: 5,
		},
		Pool: PoolCfg{
			Workers:   10,
			QueueSize: 100,
		},
		Storage: StorageCfg{
			Backend: "duckdb",
			Path:    "redline.db",
		},
		Blob: BlobCfg{
			Backend: "local",
			Dir:     "blobs",
		},
		Extraction: ExtractionCfg{
			BaseURL:        "http://localhost:9090",
			APIKey:         "${EXTRACTION_API_KEY}",
			RateLimit:      10.0,
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		Analysis: AnalysisCfg{
			Provider:       "openai",
			Model:          "gpt-4o",
			APIKey:         "${OPENAI_API_KEY}",
			Mode:           "sync",
			TimeoutSeconds: 300,
			MaxRetries:     2,
		},
	}
}
