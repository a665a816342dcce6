// Package config handles configuration for the lexisync server: defaults,
// an optional JSON or YAML file, environment variables and command-line
// flags, applied in that order and validated at the end.
package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/validatex"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendKV       = "kv"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config holds runtime settings for the lexisync server.
//
// Fields:
//   - Address: HTTP bind address.
//   - LogLevel: debug, info, warn or error.
//   - StaticDir: when set, unmatched GET requests are served from it.
//   - CORSOrigins: allowed browser origins; "*" allows any.
//   - StoreBackend: file, kv, s3 or postgres; fixed for the process lifetime.
//   - StoreFilePath: JSON file used by the file backend.
//   - KVRestURL / KVRestToken: REST key-value service for the kv backend.
//   - DatabaseDSN: PostgreSQL DSN (pgx) for the postgres backend.
//   - S3*: object storage settings for the s3 backend.
//   - LLM*, DictionaryBaseURL, TranslateBaseURL: upstream APIs.
type Config struct {
	Address         string        `validate:"required"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	StaticDir       string
	CORSOrigins     []string
	ShutdownTimeout time.Duration `validate:"gt=0"`
	// UpstreamHeaderTimeout bounds the wait for upstream response headers.
	// Zero keeps the transport default of no limit; bodies are never cut off.
	UpstreamHeaderTimeout time.Duration `validate:"gte=0"`

	StoreBackend  string `validate:"oneof=file kv s3 postgres"`
	StoreFilePath string `validate:"required_if=StoreBackend file"`
	KVRestURL     string `validate:"required_if=StoreBackend kv"`
	KVRestToken   string
	DatabaseDSN   string `validate:"required_if=StoreBackend postgres"`

	S3Bucket       string `validate:"required_if=StoreBackend s3"`
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string

	LLMBaseURL        string `validate:"required,url"`
	LLMAPIKey         string
	LLMModel          string `validate:"required"`
	DictionaryBaseURL string `validate:"required,url"`
	TranslateBaseURL  string `validate:"required,url"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Address = ":8080"
	c.LogLevel = "info"
	c.CORSOrigins = []string{"*"}
	c.ShutdownTimeout = 10 * time.Second

	c.StoreBackend = BackendFile
	c.StoreFilePath = "lexisync-data.json"

	c.S3Region = "us-east-1"
	c.S3Prefix = "users/"

	c.LLMBaseURL = "https://api.openai.com/v1"
	c.LLMModel = "gpt-4o-mini"
	c.DictionaryBaseURL = "https://api.dictionaryapi.dev/api/v2/entries"
	c.TranslateBaseURL = "https://api.mymemory.translated.net"
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	return validatex.ValidateStruct(c)
}

// LoadConfig builds a Config from defaults, the optional config file, the
// environment and os.Args, and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:], os.Getenv)
}

func loadConfig(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
