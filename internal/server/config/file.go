package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/flagx"
	"github.com/dmitrijs2005/lexisync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Interval fields use
// timex.Duration so both "30s" and integer nanoseconds are accepted. Empty
// values leave the current setting untouched.
type FileConfig struct {
	Address         string         `json:"address" yaml:"address"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
	StaticDir       string         `json:"static_dir" yaml:"static_dir"`
	CORSOrigins     []string       `json:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	UpstreamHeaderTimeout timex.Duration `json:"upstream_header_timeout" yaml:"upstream_header_timeout"`

	Store struct {
		Backend     string `json:"backend" yaml:"backend"`
		FilePath    string `json:"file_path" yaml:"file_path"`
		KVRestURL   string `json:"kv_rest_url" yaml:"kv_rest_url"`
		KVRestToken string `json:"kv_rest_token" yaml:"kv_rest_token"`
		DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`
		S3          struct {
			Bucket       string `json:"bucket" yaml:"bucket"`
			Region       string `json:"region" yaml:"region"`
			BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
			AccessKey    string `json:"access_key" yaml:"access_key"`
			SecretKey    string `json:"secret_key" yaml:"secret_key"`
			Prefix       string `json:"prefix" yaml:"prefix"`
		} `json:"s3" yaml:"s3"`
	} `json:"store" yaml:"store"`

	Upstream struct {
		LLMBaseURL        string `json:"llm_base_url" yaml:"llm_base_url"`
		LLMAPIKey         string `json:"llm_api_key" yaml:"llm_api_key"`
		LLMModel          string `json:"llm_model" yaml:"llm_model"`
		DictionaryBaseURL string `json:"dictionary_base_url" yaml:"dictionary_base_url"`
		TranslateBaseURL  string `json:"translate_base_url" yaml:"translate_base_url"`
	} `json:"upstream" yaml:"upstream"`
}

// parseFile overlays values from the file named by -c / -config, if any.
// The format is picked by extension: .yaml and .yml are YAML, anything else
// is JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(config *Config) {
	setString(&config.Address, fc.Address)
	setString(&config.LogLevel, fc.LogLevel)
	setString(&config.StaticDir, fc.StaticDir)
	if len(fc.CORSOrigins) > 0 {
		config.CORSOrigins = fc.CORSOrigins
	}
	if fc.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	if fc.UpstreamHeaderTimeout.Duration > 0 {
		config.UpstreamHeaderTimeout = fc.UpstreamHeaderTimeout.Duration
	}

	setString(&config.StoreBackend, fc.Store.Backend)
	setString(&config.StoreFilePath, fc.Store.FilePath)
	setString(&config.KVRestURL, fc.Store.KVRestURL)
	setString(&config.KVRestToken, fc.Store.KVRestToken)
	setString(&config.DatabaseDSN, fc.Store.DatabaseDSN)
	setString(&config.S3Bucket, fc.Store.S3.Bucket)
	setString(&config.S3Region, fc.Store.S3.Region)
	setString(&config.S3BaseEndpoint, fc.Store.S3.BaseEndpoint)
	setString(&config.S3AccessKey, fc.Store.S3.AccessKey)
	setString(&config.S3SecretKey, fc.Store.S3.SecretKey)
	setString(&config.S3Prefix, fc.Store.S3.Prefix)

	setString(&config.LLMBaseURL, fc.Upstream.LLMBaseURL)
	setString(&config.LLMAPIKey, fc.Upstream.LLMAPIKey)
	setString(&config.LLMModel, fc.Upstream.LLMModel)
	setString(&config.DictionaryBaseURL, fc.Upstream.DictionaryBaseURL)
	setString(&config.TranslateBaseURL, fc.Upstream.TranslateBaseURL)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
