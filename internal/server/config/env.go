package config

import (
	"fmt"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables.
//
// Besides the LEXISYNC_* names, PORT sets the listen port and the
// KV_REST_API_URL / KV_REST_API_TOKEN pair used by hosted key-value services
// is honoured. When a KV URL is present and no backend was chosen explicitly,
// the kv backend is selected.
func parseEnv(config *Config, getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		config.Address = ":" + port
	}

	strs := map[string]*string{
		"LEXISYNC_ADDRESS":             &config.Address,
		"LEXISYNC_LOG_LEVEL":           &config.LogLevel,
		"LEXISYNC_STATIC_DIR":          &config.StaticDir,
		"LEXISYNC_STORE_FILE":          &config.StoreFilePath,
		"KV_REST_API_URL":              &config.KVRestURL,
		"KV_REST_API_TOKEN":            &config.KVRestToken,
		"LEXISYNC_KV_REST_URL":         &config.KVRestURL,
		"LEXISYNC_KV_REST_TOKEN":       &config.KVRestToken,
		"LEXISYNC_DATABASE_DSN":        &config.DatabaseDSN,
		"LEXISYNC_S3_BUCKET":           &config.S3Bucket,
		"LEXISYNC_S3_REGION":           &config.S3Region,
		"LEXISYNC_S3_BASE_ENDPOINT":    &config.S3BaseEndpoint,
		"LEXISYNC_S3_ACCESS_KEY":       &config.S3AccessKey,
		"LEXISYNC_S3_SECRET_KEY":       &config.S3SecretKey,
		"LEXISYNC_S3_PREFIX":           &config.S3Prefix,
		"LEXISYNC_LLM_BASE_URL":        &config.LLMBaseURL,
		"LEXISYNC_LLM_API_KEY":         &config.LLMAPIKey,
		"LEXISYNC_LLM_MODEL":           &config.LLMModel,
		"LEXISYNC_DICTIONARY_BASE_URL": &config.DictionaryBaseURL,
		"LEXISYNC_TRANSLATE_BASE_URL":  &config.TranslateBaseURL,
	}
	// LEXISYNC_* names are applied after the generic ones so they win.
	for _, name := range []string{"KV_REST_API_URL", "KV_REST_API_TOKEN"} {
		setString(strs[name], getenv(name))
		delete(strs, name)
	}
	for name, dst := range strs {
		setString(dst, getenv(name))
	}

	if backend := getenv("LEXISYNC_STORE_BACKEND"); backend != "" {
		config.StoreBackend = backend
	} else if getenv("KV_REST_API_URL") != "" || getenv("LEXISYNC_KV_REST_URL") != "" {
		config.StoreBackend = BackendKV
	}

	if origins := getenv("LEXISYNC_CORS_ORIGINS"); origins != "" {
		config.CORSOrigins = splitList(origins)
	}

	durations := map[string]*time.Duration{
		"LEXISYNC_SHUTDOWN_TIMEOUT": &config.ShutdownTimeout,
		"LEXISYNC_UPSTREAM_HEADER_TIMEOUT": &config.UpstreamHeaderTimeout,
	}
	for name, dst := range durations {
		v := getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
