package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

var sections = map[string]bool{
	"reddit":  true,
	"server":  true,
	"storage": true,
	"email":   true,
	"poll":    true,
	"log":     true,
}

// Deployment environment names that predate the section layout.
var envAliases = map[string]string{
	"PORT":                    "server.port",
	"BASE_URL":                "server.base_url",
	"STORAGE_BUCKET":          "storage.bucket",
	"LOCAL_STORAGE":           "storage.local_path",
	"GOOGLE_CREDENTIALS_JSON": "email.google_credentials_json",
	"BREVO_API_KEY":           "email.brevo_api_key",
}

// Load loads configuration from an optional YAML file, then overrides it
// with environment variables.
//
// Environment variables map to keys by splitting on the first underscore:
//
//	REDDIT_CLIENT_ID -> reddit.client_id
//	POLL_MAX_SCAN    -> poll.max_scan
//
// Variables outside the known sections are ignored.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps an environment variable to a config key, or "" to skip it.
func envKey(s string) string {
	if key, ok := envAliases[s]; ok {
		return key
	}
	section, field, ok := strings.Cut(strings.ToLower(s), "_")
	if !ok || field == "" || !sections[section] {
		return ""
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	// Credentials live in this file.
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("config file %s must not be accessible by group or others (mode %o)", path, info.Mode().Perm())
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}
