package conf

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/orcalabs/orcad/internals/version"

	z "github.com/Oudwins/zog"
)

type Config struct {
	Version  string         `json:"-"`
	Server   ServerConfig   `json:"server"`
	Agent    AgentConfig    `json:"agent"`
	Sessions SessionsConfig `json:"sessions"`
}

type ServerConfig struct {
	DataDir string `json:"data_dir"`
}

type AgentConfig struct {
	DefaultModel string `json:"default_model"`
	MaxTokens    int    `json:"max_tokens"`
	// SampleFiles caps how many top-level repository files are quoted in
	// the generation prompt; SampleBytes caps each file's quoted size.
	SampleFiles int `json:"sample_files"`
	SampleBytes int `json:"sample_bytes"`
}

type SessionsConfig struct {
	// Backend selects the session store implementation: "memory" or "sqlite".
	Backend string `json:"backend"`
	// TTL is how long terminal sessions stay readable before eviction.
	// Parsed with time.ParseDuration. Empty disables eviction.
	TTL string `json:"ttl"`
}

var serverSchema = z.Struct(z.Shape{
	"DataDir": z.String().Default("~/.orcad").Transform(expandPathTransform),
})

var agentSchema = z.Struct(z.Shape{
	"DefaultModel": z.String().Default("claude-3-5-sonnet-20241022"),
	"MaxTokens":    z.Int().Default(4096),
	"SampleFiles":  z.Int().Default(10),
	"SampleBytes":  z.Int().Default(4096),
})

var sessionsSchema = z.Struct(z.Shape{
	"Backend": z.String().Default("memory").OneOf([]string{"memory", "sqlite"}),
	"TTL":     z.String().Default("24h"),
})

var ConfigSchema = z.Struct(z.Shape{
	"server":   serverSchema,
	"agent":    agentSchema,
	"sessions": sessionsSchema,
})

var config *Config

func GetConfig() *Config {
	if config == nil {
		defaults := &Config{}
		if err := ConfigSchema.Parse(map[string]any{}, defaults); err != nil {
			log.Fatal("[Orcad] Failed to parse config", err)
		}
		defaults.Version = version.Version()

		dataDir, err := ExpandPath(defaults.Server.DataDir)
		if err != nil {
			log.Fatal("[Orcad] Failed to expand config data dir", err)
		}

		configPath := filepath.Join(filepath.Clean(dataDir), "orcad.json")
		data, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				config = defaults
				return config
			}
			log.Fatal("[Orcad] Failed to read config file", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			config = defaults
			return config
		}

		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Fatal("[Orcad] Failed to parse config file", err)
		}
		parsed := &Config{}
		if err := ConfigSchema.Parse(payload, parsed); err != nil {
			log.Fatal("[Orcad] Failed to parse config", err)
		}
		parsed.Version = defaults.Version
		config = parsed
	}

	return config
}

// SessionTTL returns the parsed eviction TTL, or zero when disabled.
func (c *Config) SessionTTL() time.Duration {
	value := strings.TrimSpace(c.Sessions.TTL)
	if value == "" {
		return 0
	}
	ttl, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return ttl
}

func expandPathTransform(ptr *string, c z.Ctx) error {
	expanded, err := ExpandPath(*ptr)
	*ptr = expanded
	return err
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
