// Package config loads study configuration from defaults, a YAML file,
// MISSINGDATA_ environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/study"
)

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "MISSINGDATA_"

// RedisConfig connects the optional result store. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// HistoryConfig locates the sqlite run log. An empty Path disables it.
type HistoryConfig struct {
	Path string `json:"path"`
}

// ArtifactsConfig locates the artifact directory. An empty Dir disables it.
type ArtifactsConfig struct {
	Dir string `json:"dir"`
}

// MetricsConfig sets the prometheus listen address. Empty disables serving.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// LogConfig sets the zap log level.
type LogConfig struct {
	Level string `json:"level"`
}

// OutputConfig selects how results are rendered.
type OutputConfig struct {
	Format string `json:"format"` // table, json or csv
}

// Config is the full toolkit configuration. The study section uses the same
// keys as the JSON form of study.Design, so a stored design can be fed back
// in as a config file.
type Config struct {
	Study     study.Design    `json:"study"`
	Redis     RedisConfig     `json:"redis"`
	History   HistoryConfig   `json:"history"`
	Artifacts ArtifactsConfig `json:"artifacts"`
	Metrics   MetricsConfig   `json:"metrics"`
	Log       LogConfig       `json:"log"`
	Output    OutputConfig    `json:"output"`
}

// flagKeys maps the flags that override config keys. Flags not listed here
// never reach the config.
var flagKeys = map[string]string{
	"name":         "study.name",
	"seed":         "study.seed",
	"parallelism":  "study.parallelism",
	"redis-addr":   "redis.addr",
	"redis-db":     "redis.db",
	"history":      "history.path",
	"artifacts":    "artifacts.dir",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
	"output":       "output.format",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"study.name":         "study",
		"study.replications": 1,
		"redis.addr":         "",
		"redis.db":           0,
		"history.path":       "",
		"artifacts.dir":      "",
		"metrics.addr":       "",
		"log.level":          "info",
		"output.format":      "table",
	}
}

// Default returns the configuration with only the defaults applied.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		// The defaults map is static; loading it cannot fail.
		panic(err)
	}
	return cfg
}

// Load reads the configuration. Precedence, lowest to highest: defaults,
// YAML file, MISSINGDATA_ environment variables, flags. When path is empty
// missingdata.yaml / missingdata.yml in the working directory are tried; an
// explicit path that does not exist is an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("config: failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the toolkit interprets itself. The study design
// is validated separately when a run starts.
func (c *Config) Validate() error {
	switch c.Output.Format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("config: unknown output format %q (want table, json or csv)", c.Output.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q (want debug, info, warn or error)", c.Log.Level)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis db must not be negative, got %d", c.Redis.DB)
	}
	return nil
}

func findConfigFile() string {
	for _, name := range []string{"missingdata.yaml", "missingdata.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
