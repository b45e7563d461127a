package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/missing"
)

const sampleYAML = `
study:
  name: demo
  seed: 42
  replications: 2
  rates: [0.1, 0.3]
  methods: [mean, hotdeck]
  data:
    name: demo-data
    rows: 100
    columns:
      - name: x
        dist: normal
        mu: 0
        sigma: 1
    response:
      name: y
      intercept: 2
      coeffs:
        x: 3
      noise_sigma: 0.5
  mechanisms:
    - mechanism: mcar
      target: y
  impute:
    within: grp
    max_iter: 50
redis:
  addr: localhost:6379
  db: 2
history:
  path: runs.db
artifacts:
  dir: artifacts
metrics:
  addr: ":9090"
log:
  level: debug
output:
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "missingdata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "study", cfg.Study.Name)
	assert.Equal(t, 1, cfg.Study.Replications)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.History.Path)
	assert.Empty(t, cfg.Artifacts.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "table", cfg.Output.Format)
}

func TestLoadYAMLFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Study.Name)
	assert.Equal(t, int64(42), cfg.Study.Seed)
	assert.Equal(t, 2, cfg.Study.Replications)
	assert.Equal(t, []float64{0.1, 0.3}, cfg.Study.Rates)
	assert.Equal(t, []string{"mean", "hotdeck"}, cfg.Study.Methods)

	require.Len(t, cfg.Study.Data.Columns, 1)
	assert.Equal(t, "x", cfg.Study.Data.Columns[0].Name)
	require.NotNil(t, cfg.Study.Data.Response)
	assert.Equal(t, 3.0, cfg.Study.Data.Response.Coeffs["x"])
	assert.Equal(t, 0.5, cfg.Study.Data.Response.NoiseSigma)

	require.Len(t, cfg.Study.Mechanisms, 1)
	assert.Equal(t, missing.MCAR, cfg.Study.Mechanisms[0].Mechanism)
	assert.Equal(t, "y", cfg.Study.Mechanisms[0].Target)

	assert.Equal(t, "grp", cfg.Study.Impute.Within)
	assert.Equal(t, 50, cfg.Study.Impute.MaxIter)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "runs.db", cfg.History.Path)
	assert.Equal(t, "artifacts", cfg.Artifacts.Dir)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Output.Format)

	// The loaded design passes its own validation.
	assert.NoError(t, cfg.Study.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "failed to read")
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MISSINGDATA_LOG_LEVEL", "warn")
	t.Setenv("MISSINGDATA_REDIS_ADDR", "redis:6379")

	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	// Untouched keys keep the file values.
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("MISSINGDATA_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int64("seed", 0, "")
	flags.Int("redis-db", 7, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Set("log-level", "error"))
	require.NoError(t, flags.Set("seed", "99"))
	require.NoError(t, flags.Set("unrelated", "x"))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, int64(99), cfg.Study.Seed)
	// A defined but unset flag must not override anything.
	assert.Zero(t, cfg.Redis.DB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad output format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: `unknown output format "xml"`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: `unknown log level "loud"`,
		},
		{
			name:    "negative redis db",
			mutate:  func(c *Config) { c.Redis.DB = -1 },
			wantErr: "redis db must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
