package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// newLogger builds the production logger at the configured level. Logs go to
// stderr so tables and CSV on stdout stay clean.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("cli: invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// readTable loads a CSV file as a table named after the file.
func readTable(path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cli: failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := dataset.ReadCSV(f, dataset.CSVOptions{Name: name})
	if err != nil {
		return nil, fmt.Errorf("cli: failed to read %s: %w", path, err)
	}
	return t, nil
}

// writeTable writes the table as CSV to path, or to stdout when path is
// empty or "-".
func writeTable(cmd *cobra.Command, path string, t *dataset.Table) error {
	if path == "" || path == "-" {
		return dataset.WriteCSV(cmd.OutOrStdout(), t)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cli: failed to create %s: %w", path, err)
	}
	if err := dataset.WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("cli: failed to write %s: %w", path, err)
	}
	return f.Close()
}

// decodeYAMLFile decodes a YAML file into v using the same json-tag keys as
// the config loader.
func decodeYAMLFile(path string, v any) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("cli: failed to read %s: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", v, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return fmt.Errorf("cli: failed to decode %s: %w", path, err)
	}
	return nil
}
