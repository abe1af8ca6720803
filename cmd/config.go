package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"sqlerd/internal/engine"
	"sqlerd/internal/generator"
	"sqlerd/internal/parser"
)

// DBConfig is one entry of the databases list used by import.
type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
	Active bool   `mapstructure:"active"`
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}

	return activeConfig, nil
}

func parseOptions() []parser.Option {
	return []parser.Option{
		parser.WithDefaultSchema(viper.GetString("parse.default_schema")),
		parser.WithReferencePromotion(viper.GetBool("parse.promote_referenced")),
	}
}

func applyOptions() []engine.Option {
	return []engine.Option{
		engine.WithReferencingRenames(viper.GetBool("edit.rename_referencing_columns")),
	}
}

func generatorOptions() generator.Options {
	return generator.Options{
		Idempotent: viper.GetBool("output.idempotent"),
		Now:        time.Now,
	}
}

// writeOutput writes the script to output.path, or to stdout when unset.
func writeOutput(script []byte) error {
	path := viper.GetString("output.path")
	if path == "" {
		_, err := os.Stdout.Write(script)
		return err
	}
	if err := os.WriteFile(path, script, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "📄 Script written to %s\n", path)
	return nil
}
