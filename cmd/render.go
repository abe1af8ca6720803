package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"sqlerd/internal/generator"
	"sqlerd/internal/parser"
)

var databaseName string

var renderCmd = &cobra.Command{
	Use:   "render <file.sql>",
	Short: "Parse a DDL script and render it again in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parseFile(args[0])
		if err != nil {
			return err
		}
		reportSkips(args[0], res.Skips)

		return writeOutput(generator.GenerateBytes(res.Database, generatorOptions()))
	},
}

func init() {
	RootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&databaseName, "name", "", "Database name (default: USE statement of the script)")
}

// parseFile reads a script from path, or stdin for "-".
func parseFile(path string) (*parser.Result, error) {
	var (
		ddl []byte
		err error
	)
	if path == "-" {
		ddl, err = io.ReadAll(os.Stdin)
	} else {
		ddl, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parser.Parse(string(ddl), databaseName, parseOptions()...), nil
}

func reportSkips(path string, skips []parser.Skip) {
	for _, s := range skips {
		log.Printf("[Parse] %s:%d skipped %s (%s)", path, s.Line, s.Text, s.Reason)
	}
}
