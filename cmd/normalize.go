package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"sqlerd/internal/generator"
	"sqlerd/internal/parser"
)

var outDir string

type normalizeResult struct {
	Path   string
	Target string
	Tables int
	Skips  []parser.Skip
	Err    error
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file.sql>...",
	Short: "Re-render many DDL scripts in canonical form",
	Long: `Parses every file and writes it back in the generator's canonical layout,
in place or into --out-dir. Statements the parser cannot model are reported
and dropped from the output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outDir != "" {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", outDir, err)
			}
		}

		opts := generatorOptions()
		start := time.Now()

		uiprogress.Start()
		bar := uiprogress.AddBar(len(args)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Normalizing: "
		})

		results := make([]normalizeResult, 0, len(args))
		for _, path := range args {
			results = append(results, normalizeFile(path, opts))
			bar.Incr()
		}

		uiprogress.Stop()

		fmt.Println("\n📊 Summary Report:")
		failed := 0
		for i, r := range results {
			icon := "✓"
			if r.Err != nil {
				icon = "!"
				failed++
			} else if len(r.Skips) > 0 {
				icon = "~"
			}
			fmt.Printf("[%s] [%02d/%02d] %-30s : %d tables, %d skipped\n",
				icon, i+1, len(results), r.Path, r.Tables, len(r.Skips))
			if r.Err != nil {
				fmt.Printf("    └ Error: %s\n", r.Err)
			}
			for _, s := range r.Skips {
				fmt.Printf("    └ line %d: %s\n", s.Line, s.Reason)
			}
		}
		log.Printf("Normalize Done! Time Elapsed: %s", time.Since(start))

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(normalizeCmd)

	normalizeCmd.Flags().StringVar(&outDir, "out-dir", "", "Write results into this directory instead of in place")
}

func normalizeFile(path string, opts generator.Options) normalizeResult {
	r := normalizeResult{Path: path, Target: path}
	if outDir != "" {
		r.Target = filepath.Join(outDir, filepath.Base(path))
	}

	ddl, err := os.ReadFile(path)
	if err != nil {
		r.Err = err
		return r
	}
	res := parser.Parse(string(ddl), "", parseOptions()...)
	r.Skips = res.Skips
	for _, s := range res.Database.Schemas {
		r.Tables += len(s.Tables)
	}

	if err := os.WriteFile(r.Target, generator.GenerateBytes(res.Database, opts), 0o644); err != nil {
		r.Err = err
	}
	return r
}
