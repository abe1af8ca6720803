package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"sqlerd/internal/dialect"
	"sqlerd/internal/generator"
	"sqlerd/internal/schema"
)

var (
	importDriver string
	importDSN    string
	sourceSchema string
	targetSchema string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Read the schema of a live database and render it as SQL Server DDL",
	Long: `Connects to the active database profile (or --driver/--dsn), reads its
catalog and renders the tables, keys, indexes and foreign keys as a SQL Server
script. Nothing is written to the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := importConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "🦅 Connecting to %s (%s)\n", config.Name, config.Driver)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		d := dialect.GetDialect(config.Driver)
		log.Printf("Using Dialect: %s\n", config.Driver)

		name := databaseName
		if name == "" {
			if name, err = d.DatabaseName(config.DSN); err != nil {
				return err
			}
		}
		if name == "" {
			name = config.Name
		}

		start := time.Now()
		uiprogress.Start()
		stages := []string{"Connecting", "Analyzing", "Rendering", "Done"}
		bar := uiprogress.AddBar(len(stages) - 1).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("%-12s", stages[b.Current()]+":")
		})

		db, err := sql.Open(config.Driver, config.DSN)
		if err != nil {
			uiprogress.Stop()
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			uiprogress.Stop()
			return fmt.Errorf("failed to connect to db: %w", err)
		}
		bar.Incr()

		model, err := schema.Analyze(ctx, db, d, config.Schema, targetSchema, name)
		if err != nil {
			uiprogress.Stop()
			return err
		}
		bar.Incr()

		script := generator.GenerateBytes(model, generatorOptions())
		bar.Incr()
		uiprogress.Stop()

		tables := 0
		for _, s := range model.Schemas {
			tables += len(s.Tables)
		}
		log.Printf("Import Done! %d tables in %s", tables, time.Since(start))
		for _, p := range model.Check() {
			log.Printf("[Import] ! %s", p)
		}

		return writeOutput(script)
	},
}

func init() {
	RootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDriver, "driver", "", "Database driver (sqlserver, postgres, mysql, oracle, sqlite3)")
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "Database Source Name (DSN), overrides the active profile")
	importCmd.Flags().StringVar(&sourceSchema, "schema", "", "Schema to read (default: profile schema or the driver default)")
	importCmd.Flags().StringVar(&targetSchema, "target-schema", schema.DefaultSchema, "Schema the imported tables are placed in")
	importCmd.Flags().StringVar(&databaseName, "name", "", "Database name (default: taken from the DSN)")
}

// importConfig picks the connection: --dsn/--driver flags first, then the
// active profile of the config file.
func importConfig() (*DBConfig, error) {
	var config DBConfig
	if importDSN != "" {
		if importDriver == "" {
			return nil, fmt.Errorf("--driver is required with --dsn")
		}
		config = DBConfig{Name: "CLI", Driver: importDriver, DSN: importDSN, Active: true}
	} else {
		active, err := GetActiveDBConfig()
		if err != nil {
			return nil, err
		}
		config = *active
	}
	if sourceSchema != "" {
		config.Schema = sourceSchema
	}
	return &config, nil
}
