package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sqlerd/internal/engine"
	"sqlerd/internal/script"
)

var applyCmd = &cobra.Command{
	Use:   "apply <file.sql> <script.yaml>",
	Short: "Apply an edit script to a DDL script and render the result",
	Long: `Loads the DDL script, runs every step of the edit script (YAML or JSON,
under a top-level "commands" key) through the consistency engine and renders
the resulting model. The run stops at the first rejected step.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parseFile(args[0])
		if err != nil {
			return err
		}
		reportSkips(args[0], res.Skips)

		steps, err := script.Load(args[1])
		if err != nil {
			return err
		}

		session := engine.NewSession(res.Database.Name, applyOptions(), parseOptions()...)
		session.Replace(res.Database)

		applied, err := script.Run(session, steps)
		log.Printf("[Apply] %d/%d steps applied", applied, len(steps))
		if err != nil {
			return fmt.Errorf("edit script rejected: %w", err)
		}

		db, _ := session.Database()
		if problems := db.Check(); len(problems) > 0 {
			for _, p := range problems {
				log.Printf("[Apply] ! %s", p)
			}
		}
		return writeOutput([]byte(session.Render(generatorOptions())))
	},
}

func init() {
	RootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&databaseName, "name", "", "Database name (default: USE statement of the script)")
	applyCmd.Flags().Bool("rename-referencing", true, "Rename foreign key columns along with the primary key column they reference")

	viper.BindPFlag("edit.rename_referencing_columns", applyCmd.Flags().Lookup("rename-referencing"))
}
