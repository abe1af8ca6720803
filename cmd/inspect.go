package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sqlerd/internal/generator"
	"sqlerd/internal/schema"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.sql>",
	Short: "Show the parsed model, skipped statements and consistency problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parseFile(args[0])
		if err != nil {
			return err
		}
		db := res.Database

		fmt.Printf("🔍 Database %s\n", db.Name)
		for _, s := range db.Schemas {
			fmt.Printf("\n[%s] %d tables (creation order)\n", s.Name, len(s.Tables))
			for i, t := range schema.SortTablesByFKCount(s.Tables) {
				fmt.Printf("[%02d] %s\n", i+1, t.Name)
				for _, c := range t.Columns {
					fmt.Printf("    %-24s %-20s %s\n", c.Name, describeType(c), describeFlags(t, c))
				}
			}
		}

		if len(res.Skips) > 0 {
			fmt.Printf("\n⚠ Skipped statements (%d):\n", len(res.Skips))
			for _, s := range res.Skips {
				fmt.Printf("  line %d: %s\n    └ %s\n", s.Line, s.Text, s.Reason)
			}
		}

		problems := db.Check()
		if len(problems) > 0 {
			fmt.Printf("\n! Consistency problems (%d):\n", len(problems))
			for _, p := range problems {
				fmt.Printf("  %s\n", p)
			}
			return fmt.Errorf("%d consistency problems", len(problems))
		}
		fmt.Println("\n✓ Model is consistent")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(inspectCmd)
}

func describeType(c *schema.Column) string {
	typ := generator.TypeName(c)
	if c.Nullable {
		typ += " NULL"
	}
	return typ
}

func describeFlags(t *schema.Table, c *schema.Column) string {
	var flags []string
	f := t.Flags(c)
	if f.PrimaryKey {
		flags = append(flags, "PK")
	}
	if f.Unique {
		flags = append(flags, "UQ")
	}
	if f.ForeignKey {
		flags = append(flags, fmt.Sprintf("FK -> %s.%s.%s", c.ForeignKey.Schema, c.ForeignKey.Table, c.ForeignKey.Column))
	}
	if c.Identity != nil {
		flags = append(flags, fmt.Sprintf("IDENTITY(%d,%d)", c.Identity.Seed, c.Identity.Increment))
	}
	return strings.Join(flags, ", ")
}
