package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var RootCmd = &cobra.Command{
	Use:   "sqlerd",
	Short: "A SQL Server schema modeling tool",
	Long: `
  ____   ___  _     _____ ____  ____
 / ___| / _ \| |   | ____|  _ \|  _ \
 \___ \| | | | |   |  _| | |_) | | | |
  ___) | |_| | |___| |___|  _ <| |_| |
 |____/ \__\_\_____|_____|_| \_\____/

SQLERD - SQL Server DDL parser, generator & schema editor
`,
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sqlerd.yaml)")
	RootCmd.PersistentFlags().Bool("idempotent", false, "Guard every generated statement with an existence check")
	RootCmd.PersistentFlags().StringP("output", "o", "", "Write the generated script to this file instead of stdout")
	RootCmd.PersistentFlags().String("default-schema", "dbo", "Schema for unqualified table names")

	// Flag > Config > Default
	viper.BindPFlag("output.idempotent", RootCmd.PersistentFlags().Lookup("idempotent"))
	viper.BindPFlag("output.path", RootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("parse.default_schema", RootCmd.PersistentFlags().Lookup("default-schema"))

	viper.SetDefault("output.idempotent", false)
	viper.SetDefault("output.path", "")
	viper.SetDefault("parse.default_schema", "dbo")
	viper.SetDefault("parse.promote_referenced", true)
	viper.SetDefault("edit.rename_referencing_columns", true)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			exePath := filepath.Dir(ex)
			viper.AddConfigPath(exePath)
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("sqlerd")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
