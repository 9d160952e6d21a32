package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxbridge/voxbridge/adapters/sqlite"
	"github.com/voxbridge/voxbridge/config"
)

var validateCheckDatabase bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the voxbridge configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Quota ceilings are consistent across windows
  - Database is writable (optional)

Examples:
  voxbridge validate
  voxbridge validate --config /etc/voxbridge/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	fmt.Printf("  %s Store: %s\n", checkMark, cfg.Store.Driver)
	fmt.Printf("  %s Metered endpoints: %d\n", checkMark, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		fmt.Printf("      %-12s %d/min %d/hour %d/day\n", ep.Name, ep.PerMinute, ep.PerHour, ep.PerDay)
	}
	fmt.Printf("  %s Provider endpoints: %d\n", checkMark, len(cfg.Upstream.Endpoints))

	if validateCheckDatabase && cfg.Store.Driver != "memory" {
		if err := checkDatabaseWritable(cfg.Store.DSN); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Ping()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
