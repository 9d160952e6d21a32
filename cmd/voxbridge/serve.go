package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxbridge/voxbridge/bootstrap"
	"github.com/voxbridge/voxbridge/config"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the voxbridge gateway.

The server will:
  - Load configuration from voxbridge.yaml (or --config)
  - Or load configuration from VOXBRIDGE_* environment variables
  - Open the configured counter/usage store
  - Forward metered requests to their providers with quota enforcement

Environment variables (for container deployments):
  VOXBRIDGE_JWT_SECRET    - Bearer token secret (required)
  VOXBRIDGE_STORE_DRIVER  - Store driver: memory, sqlite or redis
  VOXBRIDGE_STORE_DSN     - SQLite database path
  VOXBRIDGE_REDIS_ADDR    - Redis address for the redis driver
  VOXBRIDGE_SERVER_PORT   - Server port (default: 8080)
  VOXBRIDGE_LOG_LEVEL     - Log level: debug, info, warn, error

Examples:
  voxbridge serve
  voxbridge serve --config /etc/voxbridge/config.yaml
  voxbridge serve --hot-reload=false

  # Container (env vars only):
  VOXBRIDGE_JWT_SECRET=change-me voxbridge serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && os.Getenv("VOXBRIDGE_JWT_SECRET") == "" {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set VOXBRIDGE_JWT_SECRET and friends in the environment")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  VOXBRIDGE_JWT_SECRET=change-me voxbridge serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
