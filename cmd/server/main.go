// Command server runs the tapcanvas generation task server.
//
// Subcommands:
//
//	serve    - run the HTTP API (tasks, progress stream, MCP, metrics)
//	migrate  - apply the embedded PostgreSQL migrations and exit
//	version  - print the build version
//
// Configuration is read from --config, TAPCANVAS_CONFIG, ./config.yaml or
// /etc/tapcanvas/config.yaml, with TAPCANVAS_* environment overrides.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tapcanvas",
	Short: "Generation task server for chat, image and video vendors",
	Long: `tapcanvas dispatches generation tasks to AI vendors with per-user
credentials, reports progress over server-sent events and rehosts the
resulting media into owned storage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
