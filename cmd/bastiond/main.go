// Command bastiond is the operator-facing entrypoint for the job-credential
// and namespace-isolation subsystems: a credential subcommand group for
// issuing/verifying/inspecting credentials without a live scheduler, a
// namespace subcommand group that exercises the namespace engine directly,
// and a hidden __nsinit subcommand that is the re-exec target the namespace
// engine forks into.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bastionrun/bastion/pkg/config"
	"github.com/bastionrun/bastion/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bastiond",
	Short: "bastiond - job-credential signing and per-job namespace isolation",
	Long: `bastiond issues, verifies, and inspects signed job-launch credentials,
and creates, joins, and tears down the private mount namespace a batch job
uses for /tmp and /dev/shm on a shared compute node.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"bastiond version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to bastiond YAML config (defaults built in if unset)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(credentialCmd)
	rootCmd.AddCommand(namespaceCmd)
	rootCmd.AddCommand(nsinitCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig reads --config if set, otherwise returns the built-in
// defaults. Shared by every leaf command that needs cred_expire,
// cred_type, or namespace settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
