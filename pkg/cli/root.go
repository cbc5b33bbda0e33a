package cli

import (
	"os"

	"github.com/getmockd/mockidp/pkg/config"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "mockidp",
	Short: "mockidp is a local Microsoft Entra ID compatible identity provider",
	Long: `mockidp emulates the OAuth 2.0 and OpenID Connect endpoints of Microsoft Entra ID
for local development and integration tests. It issues RS256 signed tokens for
a file backed directory of users and applications.

Configuration can be provided via flags, environment variables, or a YAML file
passed with --config (or MOCKIDP_CONFIG).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree with args. When args name no subcommand
// (no args at all, or only serve flags) serve runs.
func Execute(args []string) error {
	if defaultsToServe(args) {
		args = append([]string{"serve"}, args...)
	}
	rootCmd.Version = Version
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func defaultsToServe(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "--version", "help", "completion":
			return false
		}
	}
	cmd, _, err := rootCmd.Find(args)
	return err == nil && cmd == rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv(config.EnvConfig), "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding users.json and applications.json")
	rootCmd.PersistentFlags().String("keys-dir", "", "Directory holding the signing key pair")

	rootCmd.SetVersionTemplate("mockidp {{.Version}}\n")
}
