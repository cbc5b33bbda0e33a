package cli

import (
	"fmt"
	"io"

	"github.com/getmockd/mockidp/pkg/cli/internal/output"
	"github.com/getmockd/mockidp/pkg/config"
	"github.com/spf13/cobra"
)

// ConfigEntry is one resolved setting.
type ConfigEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

var configYAML bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Show the effective configuration and where each value came from
(default, file, env or flag). Accepts the same flags as serve.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if configYAML {
			data, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}

		entries := configEntries(cfg)
		return printResult(cmd, entries, func(w io.Writer) {
			tw := output.Table(w)
			_, _ = fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, e.Value, e.Source)
			}
			_ = tw.Flush()
		})
	},
}

func configEntries(cfg *config.Config) []ConfigEntry {
	keys := config.Keys()
	entries := make([]ConfigEntry, 0, len(keys))
	for _, key := range keys {
		value, _ := cfg.Get(key)
		source := cfg.Sources[key]
		if source == "" {
			source = config.SourceDefault
		}
		entries = append(entries, ConfigEntry{Key: key, Value: value, Source: source})
	}
	return entries
}

func init() {
	addServerFlags(configCmd.Flags())
	configCmd.Flags().BoolVar(&configYAML, "yaml", false, "Print the resolved configuration as a YAML config file")
	rootCmd.AddCommand(configCmd)
}
