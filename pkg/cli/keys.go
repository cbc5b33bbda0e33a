package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/getmockd/mockidp/pkg/cli/internal/output"
	"github.com/getmockd/mockidp/pkg/config"
	"github.com/getmockd/mockidp/pkg/keys"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect the signing key pair",
	Long: `Inspect the signing key pair in --keys-dir.

A key pair is generated when the directory holds none, exactly as serve does.`,
}

var keysIDCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the key ID (kid) of the signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		km, err := openKeys(cmd)
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]string{"kid": km.KeyID()}, func(w io.Writer) {
			_, _ = fmt.Fprintln(w, km.KeyID())
		})
	},
}

var keysJWKSCmd = &cobra.Command{
	Use:   "jwks",
	Short: "Print the public JSON Web Key Set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		km, err := openKeys(cmd)
		if err != nil {
			return err
		}
		return output.JSON(cmd.OutOrStdout(), km.PublicKeySet())
	},
}

var keysPEMCmd = &cobra.Command{
	Use:   "pem",
	Short: "Print the public key in PEM form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		km, err := openKeys(cmd)
		if err != nil {
			return err
		}
		pem := string(km.PublicKeyPEM())
		return printResult(cmd, map[string]string{"kid": km.KeyID(), "pem": pem}, func(w io.Writer) {
			_, _ = io.WriteString(w, pem)
		})
	},
}

func init() {
	keysCmd.AddCommand(keysIDCmd, keysJWKSCmd, keysPEMCmd)
	rootCmd.AddCommand(keysCmd)
}

func openKeys(cmd *cobra.Command) (*keys.Manager, error) {
	cfg, logger, closeLog, err := commandSetup(cmd)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	return keys.Open(cmd.Context(), keys.Config{Dir: cfg.KeysDir, Logger: logger})
}

// commandSetup resolves config and a logger for the management commands.
// Their logs stay at warn and above unless a level was configured.
func commandSetup(cmd *cobra.Command) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Sources["logLevel"] == config.SourceDefault {
		cfg.LogLevel = "warn"
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}
