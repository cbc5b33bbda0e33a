package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/getmockd/mockidp/pkg/cli/internal/output"
	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/spf13/cobra"
)

var addApp directory.Application

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage registered client applications",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered applications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		apps, err := openApps(cmd)
		if err != nil {
			return err
		}
		list := apps.List()
		return printResult(cmd, list, func(w io.Writer) {
			tw := output.Table(w)
			_, _ = fmt.Fprintln(tw, "APP ID\tDISPLAY NAME\tCONFIDENTIAL\tREDIRECT URIS")
			for _, app := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n",
					app.AppID, app.DisplayName, app.ClientSecret != "", strings.Join(app.RedirectURIs, ","))
			}
			_ = tw.Flush()
		})
	},
}

var appsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a client application",
	Long: `Register a client application.

Applications without --secret are public clients. When --name is missing an
interactive form asks for the registration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("name") {
			var redirect string
			if err := appForm(&addApp, &redirect).Run(); err != nil {
				return err
			}
			if redirect != "" {
				addApp.RedirectURIs = append(addApp.RedirectURIs, redirect)
			}
		}

		apps, err := openApps(cmd)
		if err != nil {
			return err
		}
		app, err := apps.Add(addApp)
		if err != nil {
			return err
		}
		return printResult(cmd, app, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "Registered application %s (%s)\n", app.DisplayName, app.AppID)
		})
	},
}

func appForm(app *directory.Application, redirect *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Display name").
				Placeholder("My Web App").
				Value(&app.DisplayName).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("display name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Client secret").
				Description("Leave empty for a public client").
				EchoMode(huh.EchoModePassword).
				Value(&app.ClientSecret),
			huh.NewInput().
				Title("Redirect URI").
				Placeholder("http://localhost:3000/callback").
				Value(redirect),
		),
	)
}

func init() {
	f := appsAddCmd.Flags()
	f.StringVar(&addApp.DisplayName, "name", "", "Display name")
	f.StringVar(&addApp.AppID, "app-id", "", "Client ID (default random UUID)")
	f.StringVar(&addApp.ClientSecret, "secret", "", "Client secret (omit for a public client)")
	f.StringArrayVar(&addApp.RedirectURIs, "redirect-uri", nil, "Registered redirect URI (repeatable)")
	f.StringSliceVar(&addApp.AllowedScopes, "scope", nil, "Allowed scope (repeatable or comma separated)")

	appsCmd.AddCommand(appsListCmd, appsAddCmd)
	rootCmd.AddCommand(appsCmd)
}

func openApps(cmd *cobra.Command) (*directory.Applications, error) {
	cfg, logger, closeLog, err := commandSetup(cmd)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	return directory.OpenApplications(cfg.ApplicationsFile(), logger)
}
