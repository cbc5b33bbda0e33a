package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// VersionOutput is the JSON shape of `mockidp version --json`.
type VersionOutput struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := buildVersion()
		return printResult(cmd, out, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "mockidp %s\n", out.Version)
			_, _ = fmt.Fprintf(w, "  commit:  %s\n", out.Commit)
			_, _ = fmt.Fprintf(w, "  built:   %s\n", out.BuildDate)
			_, _ = fmt.Fprintf(w, "  go:      %s\n", out.GoVersion)
			_, _ = fmt.Fprintf(w, "  os/arch: %s/%s\n", out.OS, out.Arch)
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildVersion fills in values that ldflags left unset from the module
// build info.
func buildVersion() VersionOutput {
	out := VersionOutput{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	if out.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		out.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && len(s.Value) >= 7 {
				out.Commit = s.Value[:7]
			}
		case "vcs.time":
			if out.BuildDate == "unknown" {
				out.BuildDate = s.Value
			}
		}
	}
	return out
}
