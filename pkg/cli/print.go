package cli

import (
	"io"

	"github.com/getmockd/mockidp/pkg/cli/internal/output"
	"github.com/spf13/cobra"
)

// printResult outputs a single operation result.
//
// When --json is active only the JSON encoding of data is written to
// stdout. textFn is called only in text mode.
func printResult(cmd *cobra.Command, data any, textFn func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		return output.JSON(w, data)
	}
	textFn(w)
	return nil
}
