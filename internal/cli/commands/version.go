package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the profq version, and with --verbose its build metadata.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "profq v%s\n", info.Version)
			_, _ = fmt.Fprintln(w, "Query, filter and transform linguistic profiles")
			if n, _ := cmd.Flags().GetCount("verbose"); n > 0 {
				_, _ = fmt.Fprintf(w, "commit: %s\nbuilt:  %s\n", info.Commit, info.Date)
			}
		},
	}
	return cmd
}
