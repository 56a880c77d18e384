// Package cli provides the command-line interface for profq.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/profq/internal/cli/commands"
	"github.com/leapstack-labs/profq/internal/cli/config"
	"github.com/leapstack-labs/profq/internal/cli/output"
	"github.com/leapstack-labs/profq/internal/pipeline"
	"github.com/leapstack-labs/profq/internal/store"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// skipConfig lists commands that run without a configuration file.
var skipConfig = map[string]bool{
	"help":       true,
	"completion": true,
	"__complete": true,
	"version":    true,
	"schema":     true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "profq",
		Short: "profq - query and transform linguistic profiles",
		Long: `profq queries, filters and transforms the tables of a profile, a
directory of '@'-separated table files described by a relations file.

Filters and applicators are Starlark expressions bound to a data specifier
(TABLE[:COL[@COL...]]). Applicators rewrite column values, filters drop rows;
with --cascade-filters a dropped row also removes the rows that depend on it
through key columns. The result can be written as a new profile (--output),
printed (--select), or both.

Options are read from exactly one configuration file: the --config path, or
./.profqrc, or ~/.profqrc. Command-line values override the file only when
they are non-empty, non-zero or true.`,
		Example: `  # Print the ids of short items
  profq -i profiles/mrs -f "item=int(row['i-length']) < 5" -s item:i-id

  # Double every length and write a new profile
  profq -i profiles/mrs -a "item:i-length=int(x) * 2" -o out/

  # Drop an item with its parses and results
  profq -i profiles/mrs -f "item:i-id=x != '10'" --cascade-filters -o out/`,
		Version: Version,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				verbosity, _ := cmd.Flags().GetCount("verbose")
				cmd.SetContext(config.WithLogger(cmd.Context(), NewLogger(cmd.ErrOrStderr(), verbosity)))
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbosity)
			logger.Debug("configuration loaded", "path", cfg.Path)

			ctx := config.WithLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := pipeline.New(GetConfig(ctx), pipeline.Options{
				Stdout: cmd.OutOrStdout(),
				Logger: config.GetLogger(ctx),
			})
			return p.Run(ctx)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default: ./.profqrc, then ~/.profqrc)")
	flags.StringP("input", "i", "", "Input profile directory")
	flags.StringP("output", "o", "", "Output profile directory")
	flags.StringP("relations", "r", "", "Relations file (default: the input profile's)")
	flags.StringP("select", "s", "", "Print a selection (TABLE[:COL[@COL...]])")
	flags.StringArrayP("apply", "a", nil, "Applicator SPEC=EXPR (repeatable)")
	flags.StringArrayP("filter", "f", nil, "Filter SPEC=EXPR (repeatable)")
	flags.Bool("cascade-filters", false, "Remove rows depending on filtered rows")
	flags.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
	flags.String("format", "", "Selection format ("+strings.Join(output.Formats(), "|")+")")
	flags.String("output-format", "", "Output profile format ("+strings.Join(store.List(), "|")+")")
	flags.Bool("gzip", false, "Compress output table files")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("output-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return store.List(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, Date: BuildDate, Commit: GitCommit}))
	rootCmd.AddCommand(commands.NewSchemaCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	// A missing home directory only disables that lookup.
	home, _ := homedir.Dir()

	return config.Load(config.LoaderOptions{
		Explicit: explicit,
		WorkDir:  wd,
		HomeDir:  home,
		Flags:    cmd.Root().PersistentFlags(),
	})
}

// NewLogger returns a text logger on w whose level follows verbosity:
// warnings by default, info at 1, debug from 2.
func NewLogger(w io.Writer, verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for profq.

To load completions:

Bash:
  $ source <(profq completion bash)

Zsh:
  $ profq completion zsh > "${fpath[1]}/_profq"

Fish:
  $ profq completion fish | source

PowerShell:
  PS> profq completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(w)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}
	return cmd
}
