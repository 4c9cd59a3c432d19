package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Workfile is the workfile path; empty searches the root directory.
	Workfile string
	// Root overrides INCR_ROOT.
	Root string
	// Database overrides INCR_DB.
	Database string
	// CacheDir overrides INCR_CACHE_DIR.
	CacheDir string
	// EnvFile is loaded before reading the environment.
	EnvFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the incr CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "incr",
		Short: "incr - incremental unit execution",
		Long: `incr runs the units declared in a workfile and skips those whose inputs
and outputs are unchanged since their last successful run.

Units that can handle their own changes receive only the files added,
modified or removed since then.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Workfile, "file", "f", "", "workfile (default: incr.yaml, incr.yml or incr.cue in the root)")
	flags.StringVarP(&opts.Root, "root", "C", "", "workspace root (env INCR_ROOT)")
	flags.StringVar(&opts.Database, "db", "", "history database (env INCR_DB)")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "local build cache, \"off\" to disable (env INCR_CACHE_DIR)")
	flags.StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load (default .env)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
