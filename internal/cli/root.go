// Package cli implements the statchunk command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/config"
	"github.com/dgallion1/statchunk/internal/version"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	minTokens int
	maxTokens int
	workers   int
	verbose   bool

	cfg config.Config
	log *slog.Logger
}

// builder returns a chunker using the flag bounds.
func (o *options) builder() (*chunker.Builder, error) {
	return chunker.New(chunker.Config{MinTokens: o.minTokens, MaxTokens: o.maxTokens})
}

// NewRootCmd builds the command tree. Configuration defaults come from the
// same environment variables the server reads.
func NewRootCmd() *cobra.Command {
	o := &options{cfg: config.Load()}

	root := &cobra.Command{
		Use:   "statchunk",
		Short: "Split statute documents into citation-aware chunks",
		Long: `statchunk parses statute text into sections and subsections and emits
bounded chunks carrying their title/article/part hierarchy and citation.

Files may be .txt, .md, .html, .pdf or .docx.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if o.verbose {
				level = slog.LevelDebug
			}
			o.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			o.cfg.MinTokens = o.minTokens
			o.cfg.MaxTokens = o.maxTokens
			if o.workers <= 0 {
				return fmt.Errorf("--workers must be positive, got %d", o.workers)
			}
			return nil
		},
	}
	root.Version = version.Version
	root.SetVersionTemplate(fmt.Sprintf("statchunk %s\n", version.String()))

	flags := root.PersistentFlags()
	flags.IntVar(&o.minTokens, "min-tokens", o.cfg.MinTokens, "Minimum tokens per chunk")
	flags.IntVar(&o.maxTokens, "max-tokens", o.cfg.MaxTokens, "Maximum tokens per chunk")
	flags.IntVarP(&o.workers, "workers", "w", 4, "Files processed concurrently")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newChunkCmd(o),
		newPrepareCmd(o),
		newIngestCmd(o),
		newDocsCmd(o),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "statchunk %s\n", version.String())
		},
	}
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// discardLogger is used before PersistentPreRunE has run.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (o *options) logger() *slog.Logger {
	if o.log == nil {
		return discardLogger
	}
	return o.log
}
