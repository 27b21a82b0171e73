package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pdfharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfharvest",
		Short: "Discover, download and merge PDFs linked from web pages",
		Long: `pdfharvest finds PDF links on web pages, downloads the ones accepted by
a filter policy with bounded concurrency and retries, and optionally merges
the downloaded files into one document in a deterministic order.

Settings are read from a .pdfharvest file in the current or home directory
(see 'pdfharvest init'); command line flags override the file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .pdfharvest in current or home directory)")
	cmd.PersistentFlags().String("log-file", "",
		"Also write logs to this file (rotated)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewMergeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
