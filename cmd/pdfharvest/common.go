package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/pdfharvest/internal/config"
	pdflog "github.com/nao1215/pdfharvest/internal/log"
	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/report"
)

// loadConfig reads the configuration file named by --config, or the one
// found in the current or home directory, over the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var path string
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}

	cfg, found, err := config.Load(path)
	if err != nil {
		if found != "" {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return nil, err
	}
	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger builds the logger from the config and the --verbose and
// --log-file flags, and installs it as the slog default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logFile := cfg.Log.File
	if cmd.Flags().Changed("log-file") {
		f, err := cmd.Flags().GetString("log-file")
		if err != nil {
			return nil, nil, err
		}
		logFile = f
	}

	logger, closer, err := pdflog.NewLogger(cmd.ErrOrStderr(), pdflog.Options{
		Verbose:    getVerboseFlag(cmd),
		JSON:       cfg.Log.Format == config.LogFormatJSON,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// addReportFlags registers the report format and destination flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// reportOptions are the values of the report flags.
type reportOptions struct {
	json     bool
	markdown bool
	file     string

	// verbose lists every download in the text report.
	verbose bool

	// echo also prints the text report to stdout when the report goes to a
	// file.
	echo bool
}

func getReportOptions(cmd *cobra.Command) (reportOptions, error) {
	var (
		opts reportOptions
		err  error
	)
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.file, err = cmd.Flags().GetString("output"); err != nil {
		return opts, err
	}
	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	opts.verbose = getVerboseFlag(cmd)
	opts.echo = opts.file != ""
	return opts, nil
}

// writer returns the report writer for opts and the function closing its
// destination.
func (o reportOptions) writer(stdout io.Writer) (report.Writer, func() error, error) {
	out := stdout
	closeFn := func() error { return nil }

	if o.file != "" {
		if dir := filepath.Dir(o.file); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		// Reports can name pages behind cookies; keep them owner-only.
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		out = f
		closeFn = f.Close
	}

	var w report.Writer
	switch {
	case o.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case o.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(o.verbose))
	}

	if o.file != "" && o.echo {
		w = report.NewMultiWriter(w, report.NewSimpleWriter(stdout, report.WithVerbose(o.verbose)))
	}
	return w, closeFn, nil
}

// writeMergeReport renders a merge result.
func (o reportOptions) writeMergeReport(stdout io.Writer, r *model.MergeResult) error {
	w, closeFn, err := o.writer(stdout)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // write errors are reported below

	_, err = w.WriteMerge(r)
	return err
}
