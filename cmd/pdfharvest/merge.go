package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/pdfharvest/internal/merge"
	"github.com/nao1215/pdfharvest/internal/pipeline"
)

// NewMergeCmd creates the merge command.
func NewMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <dir>",
		Short: "Merge the PDFs in a directory into one document",
		Long: `Merge concatenates the PDF files directly inside a directory (not its
subdirectories) into one document written to the same directory.

Inputs are sorted by file name, case-insensitive with numbers compared by
value (Table2 before Table10), or by modification time with --order mtime.
Corrupt, empty, encrypted or unreadable files are skipped and listed in the
report.

Examples:
  # Merge everything in ./downloads into ./downloads/merged_pdfs.pdf
  pdfharvest merge ./downloads

  # Merge only tables, oldest first, and remove the inputs afterwards
  pdfharvest merge --match table --order mtime --delete ./downloads

  # Replace an existing merged file
  pdfharvest merge -n annual_report --force ./downloads`,
		Args: cobra.ExactArgs(1),
		RunE: runMergeCmd,
	}

	cmd.Flags().StringSlice("match", nil,
		"Only merge files whose name contains one of these keywords")
	cmd.Flags().StringP("name", "n", merge.DefaultOutputName,
		"Merged file name (.pdf is appended)")
	cmd.Flags().String("order", merge.OrderByName.String(),
		"Merge order: name or mtime")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing merged file")
	cmd.Flags().Bool("delete", false,
		"Delete the merged source files after a successful merge")

	addReportFlags(cmd)

	return cmd
}

// runMergeCmd executes the merge command.
func runMergeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("name") {
		if cfg.Merge.OutputName, err = f.GetString("name"); err != nil {
			return err
		}
	}
	if f.Changed("order") {
		if cfg.Merge.Order, err = f.GetString("order"); err != nil {
			return err
		}
	}
	if f.Changed("force") {
		if cfg.Merge.Force, err = f.GetBool("force"); err != nil {
			return err
		}
	}
	if f.Changed("delete") {
		if cfg.Merge.DeleteSources, err = f.GetBool("delete"); err != nil {
			return err
		}
	}
	keywords, err := f.GetStringSlice("match")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	ro, err := getReportOptions(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}

	// Folder merges never render or download; the controller only needs
	// its merge settings.
	controller := pipeline.NewController(nil, nil, opts, pipeline.WithControllerLogger(logger))

	result, mergeErr := controller.MergeFolder(cmd.Context(), args[0], keywords...)
	if result != nil {
		if err := ro.writeMergeReport(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return mergeErr
}
