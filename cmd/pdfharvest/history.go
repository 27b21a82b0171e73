package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/pdfharvest/internal/config"
	"github.com/nao1215/pdfharvest/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show previous crawl runs",
		Long: `History lists the runs saved by 'pdfharvest crawl', newest first.

With a run id (or a unique prefix of one) it shows the outcome of every
candidate in that run.

Examples:
  # List the last 20 runs
  pdfharvest history

  # Show one run
  pdfharvest history 0b5c1e9a

  # Print the stored JSON report of a run
  pdfharvest history --json 0b5c1e9a

  # Find earlier downloads of the same file
  pdfharvest history --digest 3a7bd3e2360a3d...

  # Remove runs older than 30 days
  pdfharvest history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20,
		"Number of runs to list (0 lists every run)")
	cmd.Flags().BoolP("json", "j", false,
		"Print the stored JSON report of the given run")
	cmd.Flags().String("digest", "",
		"List downloads whose SHA3-256 digest matches")
	cmd.Flags().Duration("prune", 0,
		"Delete runs older than this duration")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	limit, err := f.GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := f.GetBool("json")
	if err != nil {
		return err
	}
	digest, err := f.GetString("digest")
	if err != nil {
		return err
	}
	prune, err := f.GetDuration("prune")
	if err != nil {
		return err
	}
	dir, err := f.GetString("history-dir")
	if err != nil {
		return err
	}

	// Validate before opening so a bad invocation never creates the database.
	if jsonOutput && len(args) == 0 {
		return errors.New("--json requires a run id")
	}
	if prune < 0 {
		return fmt.Errorf("--prune must not be negative, got %s", prune)
	}

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case prune > 0:
		n, err := db.DeleteRunsBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d run(s) older than %s.\n", n, prune)
		return nil
	case digest != "":
		return listDigest(ctx, out, db, digest)
	case len(args) == 0:
		return listRuns(ctx, out, db, limit)
	}

	run, err := db.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		doc, err := db.GetRunJSON(ctx, run.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, doc)
		return nil
	}
	return showRun(ctx, out, db, run)
}

// listRuns prints one line per run.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the history.")
		fmt.Fprintln(out, "\nUse 'pdfharvest crawl <url>' to download PDFs.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-22s  %s\n", "ID", "Date", "OK/Failed/Skipped", "Sources")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, r := range runs {
		counts := fmt.Sprintf("%d/%d/%d", r.Success, r.Failed, r.Skipped)
		if r.Cancelled {
			counts += " cancelled"
		}
		fmt.Fprintf(out, "  %-8s  %-19s  %-22s  %s\n",
			shortID(r.RunID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			counts,
			strings.Join(r.Sources, ", "),
		)
	}

	fmt.Fprintln(out, "\nUse 'pdfharvest history <id>' to see the downloads of a run.")
	return nil
}

// showRun prints a run and its outcomes.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, r *database.RunRecord) error {
	outcomes, err := db.GetOutcomes(ctx, r.RunID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s\n", r.RunID)
	fmt.Fprintf(out, "  Sources:    %s\n", strings.Join(r.Sources, ", "))
	fmt.Fprintf(out, "  Started:    %s (%s)\n",
		r.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(r.StartedAt))
	fmt.Fprintf(out, "  Elapsed:    %s\n", r.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(out, "  Policy:     %s\n", r.Policy)
	fmt.Fprintf(out, "  Directory:  %s\n", r.OutputDir)
	fmt.Fprintf(out, "  Links:      %d found, %d accepted\n", r.LinksFound, r.Filtered)
	fmt.Fprintf(out, "  Downloads:  %d ok, %d failed, %d skipped\n", r.Success, r.Failed, r.Skipped)
	if r.Cancelled {
		fmt.Fprintln(out, "  Cancelled:  yes")
	}
	if r.Error != "" {
		fmt.Fprintf(out, "  Error:      %s\n", r.Error)
	}
	if r.MergeOutput != "" {
		fmt.Fprintf(out, "  Merged:     %s (%d inputs, %d pages, %d deleted)\n",
			r.MergeOutput, r.MergeInputs, r.MergePages, r.MergeDeleted)
	}

	if len(outcomes) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-4s  %-8s  %-10s  %s\n", "#", "Status", "Size", "File")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, o := range outcomes {
		name := o.TargetPath
		if name == "" {
			name = o.URL
		}
		fmt.Fprintf(out, "  %-4d  %-8s  %-10s  %s\n",
			o.Index+1, o.Status, humanize.IBytes(uint64(max(o.BytesWritten, 0))), name)
		if o.ErrorMessage != "" {
			fmt.Fprintf(out, "        %s\n", o.ErrorMessage)
		}
	}
	return nil
}

// listDigest prints the downloads that produced a file with the digest.
func listDigest(ctx context.Context, out io.Writer, db *database.HistoryDB, digest string) error {
	outcomes, err := db.FindByDigest(ctx, strings.ToLower(digest))
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(out, "No downloads with digest %s.\n", digest)
		return nil
	}

	fmt.Fprintf(out, "Downloads with digest %s (%d):\n\n", digest, len(outcomes))
	for _, o := range outcomes {
		fmt.Fprintf(out, "  %-8s  %s\n            %s\n", shortID(o.RunID), o.URL, o.TargetPath)
	}
	return nil
}

// shortID returns the prefix of a run id shown in listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
