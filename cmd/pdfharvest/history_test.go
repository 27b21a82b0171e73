package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pdfharvest/internal/database"
	"github.com/nao1215/pdfharvest/internal/model"
)

// seedHistory stores two runs, one of them 48 hours old, and returns the
// history directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	now := time.Now()
	runs := []struct {
		id      string
		started time.Time
	}{
		{"aaaa1111-0000-4000-8000-000000000001", now.Add(-48 * time.Hour)},
		{"bbbb2222-0000-4000-8000-000000000002", now.Add(-time.Minute)},
	}
	for _, r := range runs {
		rep := model.NewRunReport(r.id, "https://example.com/reports")
		rep.StartedAt = r.started
		rep.FinishedAt = r.started.Add(2 * time.Second)
		rep.Policy = model.ChartPrefixPolicy()
		rep.OutputDir = "/tmp/out"
		rep.LinksFound = 3
		rep.Filtered = 1
		rep.Outcomes = []model.DownloadOutcome{{
			Task: model.DownloadTask{
				Link:       model.CandidateLink{URL: "https://example.com/Table1.pdf", AnchorText: "Table 1"},
				TargetPath: "/tmp/out/Table1.pdf",
			},
			Status:       model.StatusSuccess,
			Attempts:     1,
			BytesWritten: 2048,
			Digest:       "d1g35t",
		}}
		if err := db.SaveRun(t.Context(), rep); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}
	return dir
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history [run-id]" {
		t.Errorf("expected use 'history [run-id]', got %q", cmd.Use)
	}
	flag := cmd.Flags().Lookup("limit")
	if flag == nil {
		t.Fatal("expected limit flag")
	}
	if flag.Shorthand != "n" || flag.DefValue != "20" {
		t.Errorf("expected -n with default 20, got -%s %s", flag.Shorthand, flag.DefValue)
	}
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "history", "--history-dir", seedHistory(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Runs (2)") {
			t.Errorf("expected two runs, got %q", stdout)
		}
		newer := strings.Index(stdout, "bbbb2222")
		older := strings.Index(stdout, "aaaa1111")
		if newer < 0 || older < 0 || newer > older {
			t.Errorf("expected bbbb2222 before aaaa1111, got %q", stdout)
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "history", "--history-dir", seedHistory(t), "-n", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(stdout, "aaaa1111") {
			t.Errorf("expected only the newest run, got %q", stdout)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "history", "--history-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No runs found") {
			t.Errorf("expected empty message, got %q", stdout)
		}
	})

	t.Run("shows a run by prefix", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "history", "--history-dir", seedHistory(t), "bbbb")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Run bbbb2222-0000-4000-8000-000000000002", "/tmp/out/Table1.pdf", "2.0 KiB", "1 ok, 0 failed, 0 skipped"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected %q in output, got %q", want, stdout)
			}
		}
	})

	t.Run("prints stored json", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "history", "--history-dir", seedHistory(t), "--json", "aaaa")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var doc struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
			t.Fatalf("expected JSON, got %q: %v", stdout, err)
		}
		if doc.RunID != "aaaa1111-0000-4000-8000-000000000001" {
			t.Errorf("expected the full run id, got %q", doc.RunID)
		}
	})

	t.Run("json requires a run id", func(t *testing.T) {
		t.Parallel()

		if _, _, err := executeRoot(t, "history", "--history-dir", t.TempDir(), "--json"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeRoot(t, "history", "--history-dir", seedHistory(t), "ffff")
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected %v, got %v", database.ErrRunNotFound, err)
		}
	})

	t.Run("finds downloads by digest", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "history", "--history-dir", seedHistory(t), "--digest", "D1G35T")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "(2)") || !strings.Contains(stdout, "https://example.com/Table1.pdf") {
			t.Errorf("expected both runs to match, got %q", stdout)
		}
	})

	t.Run("prunes old runs", func(t *testing.T) {
		t.Parallel()

		dir := seedHistory(t)
		stdout, _, err := executeRoot(t, "history", "--history-dir", dir, "--prune", "24h")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Deleted 1 run(s)") {
			t.Errorf("expected one deleted run, got %q", stdout)
		}

		stdout, _, err = executeRoot(t, "history", "--history-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(stdout, "aaaa1111") || !strings.Contains(stdout, "bbbb2222") {
			t.Errorf("expected only the recent run to remain, got %q", stdout)
		}
	})
}
