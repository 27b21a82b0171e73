package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/pdfharvest/internal/merge"
	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/pdftest"
)

func TestNewMergeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewMergeCmd()
	if cmd.Use != "merge <dir>" {
		t.Errorf("expected use 'merge <dir>', got %q", cmd.Use)
	}
	for _, name := range []string{"match", "name", "order", "force", "delete", "json", "markdown", "output"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if def := cmd.Flags().Lookup("name").DefValue; def != merge.DefaultOutputName {
		t.Errorf("expected default name %q, got %q", merge.DefaultOutputName, def)
	}
}

func TestMergeCmd(t *testing.T) {
	t.Parallel()

	t.Run("merges in natural order and reports skipped files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		pdftest.Write(t, dir, "Table10.pdf", 1, 110)
		pdftest.Write(t, dir, "Table2.pdf", 2, 102)
		pdftest.WriteCorrupt(t, dir, "Table3.pdf")

		stdout, _, err := executeRoot(t, "merge", "--config", emptyConfig(t), "--json", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var out struct {
			Merge model.MergeResult `json:"merge"`
		}
		if err := json.Unmarshal([]byte(stdout), &out); err != nil {
			t.Fatalf("failed to parse output %q: %v", stdout, err)
		}
		if out.Merge.TotalPages != 3 {
			t.Errorf("expected 3 pages, got %d", out.Merge.TotalPages)
		}
		want := []string{filepath.Join(dir, "Table2.pdf"), filepath.Join(dir, "Table10.pdf")}
		if len(out.Merge.Inputs) != len(want) {
			t.Fatalf("expected inputs %v, got %v", want, out.Merge.Inputs)
		}
		for i := range want {
			if out.Merge.Inputs[i] != want[i] {
				t.Errorf("input %d: expected %s, got %s", i, want[i], out.Merge.Inputs[i])
			}
		}
		if len(out.Merge.Skipped) != 1 || !strings.HasSuffix(out.Merge.Skipped[0].Path, "Table3.pdf") {
			t.Errorf("expected Table3.pdf to be skipped, got %+v", out.Merge.Skipped)
		}
		if _, err := os.Stat(filepath.Join(dir, merge.DefaultOutputName+".pdf")); err != nil {
			t.Errorf("expected merged file: %v", err)
		}
	})

	t.Run("filters by keyword and deletes sources", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		pdftest.Write(t, dir, "budget_a.pdf", 1, 100)
		pdftest.Write(t, dir, "budget_b.pdf", 1, 101)
		pdftest.Write(t, dir, "agenda.pdf", 1, 102)

		_, _, err := executeRoot(t, "merge", "--config", emptyConfig(t),
			"--match", "budget", "--delete", "-n", "budget", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, gone := range []string{"budget_a.pdf", "budget_b.pdf"} {
			if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
				t.Errorf("expected %s to be deleted, got %v", gone, err)
			}
		}
		for _, kept := range []string{"agenda.pdf", "budget.pdf"} {
			if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
				t.Errorf("expected %s to exist: %v", kept, err)
			}
		}
	})

	t.Run("refuses to replace without force", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		pdftest.Write(t, dir, "a.pdf", 1, 100)
		pdftest.Write(t, dir, "b.pdf", 1, 101)
		if err := os.WriteFile(filepath.Join(dir, "merged_pdfs.pdf"), []byte("old"), 0o600); err != nil {
			t.Fatal(err)
		}

		_, _, err := executeRoot(t, "merge", "--config", emptyConfig(t), dir)
		if !errors.Is(err, merge.ErrOutputExists) {
			t.Fatalf("expected %v, got %v", merge.ErrOutputExists, err)
		}

		if _, _, err := executeRoot(t, "merge", "--config", emptyConfig(t), "--force", dir); err != nil {
			t.Fatalf("expected --force to replace the file, got %v", err)
		}
	})

	t.Run("rejects invalid order", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeRoot(t, "merge", "--config", emptyConfig(t), "--order", "size", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "configuration error") {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("requires a directory", func(t *testing.T) {
		t.Parallel()

		if _, _, err := executeRoot(t, "merge"); err == nil {
			t.Error("expected error without a directory")
		}
	})
}
