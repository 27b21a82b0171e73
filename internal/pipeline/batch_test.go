package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/render"
)

func TestBatchProcessorOptions(t *testing.T) {
	t.Parallel()

	ctl := NewController(render.NewFake(), nil, DefaultOptions())

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(ctl, WithBatchLogger(nil))
		if bp.concurrency != 2 {
			t.Errorf("expected default concurrency 2, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("WithConcurrency sets concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(ctl, WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("WithConcurrency ignores invalid values", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(ctl, WithConcurrency(0))
		if bp.concurrency != 2 {
			t.Errorf("expected default concurrency 2, got %d", bp.concurrency)
		}
	})
}

func TestSourceDirs(t *testing.T) {
	t.Parallel()

	dirs := SourceDirs("out", []string{
		"https://example.com/a",
		"https://example.com/b",
		"http://127.0.0.1:8080/",
		"::not a url",
	})

	want := []string{
		filepath.Join("out", "example_com"),
		filepath.Join("out", "example_com-2"),
		filepath.Join("out", "127_0_0_1_8080"),
		filepath.Join("out", "site"),
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dir %d: expected %s, got %s", i, want[i], dirs[i])
		}
	}
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	srv, _ := pdfServer(t)

	pageA := "https://a.test/"
	pageB := "https://b.test/"
	fake := render.NewFake().
		AddPage(pageA, &render.Snapshot{Links: []model.CandidateLink{
			{URL: srv.URL + "/table1.pdf", SourcePage: pageA},
		}}).
		AddPage(pageB, &render.Snapshot{Links: []model.CandidateLink{
			{URL: srv.URL + "/table1.pdf", SourcePage: pageB},
			{URL: srv.URL + "/figure1.pdf", SourcePage: pageB},
		}})

	outputDir := t.TempDir()
	ctl := NewController(fake, srv.Client(), testOptions(outputDir))
	bp := NewBatchProcessor(ctl, WithConcurrency(2))

	var (
		mu      sync.Mutex
		indexes []int
	)
	reports, err := bp.ProcessBatch(context.Background(), []string{pageA, pageB, "https://missing.test/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	if reports[0].Succeeded() != 1 || reports[1].Succeeded() != 2 {
		t.Errorf("expected 1 and 2 successes, got %d and %d", reports[0].Succeeded(), reports[1].Succeeded())
	}
	if reports[0].OutputDir != filepath.Join(outputDir, "a_test") {
		t.Errorf("unexpected output dir %s", reports[0].OutputDir)
	}
	if reports[0].OutputDir == reports[1].OutputDir {
		t.Error("expected distinct output directories")
	}
	if !errors.Is(reports[2].Error, ErrDiscovery) {
		t.Errorf("expected ErrDiscovery for the missing source, got %v", reports[2].Error)
	}

	err = bp.ProcessBatchWithCallback(context.Background(), []string{pageA, pageB}, func(_ *model.RunReport, i int) {
		mu.Lock()
		defer mu.Unlock()
		indexes = append(indexes, i)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indexes) != 2 {
		t.Errorf("expected 2 callbacks, got %d", len(indexes))
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ctl := NewController(render.NewFake(), nil, testOptions(t.TempDir()))
	bp := NewBatchProcessor(ctl)

	reports, err := bp.ProcessBatch(ctx, []string{"https://a.test/"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(reports) != 1 || reports[0] != nil {
		t.Errorf("expected one empty slot, got %v", reports)
	}
}
