package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/pdfharvest/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.RunReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.RunReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("adds multiple steps with AddSteps", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(&mockStep{name: "a"}, &mockStep{name: "b"})
		p.AddStep(&mockStep{name: "c"})

		if p.StepCount() != 3 {
			t.Errorf("expected 3 steps, got %d", p.StepCount())
		}
		names := p.StepNames()
		if names[0] != "a" || names[1] != "b" || names[2] != "c" {
			t.Errorf("unexpected names: %v", names)
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)
		record := func(name string) *mockStep {
			return &mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *model.RunReport) error {
					executionOrder = append(executionOrder, name)
					return nil
				},
			}
		}

		p := New()
		p.AddSteps(record("discover"), record("classify"), record("download"))

		report := model.NewRunReport("run-1", "https://example.com/")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(executionOrder) != 3 {
			t.Fatalf("expected 3 executions, got %d", len(executionOrder))
		}
		if executionOrder[0] != "discover" || executionOrder[2] != "download" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
		if len(report.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %d", len(report.PerformedSteps))
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		next := &mockStep{name: "should-not-run"}

		p := New()
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.RunReport) error {
				return expectedErr
			},
		})
		p.AddStep(next)

		report := model.NewRunReport("run-1")
		err := p.Execute(context.Background(), report)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if next.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if report.ErrorMessage != expectedErr.Error() {
			t.Errorf("expected error message %q, got %q", expectedErr.Error(), report.ErrorMessage)
		}
		if report.Successful() {
			t.Error("expected unsuccessful report")
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		next := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true))
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.RunReport) error {
				return errors.New("step failed")
			},
		})
		p.AddStep(next)

		report := model.NewRunReport("run-1")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Errorf("expected nil error with continueOnError, got %v", err)
		}
		if next.callCount != 1 {
			t.Error("second step should have been called")
		}
	})

	t.Run("cancellation between steps skips the rest", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		merge := &mockStep{name: "merge"}
		p := New()
		p.AddStep(&mockStep{
			name: "download",
			doFunc: func(_ context.Context, _ *model.RunReport) error {
				cancel()
				return nil
			},
		})
		p.AddStep(merge)

		report := model.NewRunReport("run-1")
		err := p.Execute(ctx, report)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if merge.callCount != 0 {
			t.Error("merge step should not have been called")
		}
		if !report.Cancelled {
			t.Error("report.Cancelled should be true")
		}
		if len(report.PerformedSteps) != 1 || report.PerformedSteps[0] != "download" {
			t.Errorf("unexpected performed steps: %v", report.PerformedSteps)
		}
	})
}

func TestMockStep(t *testing.T) {
	t.Parallel()

	step := &mockStep{name: "test"}
	report := model.NewRunReport("run-1")

	_ = step.Do(context.Background(), report) //nolint:errcheck // no doFunc
	_ = step.Do(context.Background(), report) //nolint:errcheck // no doFunc

	if step.callCount != 2 {
		t.Errorf("expected call count 2, got %d", step.callCount)
	}
	if step.Name() != "test" {
		t.Errorf("expected name 'test', got %q", step.Name())
	}
}
