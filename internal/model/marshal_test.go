package model

import (
	"encoding/json"
	"testing"
)

func TestMergeResultJSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := MergeResult{
		OutputPath: "merged.pdf",
		Skipped: []SkippedUnit{
			{Path: "a.pdf", Reason: SkipCorrupt},
			{Path: "b.pdf", Reason: SkipEmpty},
			{Path: "c.pdf", Reason: SkipUnreadable},
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out MergeResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("expected no error decoding %s, got %v", data, err)
	}
	if len(out.Skipped) != len(in.Skipped) {
		t.Fatalf("expected %d skipped, got %d", len(in.Skipped), len(out.Skipped))
	}
	for i := range in.Skipped {
		if out.Skipped[i].Reason != in.Skipped[i].Reason {
			t.Errorf("expected reason %s, got %s", in.Skipped[i].Reason, out.Skipped[i].Reason)
		}
	}
}

func TestDownloadOutcomeJSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := DownloadOutcome{
		Index:    2,
		Status:   StatusFailed,
		Attempts: 3,
		Err:      &TaskError{Kind: ErrorKindHTTP, StatusCode: 503, Message: "HTTP 503"},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out DownloadOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("expected no error decoding %s, got %v", data, err)
	}
	if out.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, out.Status)
	}
	if out.Err == nil || out.Err.Kind != ErrorKindHTTP {
		t.Fatalf("expected error kind %s, got %+v", ErrorKindHTTP, out.Err)
	}
	if out.Err.StatusCode != 503 {
		t.Errorf("expected status code 503, got %d", out.Err.StatusCode)
	}
}

func TestUnmarshalTextRejectsUnknown(t *testing.T) {
	t.Parallel()

	t.Run("skip reason", func(t *testing.T) {
		t.Parallel()
		var r SkipReason
		if err := r.UnmarshalText([]byte("Unknown")); err == nil {
			t.Error("expected error for unknown skip reason, got nil")
		}
	})
	t.Run("download status", func(t *testing.T) {
		t.Parallel()
		var s DownloadStatus
		if err := s.UnmarshalText([]byte("Pending")); err == nil {
			t.Error("expected error for unknown status, got nil")
		}
	})
	t.Run("error kind", func(t *testing.T) {
		t.Parallel()
		var k ErrorKind
		if err := k.UnmarshalText([]byte("Bogus")); err == nil {
			t.Error("expected error for unknown kind, got nil")
		}
	})
}

func TestErrorKindUnmarshalTextAllKinds(t *testing.T) {
	t.Parallel()

	for k := ErrorKindNone; k <= ErrorKindCancelled; k++ {
		t.Run(k.String(), func(t *testing.T) {
			t.Parallel()
			var got ErrorKind
			if err := got.UnmarshalText([]byte(k.String())); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != k {
				t.Errorf("expected %s, got %s", k, got)
			}
		})
	}
}
