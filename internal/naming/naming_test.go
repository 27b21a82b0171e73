package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestDerive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		url    string
		anchor string
		want   string
	}{
		{
			name: "last path segment",
			url:  "https://example.com/docs/annual-report.pdf",
			want: "annual-report.pdf",
		},
		{
			name: "escaped unicode segment",
			url:  "https://example.com/%E5%9C%96%E8%A1%A8%201.pdf",
			want: "圖表_1.pdf",
		},
		{
			name: "upper case extension is kept",
			url:  "https://example.com/Table1.PDF",
			want: "Table1.PDF",
		},
		{
			name: "query parameter when path is a script",
			url:  "https://example.com/download.php?file=figure-2.pdf",
			want: "figure-2.pdf",
		},
		{
			name: "query parameter without extension gets one",
			url:  "https://example.com/get?name=summary",
			want: "summary.pdf",
		},
		{
			name:   "anchor text when path has no file name",
			url:    "https://example.com/download/",
			anchor: "Table 3: Revenue / Cost",
			want:   "Table_3_Revenue_Cost.pdf",
		},
		{
			name:   "anchor text when url is opaque",
			url:    "https://example.com/d?id=42",
			anchor: "  Quarterly   results  ",
			want:   "Quarterly_results.pdf",
		},
		{
			name: "fallback name",
			url:  "https://example.com/",
			want: DefaultName,
		},
		{
			name:   "unparseable url falls back to anchor",
			url:    "http://[::1",
			anchor: "report",
			want:   "report.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Derive(tt.url, tt.anchor); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	t.Parallel()

	first := Derive("https://example.com/x/y.pdf", "anchor")
	for range 10 {
		if got := Derive("https://example.com/x/y.pdf", "anchor"); got != first {
			t.Fatalf("expected %q on every call, got %q", first, got)
		}
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{`a<b>c:d"e|f?g*h\i/j.pdf`, "a_b_c_d_e_f_g_h_i_j.pdf"},
		{"many    spaces___and_underscores", "many_spaces_and_underscores"},
		{"dots...everywhere..pdf", "dots.everywhere.pdf"},
		{"__trimmed__", "trimmed"},
		{"   ", ""},
		{"...", ""},
		{"tab\there", "tab_here"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("long stem is capped and extension kept", func(t *testing.T) {
		t.Parallel()
		got := Sanitize(strings.Repeat("表", 300) + ".pdf")
		if !strings.HasSuffix(got, ".pdf") {
			t.Errorf("expected .pdf suffix, got %q", got)
		}
		if n := utf8.RuneCountInString(strings.TrimSuffix(got, ".pdf")); n != MaxStemLength {
			t.Errorf("expected stem of %d runes, got %d", MaxStemLength, n)
		}
	})
}

func TestClaimer(t *testing.T) {
	t.Parallel()

	t.Run("suffixes collisions before extension", func(t *testing.T) {
		t.Parallel()
		c := NewClaimer()
		dir := filepath.Join("out")

		got := []string{
			c.Claim(dir, "report.pdf"),
			c.Claim(dir, "report.pdf"),
			c.Claim(dir, "REPORT.pdf"),
			c.Claim(dir, "other.pdf"),
		}
		want := []string{
			filepath.Join(dir, "report.pdf"),
			filepath.Join(dir, "report-2.pdf"),
			filepath.Join(dir, "REPORT-3.pdf"),
			filepath.Join(dir, "other.pdf"),
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("claim %d: expected %q, got %q", i, want[i], got[i])
			}
		}
		if c.Len() != 4 {
			t.Errorf("expected 4 claims, got %d", c.Len())
		}
	})

	t.Run("concurrent claims are pairwise distinct", func(t *testing.T) {
		t.Parallel()
		c := NewClaimer()

		const n = 50
		paths := make([]string, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				paths[i] = c.Claim("dir", "same.pdf")
			}()
		}
		wg.Wait()

		seen := make(map[string]bool)
		for _, p := range paths {
			if seen[p] {
				t.Fatalf("duplicate path %q", p)
			}
			seen[p] = true
		}
		if !c.Claimed(filepath.Join("dir", fmt.Sprintf("same-%d.pdf", n))) {
			t.Errorf("expected suffix -%d to be claimed", n)
		}
	})
}
