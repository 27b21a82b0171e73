package classify

import (
	"strings"
	"testing"

	"golang.org/x/text/cases"

	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/naming"
)

func link(url, text string) model.CandidateLink {
	return model.CandidateLink{URL: url, AnchorText: text, SourcePage: "https://example.com/"}
}

// sampleLinks is a page of ten links, three of which carry a chart prefix.
func sampleLinks() []model.CandidateLink {
	return []model.CandidateLink{
		link("https://example.com/files/figure1.pdf", "Download"),
		link("https://example.com/files/annual.pdf", "Annual report"),
		link("https://example.com/files/x.pdf", "Table 2 - Revenue"),
		link("https://example.com/files/%E5%9C%96%E4%B8%80.pdf", "PDF"),
		link("https://example.com/files/summary.pdf", "Summary PDF"),
		link("https://example.com/files/notes.pdf", "Notes"),
		link("https://example.com/files/appendix.pdf", "Appendix"),
		link("https://example.com/files/minutes.pdf", "Meeting minutes"),
		link("https://example.com/files/a-table.pdf", "A table of values"),
		link("https://example.com/files/press.pdf", "Press release"),
	}
}

func TestClassifyChartPrefix(t *testing.T) {
	t.Parallel()

	got := Classify(sampleLinks(), model.ChartPrefixPolicy())
	if len(got) != 3 {
		t.Fatalf("expected 3 accepted links, got %d: %+v", len(got), got)
	}

	want := []string{
		"https://example.com/files/figure1.pdf",
		"https://example.com/files/x.pdf",
		"https://example.com/files/%E5%9C%96%E4%B8%80.pdf",
	}
	for i, w := range want {
		if got[i].URL != w {
			t.Errorf("position %d: expected %q, got %q", i, w, got[i].URL)
		}
	}
}

func TestClassifyChartPrefixProperty(t *testing.T) {
	t.Parallel()

	fold := cases.Fold()
	for _, c := range Classify(sampleLinks(), model.ChartPrefixPolicy()) {
		name := fold.String(strings.TrimSpace(naming.Derive(c.URL, c.AnchorText)))
		text := fold.String(strings.TrimSpace(c.AnchorText))
		ok := false
		for _, p := range ChartPrefixes() {
			if strings.HasPrefix(name, p) || strings.HasPrefix(text, p) {
				ok = true
			}
		}
		if !ok {
			t.Errorf("accepted candidate %+v has no chart prefix", c)
		}
	}
}

func TestClassifyChartPrefixCaseInsensitive(t *testing.T) {
	t.Parallel()

	links := []model.CandidateLink{
		link("https://example.com/a", "  FIGURE 7"),
		link("https://example.com/b", "TaBlE of contents"),
		link("https://example.com/c", "表一"),
		link("https://example.com/d", "Contents"),
	}
	got := Classify(links, model.ChartPrefixPolicy())
	if len(got) != 3 {
		t.Errorf("expected 3 accepted links, got %d", len(got))
	}
}

func TestClassifyCustomKeywords(t *testing.T) {
	t.Parallel()

	policy := model.CustomKeywordsPolicy("REPORT", "minutes")
	accepted := Classify(sampleLinks(), policy)

	if len(accepted) != 2 {
		t.Fatalf("expected 2 accepted links, got %d", len(accepted))
	}

	acceptedURLs := make(map[string]bool)
	for _, c := range accepted {
		acceptedURLs[c.URL] = true
	}

	// Every accepted candidate contains a keyword; every rejected one none.
	for _, c := range sampleLinks() {
		name := strings.ToLower(naming.Derive(c.URL, c.AnchorText))
		text := strings.ToLower(c.AnchorText)
		contains := false
		for _, k := range []string{"report", "minutes"} {
			if strings.Contains(name, k) || strings.Contains(text, k) {
				contains = true
			}
		}
		if contains != acceptedURLs[c.URL] {
			t.Errorf("candidate %q: keyword match %v but accepted %v", c.URL, contains, acceptedURLs[c.URL])
		}
	}
}

func TestClassifyCustomKeywordsEmptySet(t *testing.T) {
	t.Parallel()

	got := Classify(sampleLinks(), model.CustomKeywordsPolicy())
	if len(got) != 0 {
		t.Errorf("expected no accepted links with empty keyword set, got %d", len(got))
	}
}

func TestClassifyAllowAll(t *testing.T) {
	t.Parallel()

	got := Classify(sampleLinks(), model.AllowAllPolicy())
	if len(got) != 10 {
		t.Errorf("expected 10 accepted links, got %d", len(got))
	}
}

func TestClassifyDeduplicates(t *testing.T) {
	t.Parallel()

	links := []model.CandidateLink{
		link("HTTPS://Example.COM/Files/Table.pdf#page=2", "first"),
		link("https://example.com/Files/Table.pdf", "second"),
		link("https://example.com/files/table.pdf", "different path case"),
	}

	got := Classify(links, model.AllowAllPolicy())
	if len(got) != 2 {
		t.Fatalf("expected 2 links after dedup, got %d", len(got))
	}
	if got[0].AnchorText != "first" {
		t.Errorf("expected first-seen anchor text to win, got %q", got[0].AnchorText)
	}
	if got[1].AnchorText != "different path case" {
		t.Errorf("expected path case to be preserved in key, got %q", got[1].AnchorText)
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"HTTP://EXAMPLE.com/A.pdf", "http://example.com/A.pdf"},
		{"https://example.com/a.pdf#frag", "https://example.com/a.pdf"},
		{"  https://example.com/a.pdf?x=1  ", "https://example.com/a.pdf?x=1"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeURL(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestChartPrefixesReturnsCopy(t *testing.T) {
	t.Parallel()

	p := ChartPrefixes()
	p[0] = "changed"
	if ChartPrefixes()[0] != "圖" {
		t.Error("expected ChartPrefixes to return a copy")
	}
}
