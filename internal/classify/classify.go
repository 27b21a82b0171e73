// Package classify decides which discovered links become download targets.
//
// Classification is pure: it performs no network or filesystem access and
// keeps no state between calls.
package classify

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/naming"
)

// chartPrefixes is the fixed token set used by the ChartPrefix policy.
// Tokens are stored case-folded.
var chartPrefixes = []string{"圖", "表", "figure", "table"}

// ChartPrefixes returns a copy of the ChartPrefix token set.
func ChartPrefixes() []string {
	out := make([]string, len(chartPrefixes))
	copy(out, chartPrefixes)
	return out
}

// Classify returns the accepted subset of candidates under policy. Order is
// preserved and candidates whose normalized URL was already seen are dropped,
// so the first-seen anchor text wins.
func Classify(candidates []model.CandidateLink, policy model.FilterPolicy) []model.CandidateLink {
	keywords := foldAll(policy.Keywords)

	accepted := make([]model.CandidateLink, 0)
	for _, c := range Dedup(candidates) {
		if accepts(c, policy.Mode, keywords) {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

func accepts(c model.CandidateLink, mode model.FilterMode, foldedKeywords []string) bool {
	switch mode {
	case model.FilterAllowAll:
		return true
	case model.FilterChartPrefix:
		return hasChartPrefix(fold(naming.Derive(c.URL, c.AnchorText))) ||
			hasChartPrefix(fold(c.AnchorText))
	case model.FilterCustomKeywords:
		name := fold(naming.Derive(c.URL, c.AnchorText))
		text := fold(c.AnchorText)
		for _, k := range foldedKeywords {
			if strings.Contains(name, k) || strings.Contains(text, k) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func hasChartPrefix(s string) bool {
	for _, p := range chartPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Dedup removes candidates whose normalized URL was already seen, keeping
// the first occurrence.
func Dedup(candidates []model.CandidateLink) []model.CandidateLink {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.CandidateLink, 0, len(candidates))
	for _, c := range candidates {
		key := NormalizeURL(c.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// NormalizeURL returns the deduplication key for raw: scheme and host are
// lower-cased, the fragment is stripped and the path keeps its case.
// Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// fold trims and case-folds s. A new Caser is created per call because
// Casers are not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func foldAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if f := fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}
