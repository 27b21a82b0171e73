package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFilterMode is returned by ParseFilterMode for unrecognized input.
var ErrUnknownFilterMode = errors.New("unknown filter mode: expected chart_prefix, custom_keywords or all")

// FilterMode selects which FilterPolicy variant is active for a crawl.
type FilterMode int

const (
	// FilterChartPrefix accepts links whose filename or anchor text starts
	// with one of the chart prefix tokens (圖, 表, figure, table).
	FilterChartPrefix FilterMode = iota

	// FilterCustomKeywords accepts links whose filename or anchor text
	// contains any configured keyword.
	FilterCustomKeywords

	// FilterAllowAll accepts every link.
	FilterAllowAll
)

// String returns the configuration name of the mode.
func (m FilterMode) String() string {
	switch m {
	case FilterChartPrefix:
		return "chart_prefix"
	case FilterCustomKeywords:
		return "custom_keywords"
	case FilterAllowAll:
		return "all"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m FilterMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so the mode can be read
// directly from YAML and JSON.
func (m *FilterMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFilterMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseFilterMode parses a filter mode name. The numeric menu choices
// "1", "2" and "3" are accepted as aliases.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chart_prefix", "chart", "prefix", "1":
		return FilterChartPrefix, nil
	case "custom_keywords", "keywords", "keyword", "2":
		return FilterCustomKeywords, nil
	case "all", "allow_all", "3":
		return FilterAllowAll, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFilterMode, s)
	}
}

// FilterPolicy decides which candidate links become download targets.
// Exactly one policy is active per crawl. It holds no state beyond its
// configuration.
type FilterPolicy struct {
	// Mode is the active variant.
	Mode FilterMode `json:"mode"`

	// Keywords is only used by FilterCustomKeywords.
	Keywords []string `json:"keywords,omitempty"`
}

// ChartPrefixPolicy returns the ChartPrefix variant.
func ChartPrefixPolicy() FilterPolicy {
	return FilterPolicy{Mode: FilterChartPrefix}
}

// CustomKeywordsPolicy returns the CustomKeywords variant for the given keywords.
// Empty keywords are dropped.
func CustomKeywordsPolicy(keywords ...string) FilterPolicy {
	kept := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	return FilterPolicy{Mode: FilterCustomKeywords, Keywords: kept}
}

// AllowAllPolicy returns the AllowAll variant.
func AllowAllPolicy() FilterPolicy {
	return FilterPolicy{Mode: FilterAllowAll}
}
