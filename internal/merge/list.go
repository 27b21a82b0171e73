package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// ListPDFs returns the PDF files directly inside dir, excluding exclude and
// hidden files. Matching on the ".pdf" extension is case-insensitive. When
// keywords are given, only names containing at least one of them
// (case-insensitive) are returned.
func ListPDFs(dir, exclude string, keywords ...string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open merge directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge directory: %w", err)
	}

	folder := cases.Fold()
	excludeBase := folder.String(filepath.Base(exclude))
	folded := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			folded = append(folded, folder.String(k))
		}
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		key := folder.String(name)
		if exclude != "" && key == excludeBase {
			continue
		}
		if len(folded) > 0 && !containsAny(key, folded) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	return paths, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
