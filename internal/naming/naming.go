// Package naming derives deterministic, filesystem-safe file names for
// downloaded documents and keeps them unique within a run.
package naming

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxStemLength caps the file name without its extension, in runes.
	MaxStemLength = 200

	// DefaultName is used when neither the URL nor the anchor text yields a name.
	DefaultName = "document.pdf"

	pdfExt = ".pdf"
)

// queryNameKeys are query parameters that commonly carry the file name of
// download endpoints such as /download?file=report.pdf.
var queryNameKeys = []string{"file", "filename", "name"}

// scriptExts are extensions of server-side endpoints. A last path segment
// ending in one of these names the handler, not the document.
var scriptExts = map[string]bool{
	".php": true, ".asp": true, ".aspx": true, ".jsp": true,
	".cgi": true, ".html": true, ".htm": true, ".do": true, ".action": true,
}

var (
	illegalChars = regexp.MustCompile(`[<>:"|?*\\/\x00-\x1f\x7f]`)
	spaceRuns    = regexp.MustCompile(`[\s_]+`)
	dotRuns      = regexp.MustCompile(`\.{2,}`)
	plausibleExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)
)

// Derive returns the file name for a document at rawURL with the given
// anchor text. The result always ends in ".pdf" and is safe to use as a
// single path element.
//
// The name is taken from the first source that yields one:
//  1. the URL's last path segment, if it looks like a file name
//  2. the file, filename or name query parameter
//  3. the anchor text
func Derive(rawURL, anchorText string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err == nil {
		if name := fromPath(u); name != "" {
			return ensurePDF(name)
		}
		if name := fromQuery(u); name != "" {
			return ensurePDF(name)
		}
	}

	if name := Sanitize(anchorText); name != "" {
		return ensurePDF(name)
	}

	return DefaultName
}

// fromPath returns the sanitized last path segment when it is plausibly a
// file name.
func fromPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}

	segment := path.Base(p)
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}

	ext := strings.ToLower(path.Ext(segment))
	if !plausibleExt.MatchString(ext) || scriptExts[ext] {
		return ""
	}

	return Sanitize(segment)
}

// fromQuery returns the first non-empty name-bearing query parameter.
func fromQuery(u *url.URL) string {
	q := u.Query()
	for _, key := range queryNameKeys {
		if v := Sanitize(path.Base(q.Get(key))); v != "" && v != "." {
			return v
		}
	}
	return ""
}

// Sanitize makes name safe to use as a file name. Illegal characters become
// underscores, whitespace and underscore runs collapse to one underscore,
// dot runs collapse to one dot, and the stem is capped at MaxStemLength runes.
// It returns "" when nothing usable remains.
func Sanitize(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = illegalChars.ReplaceAllString(name, "_")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	name = spaceRuns.ReplaceAllString(name, "_")
	name = dotRuns.ReplaceAllString(name, ".")
	name = strings.Trim(name, "_.")
	if name == "" {
		return ""
	}

	ext := filepath.Ext(name)
	if !plausibleExt.MatchString(ext) {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	if utf8.RuneCountInString(stem) > MaxStemLength {
		stem = strings.TrimRight(string([]rune(stem)[:MaxStemLength]), "_.")
	}
	if stem == "" {
		return ""
	}

	return stem + ext
}

// ensurePDF appends the .pdf extension unless already present.
func ensurePDF(name string) string {
	if strings.EqualFold(filepath.Ext(name), pdfExt) {
		return name
	}
	return name + pdfExt
}

// Claimer hands out target paths that are pairwise distinct within a run.
// It is safe for concurrent use.
type Claimer struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewClaimer creates an empty claim set.
func NewClaimer() *Claimer {
	return &Claimer{claimed: make(map[string]struct{})}
}

// Claim reserves name inside dir and returns the full path. If the name is
// already claimed, a numeric suffix -2, -3, ... is inserted before the
// extension. Names are compared case-insensitively so the result is also
// unique on case-insensitive filesystems.
func (c *Claimer) Claim(dir, name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 2; ; n++ {
		full := filepath.Join(dir, candidate)
		key := strings.ToLower(full)
		if _, taken := c.claimed[key]; !taken {
			c.claimed[key] = struct{}{}
			return full
		}
		candidate = stem + "-" + strconv.Itoa(n) + ext
	}
}

// Claimed reports whether path has been handed out.
func (c *Claimer) Claimed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.claimed[strings.ToLower(path)]
	return ok
}

// Len returns the number of claimed paths.
func (c *Claimer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claimed)
}
