package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/nao1215/pdfharvest/internal/model"
)

// linkAttrs are the attributes checked, in order, on elements matched by a
// user selector.
var linkAttrs = []string{"href", "src", "data", "data-href", "data-url", "data-src"}

// ValidateSelector reports whether sel is a valid CSS selector group.
func ValidateSelector(sel string) error {
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSelector, sel, err)
	}
	return nil
}

// SelectLinks evaluates selectors against dom and returns one candidate
// per matched element that carries a URL. Matches are not required to look
// like PDFs; the user asked for them explicitly.
func SelectLinks(dom, pageURL string, selectors []string) ([]model.CandidateLink, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(dom))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOM: %w", err)
	}

	links := make([]model.CandidateLink, 0)
	for _, sel := range selectors {
		if err := ValidateSelector(sel); err != nil {
			return nil, err
		}
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range linkAttrs {
				v, ok := s.Attr(attr)
				if !ok || strings.TrimSpace(v) == "" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(v))
				if err != nil {
					return
				}
				resolved := base.ResolveReference(ref)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					return
				}
				text := strings.Join(strings.Fields(s.Text()), " ")
				if text == "" {
					text = strings.TrimSpace(s.AttrOr("title", ""))
				}
				links = append(links, model.CandidateLink{
					URL:        resolved.String(),
					AnchorText: text,
					SourcePage: pageURL,
				})
				return
			}
		})
	}

	return links, nil
}
