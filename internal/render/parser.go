package render

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/pdfharvest/internal/model"
)

// Parser extracts PDF candidates, click triggers and same-site page links
// from an HTML document.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains everything extracted from one page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Links are PDF candidates in document order. Duplicates are kept;
	// the classifier removes them.
	Links []model.CandidateLink

	// Triggers are elements that must be clicked to reveal a document.
	Triggers []model.Trigger

	// Pages are unique same-host links that are not PDF candidates.
	Pages []string
}

var (
	// scriptPDFURL finds a quoted .pdf URL inside an inline script.
	scriptPDFURL = regexp.MustCompile(`(?i)['"]([^'"]+?\.pdf(?:[?#][^'"]*)?)['"]`)

	// cssIdent matches ids usable in a #id selector without escaping.
	cssIdent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
)

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts candidates.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:    make([]model.CandidateLink, 0),
		Triggers: make([]model.Trigger, 0),
		Pages:    make([]string, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && p.processElement(n, result) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles one element. It returns true when the element's
// subtree has been consumed and must not be walked.
func (p *Parser) processElement(n *html.Node, result *ParseResult) bool {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}
		return true

	case "a":
		return p.processAnchor(n, result)

	case "embed", "iframe":
		p.addSource(n, getAttr(n, "src"), result)
		return false

	case "object":
		p.addSource(n, getAttr(n, "data"), result)
		return false

	case "script", "style", "noscript":
		return true
	}

	if !isClickable(n) {
		return false
	}
	text := elementText(n)
	if link := p.scriptLink(n); link != "" {
		result.Links = append(result.Links, p.candidate(link, text))
		return true
	}
	if !mentionsPDF(text) {
		return false
	}
	result.Triggers = append(result.Triggers, model.Trigger{
		Selector:   cssPath(n),
		Text:       text,
		SourcePage: p.baseURL.String(),
	})
	return true
}

func (p *Parser) processAnchor(n *html.Node, result *ParseResult) bool {
	text := elementText(n)
	if text == "" {
		text = firstNonEmpty(getAttr(n, "title"), getAttr(n, "aria-label"), getAttr(n, "download"))
	}

	if link := p.scriptLink(n); link != "" {
		result.Links = append(result.Links, p.candidate(link, text))
		return true
	}

	href := strings.TrimSpace(getAttr(n, "href"))
	resolved := p.resolveURL(href)
	if resolved == "" {
		// javascript: links and bare fragments only act when clicked.
		if mentionsPDF(text) && (href == "" || href == "#" || isScriptHref(href) || getAttr(n, "onclick") != "") {
			result.Triggers = append(result.Triggers, model.Trigger{
				Selector:   cssPath(n),
				Text:       text,
				SourcePage: p.baseURL.String(),
			})
		}
		return true
	}

	if isPDFHref(resolved) || mentionsPDF(text) {
		result.Links = append(result.Links, p.candidate(resolved, text))
		return true
	}

	if p.isSameSite(resolved) && !slices.Contains(result.Pages, resolved) {
		result.Pages = append(result.Pages, resolved)
	}
	return true
}

func (p *Parser) addSource(n *html.Node, src string, result *ParseResult) {
	resolved := p.resolveURL(src)
	if resolved == "" || !isPDFHref(resolved) {
		return
	}
	text := firstNonEmpty(getAttr(n, "title"), getAttr(n, "aria-label"), getAttr(n, "name"))
	result.Links = append(result.Links, p.candidate(resolved, text))
}

// scriptLink returns the resolved .pdf URL named in the element's onclick
// handler, if any.
func (p *Parser) scriptLink(n *html.Node) string {
	script := getAttr(n, "onclick")
	if script == "" {
		return ""
	}
	m := scriptPDFURL.FindStringSubmatch(script)
	if m == nil {
		return ""
	}
	return p.resolveURL(m[1])
}

func (p *Parser) candidate(link, text string) model.CandidateLink {
	return model.CandidateLink{
		URL:        link,
		AnchorText: text,
		SourcePage: p.baseURL.String(),
	}
}

// resolveURL resolves a relative URL against the base URL. Non-navigable
// references (javascript:, mailto:, tel:, data:, bare fragments) yield "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || isScriptHref(href) {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func (p *Parser) isSameSite(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, p.baseURL.Host)
}

func isScriptHref(href string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:")
}

// isPDFHref reports whether the URL mentions a .pdf file anywhere, which
// covers query-style endpoints such as /get?file=a.pdf.
func isPDFHref(link string) bool {
	return strings.Contains(strings.ToLower(link), ".pdf")
}

func mentionsPDF(text string) bool {
	return strings.Contains(strings.ToUpper(text), "PDF")
}

func isClickable(n *html.Node) bool {
	if n.Data == "button" {
		return true
	}
	if n.Data == "input" {
		t := strings.ToLower(getAttr(n, "type"))
		return t == "button" || t == "submit"
	}
	return getAttr(n, "onclick") != "" || strings.EqualFold(getAttr(n, "role"), "button")
}

// elementText returns the element's visible text with whitespace collapsed.
// Input buttons carry their label in the value attribute.
func elementText(n *html.Node) string {
	if n.Data == "input" {
		return strings.Join(strings.Fields(getAttr(n, "value")), " ")
	}

	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		case html.ElementNode:
			if c.Data == "script" || c.Data == "style" {
				return
			}
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			collect(cc)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// cssPath builds a selector that addresses n uniquely, anchored at the
// nearest ancestor with a usable id.
func cssPath(n *html.Node) string {
	parts := make([]string, 0, 8)
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if id := getAttr(cur, "id"); cssIdent.MatchString(id) {
			parts = append(parts, "#"+id)
			break
		}
		idx := 1
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == cur.Data {
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", cur.Data, idx))
	}
	slices.Reverse(parts)
	return strings.Join(parts, " > ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
