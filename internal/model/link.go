package model

// CandidateLink is a discovered (URL, anchor text) pair on a source page.
// It is produced once per discovered link and never mutated afterwards.
type CandidateLink struct {
	// URL is the absolute URL of the linked document.
	URL string `json:"url"`

	// AnchorText is the visible text of the element that referenced URL.
	// It may be empty for links found in embed or iframe elements.
	AnchorText string `json:"anchor_text"`

	// SourcePage is the absolute URL of the page the link was found on.
	SourcePage string `json:"source_page"`
}

// Trigger is an opaque handle for an element that does not expose a URL
// directly (a button or a script-driven element). It must be resolved to a
// URL by the page renderer before it can become a CandidateLink.
type Trigger struct {
	// Selector is a CSS selector that uniquely addresses the element on
	// SourcePage.
	Selector string `json:"selector"`

	// Text is the element's visible text, used as anchor text once the
	// trigger is resolved.
	Text string `json:"text"`

	// SourcePage is the page that contains the element.
	SourcePage string `json:"source_page"`
}

// Resolve turns the trigger into a CandidateLink pointing at url.
func (t Trigger) Resolve(url string) CandidateLink {
	return CandidateLink{
		URL:        url,
		AnchorText: t.Text,
		SourcePage: t.SourcePage,
	}
}
