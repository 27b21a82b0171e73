// Package render loads web pages and extracts PDF candidates from them.
//
// A Renderer returns a Snapshot of a page: the DOM, the PDF links found in
// it, click triggers for elements that only reveal a document when clicked,
// and same-site pages that may be walked. Two production renderers exist:
//
//   - Static fetches HTML over HTTP and parses it. It cannot click.
//   - Browser drives headless Chromium through go-rod, so links created by
//     JavaScript are seen and triggers can be resolved by clicking.
//
// Fake is a deterministic in-memory Renderer for tests.
//
// # Discovery rules
//
// An element yields a candidate when it is
//   - an anchor whose href contains ".pdf" or whose text mentions PDF
//   - an embed, iframe or object whose source contains ".pdf"
//   - an element with an onclick handler whose script names a .pdf URL
//
// A button, an element with role=button, or an onclick element whose text
// mentions PDF but exposes no URL becomes a Trigger addressed by a CSS
// selector. Extra selectors configured by the user are evaluated with
// goquery and always yield candidates.
//
// Walker follows same-site links breadth-first to collect candidates from
// sub-pages.
package render
