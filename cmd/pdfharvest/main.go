// Package main provides the entry point for the pdfharvest CLI.
//
// pdfharvest discovers PDF links on web pages, downloads the ones accepted
// by a filter policy concurrently with retries, and can merge the results
// into a single document.
//
// Usage:
//
//	pdfharvest crawl <page-url>
//	pdfharvest merge <dir>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
