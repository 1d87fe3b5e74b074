// Package main provides the entry point for the pageaudit CLI.
//
// pageaudit fetches web pages, scores their SEO, content and structure,
// and keeps every audit in a local history so results can be compared
// and summarized over time.
//
// Usage:
//
//	pageaudit audit <url>
//	pageaudit batch --file urls.txt
//	pageaudit serve
//
// See --help for all available options.
package main

// main is the entry point for pageaudit.
func main() {
	Execute()
}
