// Package main provides the entry point for the linkwalk CLI.
//
// linkwalk crawls a website from a seed URL, stays on the seed's origin,
// and records the HTTP status and response time of every page it reaches.
//
// Usage:
//
//	linkwalk crawl https://example.com
//	linkwalk history example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
