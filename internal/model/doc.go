// Package model defines the data shared by the crawler, the reports and the
// history database:
//   - FetchResult: what happened when one URL was fetched
//   - CrawlReport: every FetchResult of one crawl, plus its bounds
//   - Summary: counts and latency figures derived from a CrawlReport
//
// The types live in their own package so that crawler, report and database
// can all use them without import cycles.
package model
