// Package report renders crawl reports.
//
// Writers produce the CSV export, a JSON document, a Markdown summary and a
// plain-text summary from a *model.CrawlReport. Progress prints one
// colorized line per fetch while a crawl runs, and the diff writers render a
// comparison of two stored runs.
package report
