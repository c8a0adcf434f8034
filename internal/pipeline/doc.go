// Package pipeline runs a crawl through a fixed sequence of steps.
//
// A typical pipeline crawls a seed, saves the run to the history database
// and exports the report. Steps share one *model.CrawlReport. When the
// context is cancelled the remaining steps are skipped, except those that
// must still handle partial results, such as persisting and exporting.
//
// BatchProcessor runs one fresh pipeline per seed with bounded concurrency.
package pipeline
