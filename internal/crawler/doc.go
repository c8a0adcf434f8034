// Package crawler implements the same-origin crawl engine.
//
// # Components
//
//   - Normalizer: resolves hrefs to canonical absolute URLs and applies the
//     same-origin policy
//   - LinkExtractor: selects a[href] values from an HTML document
//   - HTTPFetcher: HEAD probe plus GET with separate connect and read budgets
//   - Frontier: the pending, in-flight and visited sets of one crawl
//   - Spider: a fixed worker pool driving the Frontier to its fixed point
//
// # Lifecycle
//
// A crawl moves from idle to running when the seed is offered, to draining
// when a worker finds nothing pending and nothing in flight, and to done once
// that state has held for one more idle tick and every worker has exited.
// Every URL is fetched at most once; failures are recorded as results and
// never stop the crawl.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(client, crawler.WithReadTimeout(10*time.Second))
//	spider := crawler.NewSpider(fetcher, crawler.NewLinkExtractor("/admin"),
//	    crawler.WithWorkers(4), crawler.WithDelay(time.Second))
//	report, err := spider.Crawl(ctx, "https://example.com")
package crawler
