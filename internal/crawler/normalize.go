package crawler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidSeed is returned when the seed cannot be used as a crawl root.
var ErrInvalidSeed = errors.New("invalid seed URL")

// Normalizer turns hrefs into canonical absolute URLs and applies the
// same-origin policy of one crawl. It holds no mutable state and is safe for
// concurrent use.
//
// Canonical form: lowercase scheme and host, no default port, no fragment,
// no userinfo, "/" for an empty path, and no trailing slash on any other
// path. Two URLs name the same page iff their canonical strings are equal.
//
// The trailing slash only matters for identity. Relative references resolve
// against the URL as written, so "intro" on "/docs/" is "/docs/intro".
type Normalizer struct {
	base            *url.URL
	root            *url.URL
	allowSubdomains bool
	baseLabels      []string
	user            *url.Userinfo
}

// NewNormalizer builds a Normalizer rooted at seed. A seed without a scheme
// is taken as https. With allowSubdomains, hosts that share a registrable
// label with the seed (e.g. docs.example.com for example.com) are in scope.
func NewNormalizer(seed string, allowSubdomains bool) (*Normalizer, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}
	u, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	user := u.User
	if !clean(u) {
		return nil, fmt.Errorf("%w: %q needs an http or https scheme and a host", ErrInvalidSeed, seed)
	}
	base := *u
	stripTrailingSlash(&base)
	return &Normalizer{
		base:            &base,
		root:            u,
		allowSubdomains: allowSubdomains,
		baseLabels:      innerLabels(u.Hostname()),
		user:            user,
	}, nil
}

// Seed returns the canonical seed URL.
func (n *Normalizer) Seed() string {
	return n.base.String()
}

// SeedLink returns the seed as a frontier link.
func (n *Normalizer) SeedLink() Link {
	return Link{URL: n.base.String(), Target: n.root.String()}
}

// Host returns the seed authority (host plus non-default port).
func (n *Normalizer) Host() string {
	return n.base.Host
}

// Credentials returns the userinfo that was embedded in the seed, if any.
// Canonical URLs never carry it, so callers must send it separately.
func (n *Normalizer) Credentials() (username, password string, ok bool) {
	if n.user == nil {
		return "", "", false
	}
	password, _ = n.user.Password()
	return n.user.Username(), password, true
}

// Link is a discovered URL. URL is its canonical form and the frontier key;
// Target is the same address with its trailing slash kept, which is what
// gets requested.
type Link struct {
	URL    string
	Target string
}

// Normalize resolves rawHref against the seed.
func (n *Normalizer) Normalize(rawHref string) (string, bool) {
	return n.NormalizeFrom(n.root, rawHref)
}

// NormalizeFrom resolves rawHref against page, the document it was found in,
// and returns the canonical result. It reports false for empty hrefs, pure
// fragments, unparsable input, non-http(s) targets, other origins, and
// references back to page itself.
func (n *Normalizer) NormalizeFrom(page *url.URL, rawHref string) (string, bool) {
	link, ok := n.Resolve(page, rawHref)
	return link.URL, ok
}

// Resolve is NormalizeFrom returning both the canonical URL and the
// request target. page must be the address the document was served from,
// trailing slash included.
func (n *Normalizer) Resolve(page *url.URL, rawHref string) (Link, bool) {
	href := strings.TrimSpace(rawHref)
	if href == "" || strings.HasPrefix(href, "#") {
		return Link{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return Link{}, false
	}

	u := page.ResolveReference(ref)
	if !clean(u) || !n.inScope(u) {
		return Link{}, false
	}
	target := u.String()
	stripTrailingSlash(u)

	self := *page
	if canonicalize(&self) && self.String() == u.String() {
		return Link{}, false
	}
	return Link{URL: u.String(), Target: target}, true
}

// InScope reports whether u belongs to the crawl's origin.
func (n *Normalizer) InScope(u *url.URL) bool {
	c := *u
	return clean(&c) && n.inScope(&c)
}

// Canonical returns the canonical form of an absolute http(s) URL.
func Canonical(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !canonicalize(u) {
		return "", false
	}
	return u.String(), true
}

func (n *Normalizer) inScope(u *url.URL) bool {
	if u.Host == n.base.Host {
		return true
	}
	if !n.allowSubdomains {
		return false
	}
	other := innerLabels(u.Hostname())
	return slices.ContainsFunc(other, func(l string) bool {
		return slices.Contains(n.baseLabels, l)
	})
}

// canonicalize rewrites u in place and reports whether it is a usable
// http(s) URL.
func canonicalize(u *url.URL) bool {
	if !clean(u) {
		return false
	}
	stripTrailingSlash(u)
	return true
}

// clean applies every canonical rule except the trailing slash one.
func clean(u *url.URL) bool {
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Opaque != "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return true
}

func stripTrailingSlash(u *url.URL) {
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
		if u.Path == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}
}

// innerLabels returns the labels of host that can tie it to a sibling:
// the public suffix is dropped from the right and, when more than one label
// remains, the leftmost one is dropped too. "docs.example.co.uk" yields
// ["example"]; "example.com" yields ["example"]; IP addresses and bare
// suffixes yield nothing.
func innerLabels(host string) []string {
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == host {
		return nil
	}
	labels := strings.Split(strings.TrimSuffix(host, "."+suffix), ".")
	if len(labels) > 1 {
		labels = labels[1:]
	}
	return labels
}
