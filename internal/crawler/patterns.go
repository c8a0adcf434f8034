package crawler

import (
	"net/url"
	"path"
	"strings"
)

// pathFilter decides from the URL path whether a same-origin URL is crawled.
// Ignore patterns win over follow patterns; with no follow patterns every
// path that is not ignored is followed.
type pathFilter struct {
	ignore []string
	follow []string
}

func (p pathFilter) allows(rawURL string) bool {
	if len(p.ignore) == 0 && len(p.follow) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	urlPath := u.Path
	if urlPath == "" {
		urlPath = "/"
	}

	for _, pattern := range p.ignore {
		if matchPattern(pattern, urlPath) {
			return false
		}
	}
	if len(p.follow) == 0 {
		return true
	}
	for _, pattern := range p.follow {
		if matchPattern(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchPattern matches a URL path against a glob. Besides path.Match syntax
// it understands two shorthands:
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches the extension at any depth
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && strings.HasSuffix(urlPath, "."+ext) {
		return true
	}
	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}
	// A pattern without a slash is tried against the last segment alone.
	if !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(urlPath))
		return err == nil && matched
	}
	return false
}
