package config

import "maps"

// BasicAuth is a static HTTP Basic credential pair.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SiteConfig holds per-host settings from the configuration file.
type SiteConfig struct {
	// Cookie is sent with every request, e.g. "session=abc; theme=dark".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// BasicAuth sends HTTP Basic credentials with every request.
	BasicAuth *BasicAuth `yaml:"basicAuth,omitempty"`

	// Depth overrides the link depth limit. Zero keeps the global value.
	Depth int `yaml:"depth,omitempty"`

	// Workers overrides the worker pool size. Zero keeps the global value.
	Workers int `yaml:"workers,omitempty"`

	// Delay overrides the per-worker pause between fetches.
	Delay Duration `yaml:"delay,omitempty"`

	// Subdomains allows hosts sharing a label with the seed.
	Subdomains bool `yaml:"subdomains,omitempty"`

	// Exclude drops hrefs containing any of these substrings.
	Exclude []string `yaml:"exclude,omitempty"`

	// IgnorePatterns are glob patterns on the URL path that are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict crawling to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .linkwalk configuration file.
type File struct {
	// Sites maps a hostname (without scheme, e.g. "example.com") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless the site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host, merged over the defaults.
// The returned value never aliases maps or slices owned by the File.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.Exclude = append([]string(nil), cf.Defaults.Exclude...)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.BasicAuth != nil {
		result.BasicAuth = site.BasicAuth
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if site.Workers != 0 {
		result.Workers = site.Workers
	}
	if !site.Delay.IsZero() {
		result.Delay = site.Delay
	}
	if site.Subdomains {
		result.Subdomains = true
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	// Site exclusions add to the defaults rather than replacing them.
	result.Exclude = append(result.Exclude, site.Exclude...)
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}
