package config

import (
	"maps"
	"net"
	"net/url"
	"strings"
)

// SiteConfig holds settings that apply to a single host.
type SiteConfig struct {
	// Cookie is sent with every request to the host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Selectors are extra CSS selectors evaluated on this host's pages.
	Selectors []string `yaml:"selectors,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over Defaults.
// Host lookup is case-insensitive and ignores a port.
func (c *Config) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Cookie:    c.Defaults.Cookie,
		Headers:   maps.Clone(c.Defaults.Headers),
		Selectors: c.Defaults.Selectors,
	}

	site, ok := c.lookupSite(host)
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.Selectors) > 0 {
		result.Selectors = site.Selectors
	}
	return result
}

func (c *Config) lookupSite(host string) (SiteConfig, bool) {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for key, site := range c.Sites {
		if strings.ToLower(key) == host {
			return site, true
		}
	}
	return SiteConfig{}, false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
