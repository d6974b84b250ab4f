package stackexchange

import (
	"net/http"
	"strings"

	"github.com/okian/soprofile/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root, e.g. https://api.stackexchange.com/2.3.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithSite sets the Stack Exchange site parameter.
func WithSite(site string) Option {
	return func(c *Client) {
		if site != "" {
			c.site = site
		}
	}
}

// WithKey sets the API key, which raises the request quota.
func WithKey(key string) Option {
	return func(c *Client) {
		c.key = key
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
