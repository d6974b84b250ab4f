package dataexplorer

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/soprofile/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a Data Explorer instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCookie sets the session cookie sent with every request. It is fixed
// for the lifetime of the client.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout bounds each request,
// including polls that outlive a cancellation.
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
