package guide

import "net/http"

var (
	ParseTimestamp = parseTimestamp
	ParseDuration  = parseDuration
)

// WithHTTPClient sets the HTTP client used to query the guide API.
func WithHTTPClient(c *http.Client) Options {
	return func(o *options) {
		o.httpClient = c
	}
}
