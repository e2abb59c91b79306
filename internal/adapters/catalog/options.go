package catalog

import (
	"net/http"

	"github.com/okian/gachasim/pkg/logger"
)

// Option applies a configuration option to the Catalog.
type Option func(*Catalog)

// WithLogger sets a custom logger for the catalog.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient sets the client used by Fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) {
		if client != nil {
			c.client = client
		}
	}
}
