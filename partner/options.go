package partner

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jrsteele09/zonesync/keystore"
	"github.com/rs/zerolog"
)

type ClientOption func(*Client)

// WithKeystore shares a key registry between clients. Without it each client
// gets a private store.
func WithKeystore(ks *keystore.Store) ClientOption {
	return func(c *Client) {
		c.keys = ks
	}
}

// WithHTTPClient replaces the default retrying transport.
func WithHTTPClient(httpClient *retryablehttp.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryMax sets the retry budget of the default transport.
func WithRetryMax(retryMax int) ClientOption {
	return func(c *Client) {
		c.retryMax = retryMax
	}
}

// WithRetryWait sets the backoff bounds of the default transport.
func WithRetryWait(minWait, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.retryWaitMin = minWait
		c.retryWaitMax = maxWait
	}
}

// WithTimeout bounds every partner call, retries included.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger
	}
}

func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}
