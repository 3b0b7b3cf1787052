// Package partner is the Altrac API client.
//
// A Client owns one tenant's credentials and bearer token. Construction is
// synchronous (New); Connect additionally runs the auth exchange so callers get
// a client that is ready to issue requests.
package partner

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-retryablehttp"
	apperrors "github.com/jrsteele09/zonesync/internal/errors"
	"github.com/jrsteele09/zonesync/keystore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIHost    = "https://stage.altrac-api.com"
	DefaultAPIVersion = "2018.11.30"

	// TokenValidity is how long a partner bearer token is trusted after issue.
	TokenValidity = 24 * time.Hour

	ClientHeader = "X-Altrac-Client"
)

var validate = validator.New()

// Credentials identify one tenant against the partner API.
// ClientID and SecretKey are plaintext and must never be logged.
type Credentials struct {
	APIHost    string `validate:"required,url"`
	APIPort    int    `validate:"gte=0,lte=65535"`
	APIVersion string `validate:"required"`
	ClientID   string `validate:"required"`
	SecretKey  string `validate:"required"`
}

type Client struct {
	creds           Credentials
	clientSignature string

	keys         *keystore.Store
	httpClient   *retryablehttp.Client
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
	log          zerolog.Logger
	nowFunc      func() time.Time

	mu         sync.RWMutex
	token      *oauth2.Token // nil while unauthenticated
	customerID string
}

// New validates creds and prepares an unauthenticated client. Missing
// credentials fail fast with ErrMissingCredentials.
func New(creds Credentials, options ...ClientOption) (*Client, error) {
	if creds.APIHost == "" {
		creds.APIHost = DefaultAPIHost
	}
	if creds.APIVersion == "" {
		creds.APIVersion = DefaultAPIVersion
	}
	creds.APIHost = strings.TrimRight(creds.APIHost, "/")

	if err := validate.Struct(creds); err != nil {
		if creds.ClientID == "" || creds.SecretKey == "" {
			return nil, apperrors.Mark(apperrors.ErrMissingCredentials, err)
		}
		return nil, apperrors.Mark(apperrors.ErrInvalidRequest, err)
	}

	c := &Client{
		creds:           creds,
		clientSignature: Sign(creds.ClientID, creds.SecretKey),
		retryMax:        defaultRetryMax,
		log:             log.Logger,
	}

	for _, opt := range options {
		opt(c)
	}

	if c.keys == nil {
		c.keys = keystore.New()
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(c.retryMax, c.log)
		if c.retryWaitMin > 0 {
			c.httpClient.RetryWaitMin = c.retryWaitMin
		}
		if c.retryWaitMax > 0 {
			c.httpClient.RetryWaitMax = c.retryWaitMax
		}
	}
	return c, nil
}

// Connect builds a client and authenticates it.
func Connect(ctx context.Context, creds Credentials, options ...ClientOption) (*Client, error) {
	c, err := New(creds, options...)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Sign returns base64(HMAC-SHA256(key=secretKey, msg=clientID)).
func Sign(clientID, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// IsAuthenticated reports whether the current token is still inside its validity window.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil && c.nowFunc().Before(c.token.Expiry)
}

// TokenExpiresAt returns the token expiry, or the Unix epoch when no token was ever issued.
func (c *Client) TokenExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return time.Unix(0, 0)
	}
	return c.token.Expiry
}

// CustomerID is the partner customer id returned by the last successful auth.
func (c *Client) CustomerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.customerID
}

func (c *Client) ClientID() string {
	return c.creds.ClientID
}

// ClientSignature is the HMAC lookup value some partner deployments expect.
func (c *Client) ClientSignature() string {
	return c.clientSignature
}

func (c *Client) baseURL() string {
	if c.creds.APIPort > 0 {
		return fmt.Sprintf("%s:%d", c.creds.APIHost, c.creds.APIPort)
	}
	return c.creds.APIHost
}

func (c *Client) currentToken() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// invalidate drops the token so the next request re-authenticates.
func (c *Client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}
