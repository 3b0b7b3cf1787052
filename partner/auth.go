package partner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-retryablehttp"
	apperrors "github.com/jrsteele09/zonesync/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const authPath = "auth"

var errNoToken = errors.New("auth response carried no token")

type authResponse struct {
	Token      string          `json:"token"`
	CustomerID json.RawMessage `json:"customer_id"`
}

// Authenticate exchanges an encrypted client token for a partner bearer token.
// On any failure the client stays in its previous state and the error wraps
// ErrAuthentication.
func (c *Client) Authenticate(ctx context.Context) error {
	clientToken, err := c.clientAuthToken()
	if err != nil {
		return apperrors.Mark(apperrors.ErrAuthentication, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/"+authPath, nil)
	if err != nil {
		return apperrors.Mark(apperrors.ErrAuthentication, errors.Wrap(err, "Client.Authenticate NewRequest"))
	}
	req.Header = c.headers(nil)
	(&oauth2.Token{AccessToken: clientToken, TokenType: "Bearer"}).SetAuthHeader(req.Request)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Mark(apperrors.ErrAuthentication, errors.Wrap(err, "Client.Authenticate Do"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Mark(apperrors.ErrAuthentication, errors.Wrap(err, "Client.Authenticate ReadAll"))
	}

	var auth authResponse
	if err := json.Unmarshal(raw, &auth); err != nil {
		return apperrors.Mark(apperrors.ErrAuthentication, errors.Wrapf(err, "Client.Authenticate decode (status %d)", resp.StatusCode))
	}

	if auth.Token == "" {
		c.log.Debug().Int("status", resp.StatusCode).Msg("Not authenticated")
		return apperrors.Mark(apperrors.ErrAuthentication, errors.Wrapf(errNoToken, "status %d", resp.StatusCode))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &oauth2.Token{
		AccessToken: auth.Token,
		TokenType:   "Bearer",
		Expiry:      c.nowFunc().Add(TokenValidity),
	}
	c.customerID = rawToString(auth.CustomerID)
	return nil
}

// clientAuthToken encrypts the client id as a compact JWE (dir + A128GCM)
// under the key registered for this client.
func (c *Client) clientAuthToken() (string, error) {
	key, err := c.keys.Register(c.creds.ClientID, c.creds.SecretKey)
	if err != nil {
		return "", err
	}

	encrypter, err := jose.NewEncrypter(
		jose.ContentEncryption(key.Algorithm),
		jose.Recipient{Algorithm: jose.DIRECT, Key: key.Key, KeyID: key.KeyID},
		nil,
	)
	if err != nil {
		return "", apperrors.Mark(apperrors.ErrCrypto, errors.Wrap(err, "jose.NewEncrypter"))
	}

	object, err := encrypter.Encrypt([]byte(c.creds.ClientID))
	if err != nil {
		return "", apperrors.Mark(apperrors.ErrCrypto, errors.Wrap(err, "Encrypter.Encrypt"))
	}
	return object.CompactSerialize()
}

// headers returns the partner header set layered over extra. Client owned
// headers win. Authorization is set separately from the token.
func (c *Client) headers(extra http.Header) http.Header {
	h := make(http.Header)
	for k, v := range extra {
		h[k] = append([]string(nil), v...)
	}
	h.Set("Accept-Version", c.creds.APIVersion)
	h.Set("Content-Type", "application/json")
	h.Set(ClientHeader, c.creds.ClientID)
	h.Del("Authorization")
	return h
}

// rawToString renders a JSON scalar without quotes; customer ids arrive as
// strings or numbers depending on the deployment.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
