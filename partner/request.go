package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	apperrors "github.com/jrsteele09/zonesync/internal/errors"
	"github.com/pkg/errors"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// RequestOptions shape a partner call.
type RequestOptions struct {
	ID     string            // appended as /ID
	Path   string            // appended after ID
	Params map[string]string // query parameters
	Data   any               // JSON body, required for POST, PUT and DELETE

	// Header is passed to the transport as-is; client owned headers
	// (Accept-Version, Content-Type, Authorization, X-Altrac-Client) win.
	Header http.Header
}

// Response is a decoded partner reply. Body is nil for empty replies.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return apperrors.Mark(apperrors.ErrTransport, errors.New("empty response body"))
	}
	return json.Unmarshal(r.Body, v)
}

// Request performs an authenticated partner call.
//
// Usage errors (unknown method, missing body on a mutating call) are reported
// as ErrInvalidRequest before anything is sent. An expired or absent token
// triggers Authenticate first. A non-2xx reply returns the decoded Response
// together with an error wrapping ErrPartner.
func (c *Client) Request(ctx context.Context, method, resourcePath string, opts *RequestOptions) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !allowedMethods[method] {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "method %q not one of GET / POST / PUT / DELETE", method)
	}
	if opts == nil {
		opts = &RequestOptions{}
	}

	var body []byte
	if method != http.MethodGet {
		if opts.Data == nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "HTTP %s requires data", method)
		}
		var err error
		if body, err = json.Marshal(opts.Data); err != nil {
			return nil, apperrors.Mark(apperrors.ErrInvalidRequest, errors.Wrap(err, "marshal data"))
		}
		// typed nils (nil maps, slices, pointers) encode as null
		if bytes.Equal(body, []byte("null")) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "HTTP %s requires data", method)
		}
	}

	target, err := c.buildURL(resourcePath, opts)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrInvalidRequest, err)
	}

	if !c.IsAuthenticated() {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if method != http.MethodGet {
		ctx = withoutRetry(ctx)
	}

	var reqBody any
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrInvalidRequest, errors.Wrap(err, "Client.Request NewRequest"))
	}
	req.Header = c.headers(opts.Header)
	if token := c.currentToken(); token != nil {
		token.SetAuthHeader(req.Request)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrTransport, errors.Wrapf(err, "%s %s", method, resourcePath))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrTransport, errors.Wrap(err, "read response body"))
	}

	result := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		if !json.Valid(trimmed) {
			return nil, apperrors.Mark(apperrors.ErrTransport, fmt.Errorf("non-JSON response (status %d)", resp.StatusCode))
		}
		result.Body = json.RawMessage(trimmed)
	}

	if !result.OK() {
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidate()
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("method", method).Str("resource", resourcePath).Msg("request error status")
		return result, apperrors.Mark(apperrors.ErrPartner, fmt.Errorf("%s %s: status %d (%s)", method, resourcePath, resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	return result, nil
}

func (c *Client) Get(ctx context.Context, resourcePath string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodGet, resourcePath, opts)
}

func (c *Client) Post(ctx context.Context, resourcePath string, opts *RequestOptions, data any) (*Response, error) {
	return c.Request(ctx, http.MethodPost, resourcePath, withData(opts, data))
}

func (c *Client) Put(ctx context.Context, resourcePath string, opts *RequestOptions, data any) (*Response, error) {
	return c.Request(ctx, http.MethodPut, resourcePath, withData(opts, data))
}

func (c *Client) Delete(ctx context.Context, resourcePath string, opts *RequestOptions, data any) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, resourcePath, withData(opts, data))
}

// withData copies opts so callers' option values are never mutated.
func withData(opts *RequestOptions, data any) *RequestOptions {
	o := RequestOptions{}
	if opts != nil {
		o = *opts
	}
	o.Data = data
	return &o
}

// buildURL assembles host[:port]/resourcePath[/id][/path][?params].
func (c *Client) buildURL(resourcePath string, opts *RequestOptions) (*url.URL, error) {
	resourcePath = strings.Trim(resourcePath, "/")
	if resourcePath == "" {
		return nil, errors.New("resource path is required")
	}

	raw := c.baseURL() + "/" + resourcePath
	if opts.ID != "" {
		raw += "/" + url.PathEscape(opts.ID)
	}
	if p := strings.Trim(opts.Path, "/"); p != "" {
		raw += "/" + p
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse request url")
	}

	if len(opts.Params) > 0 {
		q := u.Query()
		for k, v := range opts.Params {
			q.Add(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}
