package partner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/zonesync/internal/errors"
	"github.com/jrsteele09/zonesync/partner"
	"github.com/stretchr/testify/require"
)

func TestRequestBuildsURL(t *testing.T) {
	tests := []struct {
		name      string
		resource  string
		opts      *partner.RequestOptions
		wantPath  string
		wantQuery string
	}{
		{name: "resource only", resource: "zones", wantPath: "/zones"},
		{name: "with id", resource: "zones", opts: &partner.RequestOptions{ID: "42"}, wantPath: "/zones/42"},
		{name: "with params", resource: "zones", opts: &partner.RequestOptions{Params: map[string]string{"active": "true"}}, wantPath: "/zones", wantQuery: "active=true"},
		{name: "id and path", resource: "zones", opts: &partner.RequestOptions{ID: "42", Path: "readings"}, wantPath: "/zones/42/readings"},
		{name: "nested resource", resource: "/zones/cust-1/", wantPath: "/zones/cust-1"},
		{
			name:      "everything",
			resource:  "zones",
			opts:      &partner.RequestOptions{ID: "7", Path: "history", Params: map[string]string{"from": "2024-01-01", "active": "true"}},
			wantPath:  "/zones/7/history",
			wantQuery: "active=true&from=2024-01-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.server.Handle("GET", tt.wantPath, 200, map[string]string{"ok": "yes"})
			c := f.connect(t)

			resp, err := c.Request(context.Background(), "GET", tt.resource, tt.opts)
			require.NoError(t, err)
			require.True(t, resp.OK())

			reqs := f.server.Requests()
			require.Len(t, reqs, 1)
			require.Equal(t, tt.wantPath, reqs[0].Path)
			require.Equal(t, tt.wantQuery, reqs[0].RawQuery)
		})
	}
}

func TestRequestSendsPartnerHeaders(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones", 200, []any{})
	c := f.connect(t)

	_, err := c.Get(context.Background(), "zones", &partner.RequestOptions{
		Header: http.Header{
			"X-Trace-Id":      []string{"abc"},
			"X-Altrac-Client": []string{"spoofed"},
		},
	})
	require.NoError(t, err)

	h := f.server.Requests()[0].Header
	require.Equal(t, testVersion, h.Get("Accept-Version"))
	require.Equal(t, "application/json", h.Get("Content-Type"))
	require.Equal(t, testClientID, h.Get("X-Altrac-Client"))
	require.Equal(t, "abc", h.Get("X-Trace-Id"))
	require.True(t, strings.HasPrefix(h.Get("Authorization"), "Bearer "))
}

func TestRequestMethodIsCaseInsensitive(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones", 200, []any{})
	c := f.connect(t)

	_, err := c.Request(context.Background(), "get", "zones", nil)
	require.NoError(t, err)
}

func TestRequestRejectsUnknownMethod(t *testing.T) {
	f := setupTestFixture(t)
	c := f.newClient(t)

	_, err := c.Request(context.Background(), "PATCH", "zones", &partner.RequestOptions{Data: map[string]int{"a": 1}})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	require.Equal(t, 0, f.server.AuthCalls())
	require.Equal(t, 0, f.server.DomainCalls())
}

func TestMutatingRequestRequiresData(t *testing.T) {
	for _, method := range []string{"POST", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			f := setupTestFixture(t)
			c := f.newClient(t)

			_, err := c.Request(context.Background(), method, "zones", &partner.RequestOptions{ID: "42"})
			require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
			require.Equal(t, 0, f.server.AuthCalls())
			require.Equal(t, 0, f.server.DomainCalls())
		})
	}
}

func TestMutatingRequestRejectsNullData(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"nil map", map[string]any(nil)},
		{"nil slice", []string(nil)},
		{"nil pointer", (*struct{ Name string })(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			c := f.newClient(t)

			_, err := c.Post(context.Background(), "zones", nil, tt.data)
			require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
			require.Equal(t, 0, f.server.AuthCalls())
			require.Equal(t, 0, f.server.DomainCalls())
		})
	}
}

func TestMutatingRequestIsSentOnce(t *testing.T) {
	for _, method := range []string{"POST", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			f := setupTestFixture(t)
			f.server.Handle(method, "/zones", 503, map[string]string{"error": "unavailable"})
			c := f.connect(t, partner.WithRetryMax(2), partner.WithRetryWait(time.Millisecond, 5*time.Millisecond))

			resp, err := c.Request(context.Background(), method, "zones", &partner.RequestOptions{Data: map[string]string{"name": "north"}})
			require.ErrorIs(t, err, apperrors.ErrPartner)
			require.Equal(t, 503, resp.StatusCode)
			require.Equal(t, 1, f.server.DomainCalls())
		})
	}
}

func TestGetIsRetriedOnServerError(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones", 503, map[string]string{"error": "unavailable"})
	c := f.connect(t, partner.WithRetryMax(2), partner.WithRetryWait(time.Millisecond, 5*time.Millisecond))

	resp, err := c.Get(context.Background(), "zones", nil)
	require.ErrorIs(t, err, apperrors.ErrPartner)
	require.Equal(t, 503, resp.StatusCode)
	require.Equal(t, 3, f.server.DomainCalls())
}

func TestPostSendsJSONBody(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("POST", "/zones", 201, map[string]any{"id": 9, "name": "north"})
	c := f.connect(t)

	opts := &partner.RequestOptions{Params: map[string]string{"dry_run": "false"}}
	resp, err := c.Post(context.Background(), "zones", opts, map[string]string{"name": "north"})
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	require.Nil(t, opts.Data)

	var created struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, resp.Decode(&created))
	require.Equal(t, 9, created.ID)

	req := f.server.Requests()[0]
	require.Equal(t, "POST", req.Method)
	require.JSONEq(t, `{"name":"north"}`, string(req.Body))
	require.Equal(t, "dry_run=false", req.RawQuery)
}

func TestPutAndDelete(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("PUT", "/zones/3", 200, map[string]any{"id": 3})
	f.server.Handle("DELETE", "/zones/3", 200, map[string]any{"deleted": true})
	c := f.connect(t)

	_, err := c.Put(context.Background(), "zones", &partner.RequestOptions{ID: "3"}, map[string]string{"name": "south"})
	require.NoError(t, err)
	_, err = c.Delete(context.Background(), "zones", &partner.RequestOptions{ID: "3"}, map[string]bool{"hard": true})
	require.NoError(t, err)

	reqs := f.server.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, "PUT", reqs[0].Method)
	require.Equal(t, "DELETE", reqs[1].Method)
	require.JSONEq(t, `{"hard":true}`, string(reqs[1].Body))
}

func TestNon2xxReturnsBodyAndPartnerError(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones/42", 422, map[string]string{"error": "bad zone"})
	c := f.connect(t)

	resp, err := c.Get(context.Background(), "zones", &partner.RequestOptions{ID: "42"})
	require.ErrorIs(t, err, apperrors.ErrPartner)
	require.NotNil(t, resp)
	require.Equal(t, 422, resp.StatusCode)
	require.False(t, resp.OK())

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	require.Equal(t, "bad zone", body["error"])
	require.True(t, c.IsAuthenticated())
}

func TestUnauthorizedDropsToken(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones", 401, map[string]string{"error": "expired"})
	c := f.connect(t)

	_, err := c.Get(context.Background(), "zones", nil)
	require.ErrorIs(t, err, apperrors.ErrPartner)
	require.False(t, c.IsAuthenticated())
}

func TestNonJSONResponseIsTransportError(t *testing.T) {
	f := setupTestFixture(t)
	f.server.HandleRaw("GET", "/zones", 200, "<html>maintenance</html>")
	c := f.connect(t)

	_, err := c.Get(context.Background(), "zones", nil)
	require.ErrorIs(t, err, apperrors.ErrTransport)
}

func TestEmptyResponseBody(t *testing.T) {
	f := setupTestFixture(t)
	f.server.HandleRaw("DELETE", "/zones/5", 204, "")
	c := f.connect(t)

	resp, err := c.Delete(context.Background(), "zones", &partner.RequestOptions{ID: "5"}, struct{}{})
	require.NoError(t, err)
	require.Nil(t, resp.Body)
	require.ErrorIs(t, resp.Decode(&struct{}{}), apperrors.ErrTransport)
}

func TestRequestTimeoutIsTransportError(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones", 200, []any{})
	f.server.SetDelay(time.Second)
	c := f.connect(t, partner.WithTimeout(50*time.Millisecond))

	_, err := c.Get(context.Background(), "zones", nil)
	require.ErrorIs(t, err, apperrors.ErrTransport)
	require.Equal(t, apperrors.KindTransport, apperrors.Kind(err))
}

func TestRequestHonoursCancelledContext(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Handle("GET", "/zones", 200, []any{})
	c := f.connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "zones", nil)
	require.Error(t, err)
	require.Equal(t, apperrors.KindCanceled, apperrors.Kind(err))
}
