package partnerfake

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/zonesync/keystore"
)

// Server is an in-process Altrac API double. It accepts the compact JWE client
// token on /auth, issues HS256 bearer tokens and serves canned JSON replies for
// everything else.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	signingKey []byte
	clients    map[string]*fakeClient
	responses  map[string]cannedResponse
	requests   []Request
	authCalls  int
	delay      time.Duration
}

type fakeClient struct {
	secretKey  string
	customerID string
	omitToken  bool
}

type cannedResponse struct {
	status int
	raw    []byte
}

// Request is a recorded non-auth call.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

func New() *Server {
	s := &Server{
		signingKey: []byte(uuid.New().String()),
		clients:    make(map[string]*fakeClient),
		responses:  make(map[string]cannedResponse),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// AddClient registers credentials the auth endpoint will accept.
func (s *Server) AddClient(clientID, secretKey, customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = &fakeClient{secretKey: secretKey, customerID: customerID}
}

// OmitToken makes /auth answer 200 without a token for clientID.
func (s *Server) OmitToken(clientID string, omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[clientID]; ok {
		c.omitToken = omit
	}
}

// Handle registers a JSON reply for method and path (e.g. "GET", "/zones/42").
func (s *Server) Handle(method, path string, status int, body any) {
	raw, _ := json.Marshal(body)
	s.HandleRaw(method, path, status, string(raw))
}

// HandleRaw registers a verbatim reply body.
func (s *Server) HandleRaw(method, path string, status int, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method+" "+path] = cannedResponse{status: status, raw: []byte(raw)}
}

// SetDelay stalls every non-auth reply by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *Server) AuthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

func (s *Server) DomainCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == "/auth" {
		s.handleAuth(w, r)
		return
	}
	s.handleDomain(w, r)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.authCalls++
	s.mu.Unlock()

	clientID := r.Header.Get("X-Altrac-Client")
	s.mu.Lock()
	client, ok := s.clients[clientID]
	var c fakeClient
	if ok {
		c = *client
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown client"})
		return
	}

	compact, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer"})
		return
	}
	if err := verifyClientToken(compact, clientID, c.secretKey); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	if c.omitToken {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         clientID,
		"customer_id": c.customerID,
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(48 * time.Hour).Unix(),
		"jti":         uuid.New().String(),
	}).SignedString(s.signingKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "customer_id": c.customerID})
}

func verifyClientToken(compact, clientID, secretKey string) error {
	key, err := keystore.NewKey(clientID, secretKey)
	if err != nil {
		return err
	}
	object, err := jose.ParseEncrypted(compact, []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{keystore.ContentEncryption})
	if err != nil {
		return err
	}
	if object.Header.KeyID != clientID {
		return jwt.ErrTokenInvalidId
	}
	plaintext, err := object.Decrypt(key.Key)
	if err != nil {
		return err
	}
	if string(plaintext) != clientID {
		return jwt.ErrTokenInvalidSubject
	}
	return nil
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	})
	delay := s.delay
	canned, ok := s.responses[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if err := s.verifyBearer(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(canned.status)
	_, _ = w.Write(canned.raw)
}

func (s *Server) verifyBearer(r *http.Request) error {
	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return jwt.ErrTokenMalformed
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return err
	}
	if sub != r.Header.Get("X-Altrac-Client") {
		return jwt.ErrTokenInvalidSubject
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
