package keystore

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/go-jose/go-jose/v4"
	apperrors "github.com/jrsteele09/zonesync/internal/errors"
)

// Content encryption used for client auth tokens.
const (
	ContentEncryption = jose.A128GCM
	KeyUse            = "enc"
	keySize           = 16
)

// Store holds one symmetric JWK per partner client id.
// Keys are write-once: registering an existing client id returns the stored key
// and ignores the supplied secret.
type Store struct {
	keys map[string]*jose.JSONWebKey
	mu   sync.RWMutex
}

func New() *Store {
	return &Store{
		keys: make(map[string]*jose.JSONWebKey),
	}
}

// Register adds secretKey under clientID if no key is present yet.
// secretKey is the JWK "k" member, base64url encoded.
func (s *Store) Register(clientID, secretKey string) (*jose.JSONWebKey, error) {
	if key, ok := s.Get(clientID); ok {
		return key, nil
	}

	key, err := NewKey(clientID, secretKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.keys[clientID]; ok {
		return existing, nil
	}
	s.keys[clientID] = key
	return key, nil
}

// Get returns the key registered for clientID.
func (s *Store) Get(clientID string) (*jose.JSONWebKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[clientID]
	return key, ok
}

// Len returns the number of registered client ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// NewKey builds an oct JWK for A128GCM from a base64url secret.
func NewKey(clientID, secretKey string) (*jose.JSONWebKey, error) {
	if clientID == "" || secretKey == "" {
		return nil, apperrors.ErrMissingCredentials
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(secretKey, "="))
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrCrypto, fmt.Errorf("secret key is not base64url: %w", err))
	}
	if len(raw) != keySize {
		return nil, apperrors.Mark(apperrors.ErrCrypto, fmt.Errorf("secret key must decode to %d bytes, got %d", keySize, len(raw)))
	}

	return &jose.JSONWebKey{
		Key:       raw,
		KeyID:     clientID,
		Algorithm: string(ContentEncryption),
		Use:       KeyUse,
	}, nil
}
