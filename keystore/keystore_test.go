package keystore_test

import (
	"encoding/base64"
	"sync"
	"testing"

	"github.com/jrsteele09/zonesync/internal/errors"
	"github.com/jrsteele09/zonesync/keystore"
	"github.com/stretchr/testify/require"
)

func secret(b byte) string {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = b
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func TestRegister(t *testing.T) {
	ks := keystore.New()

	key, err := ks.Register("client-1", secret(1))
	require.NoError(t, err)
	require.Equal(t, "client-1", key.KeyID)
	require.Equal(t, "A128GCM", key.Algorithm)
	require.Equal(t, "enc", key.Use)
	require.Len(t, key.Key.([]byte), 16)

	got, ok := ks.Get("client-1")
	require.True(t, ok)
	require.Same(t, key, got)
}

func TestRegisterIsWriteOnce(t *testing.T) {
	ks := keystore.New()

	first, err := ks.Register("client-1", secret(1))
	require.NoError(t, err)
	second, err := ks.Register("client-1", secret(2))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, ks.Len())
}

func TestRegisterAcceptsPaddedSecret(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString(make([]byte, 16))
	_, err := keystore.NewKey("client-1", padded)
	require.NoError(t, err)
}

func TestRegisterErrors(t *testing.T) {
	ks := keystore.New()

	_, err := ks.Register("", secret(1))
	require.ErrorIs(t, err, errors.ErrMissingCredentials)

	_, err = ks.Register("client-1", "***")
	require.ErrorIs(t, err, errors.ErrCrypto)

	_, err = ks.Register("client-1", base64.RawURLEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, errors.ErrCrypto)
	require.Equal(t, 0, ks.Len())
}

func TestConcurrentRegister(t *testing.T) {
	ks := keystore.New()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ks.Register("shared", secret(byte(i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 1, ks.Len())
	first, _ := ks.Get("shared")
	again, err := ks.Register("shared", secret(99))
	require.NoError(t, err)
	require.Same(t, first, again)
}
