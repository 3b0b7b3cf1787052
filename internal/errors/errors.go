package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy shared by the cipher, the partner client and the reconciler.
var (
	// ErrCrypto covers malformed ciphertext and unusable key material.
	ErrCrypto = errors.New("crypto error")

	// ErrAuthentication is returned when the partner auth exchange fails or yields no token.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTransport covers network failures, timeouts and undecodable response bodies.
	ErrTransport = errors.New("transport error")

	// ErrInvalidRequest is a caller mistake detected before anything is sent.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPartner is returned alongside a decoded body when the partner answers with a non-2xx status.
	ErrPartner = errors.New("partner error")

	// ErrMissingCredentials is reported as an invalid request.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Kind labels used for result tagging and metrics.
const (
	KindNone           = ""
	KindCrypto         = "crypto"
	KindAuthentication = "authentication"
	KindTransport      = "transport"
	KindInvalidRequest = "invalid_request"
	KindPartner        = "partner"
	KindCanceled       = "canceled"
	KindInternal       = "internal"
)

// Kind maps err onto its taxonomy label. Cancellation wins over everything else
// so an interrupted batch is not reported as a partner outage.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrCrypto):
		return KindCrypto
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrMissingCredentials):
		return KindInvalidRequest
	case errors.Is(err, ErrPartner):
		return KindPartner
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	default:
		return KindInternal
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Mark attaches a taxonomy sentinel to err while keeping err in the chain.
func Mark(sentinel, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
