package reconcile

import (
	"time"

	"github.com/jrsteele09/zonesync/keystore"
	"github.com/jrsteele09/zonesync/partner"
	"github.com/rs/zerolog"
)

// Recorder receives one observation per tenant.
type Recorder interface {
	ObserveTenant(outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTenant(string, time.Duration) {}

type Option func(*Orchestrator)

// WithConcurrency processes up to n tenants at once. n <= 1 keeps the run sequential.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.concurrency = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = logger
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithKeystore shares a key registry across runs.
func WithKeystore(ks *keystore.Store) Option {
	return func(o *Orchestrator) {
		o.keys = ks
	}
}

// WithClientOptions are applied to every partner client the run creates.
func WithClientOptions(opts ...partner.ClientOption) Option {
	return func(o *Orchestrator) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}
