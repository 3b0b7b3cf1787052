// Package reconcile drives one batch over every Altrac tenant: decrypt the
// stored credentials, authenticate and fetch the tenant's zones. A failing
// tenant is logged and skipped; it never aborts the batch.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/fluxcd/pkg/masktoken"
	"github.com/google/uuid"
	"github.com/jrsteele09/zonesync/crypt"
	apperrors "github.com/jrsteele09/zonesync/internal/errors"
	"github.com/jrsteele09/zonesync/keystore"
	"github.com/jrsteele09/zonesync/partner"
	"github.com/jrsteele09/zonesync/tenants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultResource = "zones"

	// OutcomeOK is recorded for tenants that returned data.
	OutcomeOK = "ok"
)

// Endpoint is where tenant clients connect and what they fetch.
type Endpoint struct {
	APIHost    string
	APIPort    int
	APIVersion string
	Resource   string
}

type Orchestrator struct {
	source        tenants.Repo
	encryptionKey string
	endpoint      Endpoint

	keys          *keystore.Store
	clientOptions []partner.ClientOption
	concurrency   int
	recorder      Recorder
	log           zerolog.Logger
}

func New(source tenants.Repo, encryptionKey string, endpoint Endpoint, options ...Option) *Orchestrator {
	if endpoint.Resource == "" {
		endpoint.Resource = DefaultResource
	}
	o := &Orchestrator{
		source:        source,
		encryptionKey: encryptionKey,
		endpoint:      endpoint,
		concurrency:   1,
		recorder:      nopRecorder{},
		log:           log.Logger,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.keys == nil {
		o.keys = keystore.New()
	}
	return o
}

// Run processes every tenant the source lists and returns one Result per
// processed tenant in source order. The error is non-nil only when the source
// cannot be read or ctx ends the batch early; in the latter case the results
// finished so far are still returned.
func (o *Orchestrator) Run(ctx context.Context) ([]Result, error) {
	runLog := o.log.With().Str("run_id", uuid.New().String()).Logger()

	creds, err := o.source.List(ctx)
	if err != nil {
		runLog.Error().Err(err).Msg("Listing tenants failed")
		return nil, errors.Wrap(err, "Orchestrator.Run List")
	}
	runLog.Info().Int("tenants", len(creds)).Msg("Batch started")

	results := make([]Result, len(creds))
	done := make([]bool, len(creds))

	if o.concurrency <= 1 {
		for i, cred := range creds {
			if ctx.Err() != nil {
				break
			}
			results[i] = o.reconcileTenant(ctx, runLog, cred)
			done[i] = true
		}
	} else {
		var (
			g  errgroup.Group
			mu sync.Mutex
		)
		g.SetLimit(o.concurrency)
		for i, cred := range creds {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				r := o.reconcileTenant(ctx, runLog, cred)
				mu.Lock()
				results[i] = r
				done[i] = true
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	finished := make([]Result, 0, len(creds))
	for i := range results {
		if done[i] {
			finished = append(finished, results[i])
		}
	}

	if err := ctx.Err(); err != nil {
		runLog.Warn().Int("processed", len(finished)).Int("tenants", len(creds)).Msg("Batch interrupted")
		return finished, err
	}
	runLog.Info().
		Int("succeeded", len(Successes(finished))).
		Int("failed", len(Failures(finished))).
		Msg("Batch finished")
	return finished, nil
}

func (o *Orchestrator) reconcileTenant(ctx context.Context, runLog zerolog.Logger, cred tenants.Credential) Result {
	tenantLog := runLog.With().Str("tenant_id", cred.TenantID).Logger()
	start := time.Now()

	payload, secrets, err := o.fetch(ctx, tenantLog, cred)
	result := Result{TenantID: cred.TenantID, Duration: time.Since(start)}
	if err != nil {
		result.Err = err
		result.Kind = apperrors.Kind(err)
		tenantLog.Error().
			Str("error_kind", result.Kind).
			Str("error", maskSecrets(err.Error(), secrets...)).
			Msg("Issue getting data for tenant")
		o.recorder.ObserveTenant(result.Kind, result.Duration)
		return result
	}

	result.Success = true
	result.Payload = payload
	tenantLog.Debug().Dur("duration", result.Duration).Msg("Tenant reconciled")
	o.recorder.ObserveTenant(OutcomeOK, result.Duration)
	return result
}

// fetch returns the tenant payload plus whichever plaintext secrets were
// recovered, so the caller can redact them from errors.
func (o *Orchestrator) fetch(ctx context.Context, tenantLog zerolog.Logger, cred tenants.Credential) ([]byte, []string, error) {
	clientID, err := crypt.Decrypt(cred.EncryptedAPIKey, o.encryptionKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decrypting api key")
	}
	secretKey, err := crypt.Decrypt(cred.EncryptedAPISecret, o.encryptionKey)
	if err != nil {
		return nil, []string{clientID}, errors.Wrap(err, "decrypting api secret")
	}
	secrets := []string{clientID, secretKey}

	options := append([]partner.ClientOption{
		partner.WithKeystore(o.keys),
		partner.WithLogger(tenantLog),
	}, o.clientOptions...)

	client, err := partner.Connect(ctx, partner.Credentials{
		APIHost:    o.endpoint.APIHost,
		APIPort:    o.endpoint.APIPort,
		APIVersion: o.endpoint.APIVersion,
		ClientID:   clientID,
		SecretKey:  secretKey,
	}, options...)
	if err != nil {
		return nil, secrets, errors.Wrap(err, "connecting to partner")
	}

	resp, err := client.Get(ctx, o.endpoint.Resource, &partner.RequestOptions{ID: cred.TenantID})
	if err != nil {
		return nil, secrets, errors.Wrapf(err, "fetching %s", o.endpoint.Resource)
	}
	return resp.Body, secrets, nil
}

func maskSecrets(msg string, secrets ...string) string {
	for _, s := range secrets {
		masked, err := masktoken.MaskTokenFromString(msg, s)
		if err != nil {
			continue
		}
		msg = masked
	}
	return msg
}
