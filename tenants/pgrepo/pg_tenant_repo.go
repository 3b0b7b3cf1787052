// Package pgrepo reads tenant credentials from the integrations table in Postgres.
package pgrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/zonesync/tenants"
)

const queryTimeout = 10 * time.Second

// irrigationPropertiesQuery lists every property wired to the Altrac integration.
// A customer can own several properties, so ids repeat.
const irrigationPropertiesQuery = `
SELECT ip.external_customer_id, ip.api_key, ip.api_secret
FROM integrations.irrigation_properties ip
WHERE ip.provider = $1
  AND ip.external_customer_id IS NOT NULL
  AND ip.api_key IS NOT NULL
  AND ip.api_secret IS NOT NULL
ORDER BY ip.id`

// ProviderAltrac is the provider value for Altrac rows.
const ProviderAltrac = "altrac"

// Querier is the subset of pgxpool.Pool used by the repo.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

var _ tenants.Repo = (*Repo)(nil)

type Repo struct {
	db       Querier
	provider string
}

func New(db Querier, provider string) *Repo {
	if provider == "" {
		provider = ProviderAltrac
	}
	return &Repo{db: db, provider: provider}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MaxConnIdleTime = 2 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

type row struct {
	TenantID  string `db:"external_customer_id"`
	APIKey    string `db:"api_key"`
	APISecret string `db:"api_secret"`
}

func (r *Repo) List(ctx context.Context) ([]tenants.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, irrigationPropertiesQuery, r.provider)
	if err != nil {
		return nil, fmt.Errorf("failed to query irrigation properties: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[row])
	if err != nil {
		return nil, fmt.Errorf("failed to scan irrigation properties: %w", err)
	}
	return unique(collected), nil
}

// unique collapses rows to one credential per tenant. The first row seen for
// a tenant wins and first-seen order is kept.
func unique(rows []row) []tenants.Credential {
	seen := make(map[string]struct{}, len(rows))
	creds := make([]tenants.Credential, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.TenantID]; ok {
			continue
		}
		seen[r.TenantID] = struct{}{}
		creds = append(creds, tenants.Credential{
			TenantID:           r.TenantID,
			EncryptedAPIKey:    r.APIKey,
			EncryptedAPISecret: r.APISecret,
		})
	}
	return creds
}
