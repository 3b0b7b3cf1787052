package tenants

import "context"

// Repo enumerates tenant credentials. List returns one entry per tenant in a
// stable order; the reconciler processes them in that order.
type Repo interface {
	List(ctx context.Context) ([]Credential, error)
}
