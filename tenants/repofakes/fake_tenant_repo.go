package tenantrepofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/zonesync/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

// FakeTenantRepo keeps credentials in insertion order.
type FakeTenantRepo struct {
	order   []string
	tenants map[string]tenants.Credential
	listErr error
	lock    sync.RWMutex
}

func NewFakeTenantRepo(creds ...tenants.Credential) *FakeTenantRepo {
	tr := &FakeTenantRepo{
		tenants: make(map[string]tenants.Credential),
	}
	for _, c := range creds {
		tr.Upsert(c)
	}
	return tr
}

// Upsert replaces an existing tenant in place or appends a new one.
func (tr *FakeTenantRepo) Upsert(cred tenants.Credential) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.tenants[cred.TenantID]; !ok {
		tr.order = append(tr.order, cred.TenantID)
	}
	tr.tenants[cred.TenantID] = cred
}

func (tr *FakeTenantRepo) Delete(tenantID string) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.tenants[tenantID]; !ok {
		return
	}
	delete(tr.tenants, tenantID)
	for i, id := range tr.order {
		if id == tenantID {
			tr.order = append(tr.order[:i], tr.order[i+1:]...)
			break
		}
	}
}

// FailWith makes List return err.
func (tr *FakeTenantRepo) FailWith(err error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.listErr = err
}

func (tr *FakeTenantRepo) List(ctx context.Context) ([]tenants.Credential, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	if tr.listErr != nil {
		return nil, tr.listErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	creds := make([]tenants.Credential, 0, len(tr.order))
	for _, id := range tr.order {
		creds = append(creds, tr.tenants[id])
	}
	return creds, nil
}
