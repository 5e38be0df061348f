package api

import (
	"sync"

	"github.com/dukerupert/skadi/internal/domain"
)

// requestOwner carries the subscriber identity supplied with an update
// request. First-time customer creation needs a name and email for the
// remote customer record.
type requestOwner struct {
	id    string
	name  string
	email string
}

func (o requestOwner) ID() string    { return o.id }
func (o requestOwner) Name() string  { return o.name }
func (o requestOwner) Email() string { return o.email }

// OwnerRegistry resolves subscription owners from details registered by
// the request that triggered the reconcile. Register before calling
// Reconcile, Forget after. Safe for concurrent use.
type OwnerRegistry struct {
	mu     sync.RWMutex
	owners map[string]domain.Owner
}

func NewOwnerRegistry() *OwnerRegistry {
	return &OwnerRegistry{owners: make(map[string]domain.Owner)}
}

// Register records the owner identity for a customer for the duration of
// an update request.
func (reg *OwnerRegistry) Register(customerID, name, email string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.owners[customerID] = requestOwner{id: customerID, name: name, email: email}
}

// Forget drops the registration once the request completes.
func (reg *OwnerRegistry) Forget(customerID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.owners, customerID)
}

// Owner implements domain.OwnerSource.
func (reg *OwnerRegistry) Owner(sub *domain.Subscription) (domain.Owner, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	owner, ok := reg.owners[sub.CustomerID]
	if !ok {
		return nil, domain.Errorf(domain.EINVALID, "api.OwnerRegistry.Owner", "no owner registered for customer %s", sub.CustomerID)
	}
	return owner, nil
}
