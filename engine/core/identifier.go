package core

import (
	"sync"

	"github.com/google/uuid"
)

var (
	ownersMu sync.Mutex
	owners   = map[uuid.UUID]interface{}{}
)

// IdentifierAcquireNewID registers owner under a fresh identifier.
func IdentifierAcquireNewID(owner interface{}) uuid.UUID {
	ownersMu.Lock()
	defer ownersMu.Unlock()

	id := uuid.New()
	owners[id] = owner
	return id
}

// IdentifierReleaseID makes id unknown again. Releasing an id twice is an error.
func IdentifierReleaseID(id uuid.UUID) error {
	ownersMu.Lock()
	defer ownersMu.Unlock()

	if _, ok := owners[id]; !ok {
		return ConfigErrorf("identifier %s was never acquired or is already released", id)
	}
	delete(owners, id)
	return nil
}

// IdentifierOwner returns the owner registered under id.
func IdentifierOwner(id uuid.UUID) (interface{}, bool) {
	ownersMu.Lock()
	defer ownersMu.Unlock()

	o, ok := owners[id]
	return o, ok
}

// IdentifierCount returns how many identifiers are currently held.
func IdentifierCount() int {
	ownersMu.Lock()
	defer ownersMu.Unlock()

	return len(owners)
}
