package controller

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/kalambet/mmx/internal/backend"
)

// CollectionStore abstracts the backend's collection operations.
type CollectionStore interface {
	ListCollections(ctx context.Context) ([]backend.Collection, error)
	CreateCollection(ctx context.Context, name string) error
}

// Collection names: 3-32 chars, ASCII letters, digits and underscore, first
// char a letter or underscore.
var collectionNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{2,31}$`)

// Registry tracks the set of known collections and the currently active one.
// The active collection is owned here; other components read it at operation
// start and never write it.
type Registry struct {
	store CollectionStore

	mu          sync.Mutex
	collections []backend.Collection
	active      string
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store CollectionStore) *Registry {
	return &Registry{store: store}
}

// Refresh re-fetches the known collection set. On transport failure the known
// set becomes empty and a *FetchError is returned as an advisory; the error
// is never fatal. After every refresh the active selection is reconciled: if
// the active collection disappeared from the fetched set, the first available
// collection is selected, or none if the set is empty.
func (r *Registry) Refresh(ctx context.Context) ([]backend.Collection, error) {
	cols, err := r.store.ListCollections(ctx)
	if err != nil {
		cols = nil
	}

	r.mu.Lock()
	r.collections = cols
	r.reconcileActiveLocked()
	r.mu.Unlock()

	if err != nil {
		return nil, &FetchError{Op: "listing collections", Err: err}
	}
	return append([]backend.Collection(nil), cols...), nil
}

func (r *Registry) reconcileActiveLocked() {
	if r.active != "" && r.memberLocked(r.active) {
		return
	}
	if len(r.collections) > 0 {
		r.active = r.collections[0].Name
		return
	}
	r.active = ""
}

func (r *Registry) memberLocked(name string) bool {
	for _, c := range r.collections {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Collections returns a copy of the last-known collection set.
func (r *Registry) Collections() []backend.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]backend.Collection(nil), r.collections...)
}

// Active returns the name of the active collection, or "" when no collection
// exists yet.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetActive selects a collection by name. Unknown names are ignored.
func (r *Registry) SetActive(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.memberLocked(name) {
		r.active = name
	}
}

// ValidateCollectionName checks a proposed collection name against the
// client-side rule without touching the network.
func ValidateCollectionName(name string) error {
	if !collectionNameRe.MatchString(name) {
		return &ValidationError{
			Field:  "collection name",
			Reason: "use 3-32 ASCII letters, digits or underscore, starting with a letter or underscore",
		}
	}
	return nil
}

// Create validates the name, creates the collection on the backend, refreshes
// the registry, and makes the new collection active. Invalid names fail fast
// with *ValidationError before any network call; backend rejections surface
// as *ServerError with the backend-provided message.
func (r *Registry) Create(ctx context.Context, name string) (backend.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return backend.Collection{}, err
	}

	if err := r.store.CreateCollection(ctx, name); err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return backend.Collection{}, &ServerError{Message: apiErr.Message}
		}
		return backend.Collection{}, &ServerError{Message: err.Error()}
	}

	// Refresh failure here is advisory; the create itself succeeded, so the
	// new collection becomes active even when the set could not be re-fetched.
	r.Refresh(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = name
	for _, c := range r.collections {
		if c.Name == name {
			return c, nil
		}
	}
	return backend.Collection{Name: name}, nil
}
