// Package controller implements the client-side session controller: modality
// selection and query dispatch, result filtering and aggregation, the
// sequential multi-file upload pipeline, and the recent-activity feed. All
// session state is process-lifetime and rebuilt from backend queries on
// demand; nothing is persisted locally.
package controller

import (
	"context"

	"github.com/kalambet/mmx/internal/backend"
)

// Backend is the full set of backend operations the session depends on.
// *backend.Client satisfies it.
type Backend interface {
	CollectionStore
	Searcher
	Ingestor
	ActivityFetcher
}

// Session is the single context object holding every component of one user
// session. Each piece of state (collection set, result set, filter state,
// upload queue) is owned exclusively by its component and mutated only
// through that component's operations; components read each other's published
// state but never write it.
type Session struct {
	Registry *Registry
	Search   *Dispatcher
	Uploads  *Pipeline
	Activity *Feed
}

// NewSession wires a session around one backend client. notifier may be nil.
func NewSession(b Backend, notifier Notifier) *Session {
	reg := NewRegistry(b)
	feed := NewFeed(b)
	return &Session{
		Registry: reg,
		Search:   NewDispatcher(b),
		Uploads:  NewPipeline(b, reg.Active, feed, notifier),
		Activity: feed,
	}
}

// DispatchQuery runs q, defaulting its target to the active collection. The
// collection is resolved once at dispatch time: changing the active
// collection mid-flight does not affect a query already running.
func (s *Session) DispatchQuery(ctx context.Context, q Query) ([]backend.ResultItem, error) {
	if q.Collection == "" {
		q.Collection = s.Registry.Active()
	}
	return s.Search.Dispatch(ctx, q)
}
