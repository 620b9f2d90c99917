// Package registry implements the type-erased mapping from a
// message-type identity to a typed delivery handle, installed by
// service-owning actors and consulted by the RPC core at dispatch time.
//
// Called by: rpc
// Calls: logging
package registry

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/logging"
)

// Tag is a process-local, monotonically assigned stand-in for a concrete
// Go type's identity. It is computed once per type, at that type's first
// use, and is stable for the remainder of the process's lifetime.
type Tag int32

var (
	tagCounter int32
	tagsByType sync.Map // reflect.Type -> Tag
)

// TagOf returns the stable Tag for T, assigning one on first use.
func TagOf[T any]() Tag {
	rt := reflect.TypeFor[T]()
	if v, ok := tagsByType.Load(rt); ok {
		return v.(Tag)
	}
	next := Tag(atomic.AddInt32(&tagCounter, 1))
	actual, _ := tagsByType.LoadOrStore(rt, next)
	return actual.(Tag)
}

// DeliveryHandle is a type-erased callable that, given a value of the
// matching static type (passed as any), schedules delivery to the
// registered handler and returns that handler's Envelope-typed response.
type DeliveryHandle func(ctx context.Context, payload any) (envelope.Envelope, error)

type entry struct {
	serviceName string
	actorName   string
	handle      DeliveryHandle
}

// Registry is the process-local type-tag -> delivery-handle map. At most
// one entry may exist per Tag; a second registration for an
// already-registered type is a fatal initialization error (spec.md
// §4.4): two actors claiming the same service would otherwise silently
// last-writer-win, which makes the bug undiagnosable.
type Registry struct {
	mu      sync.RWMutex
	entries map[Tag]entry
	log     *logging.Logger
}

// New creates an empty Registry. log is used to report the critical,
// process-aborting condition of a double registration.
func New(log *logging.Logger) *Registry {
	return &Registry{entries: make(map[Tag]entry), log: log}
}

// Register installs handle under tag. If tag is already registered, this
// logs at critical and aborts the process (via log's configured abort
// function) instead of returning an error: silent last-writer-wins would
// make double-registration bugs undiagnosable.
func (r *Registry) Register(tag Tag, serviceName, actorName string, handle DeliveryHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.entries[tag]; exists {
		r.log.Critical("double service registration", logging.Fields{
			"service":        serviceName,
			"actor":          actorName,
			"existing_name":  existing.serviceName,
			"existing_actor": existing.actorName,
		})
		return
	}

	r.entries[tag] = entry{serviceName: serviceName, actorName: actorName, handle: handle}
}

// Lookup returns the delivery handle registered for tag, if any.
func (r *Registry) Lookup(tag Tag) (handle DeliveryHandle, serviceName string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[tag]
	if !ok {
		return nil, "", false
	}
	return e.handle, e.serviceName, true
}
