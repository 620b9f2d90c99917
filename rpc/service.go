package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/internal/registry"
	"github.com/corelane/ipcrpc/logging"
)

// defaultMailboxCapacity bounds how many in-flight requests a single
// service actor's mailbox will buffer before DeserializeInto callers
// start blocking on delivery — mirroring an actor's single-threaded,
// one-message-at-a-time processing model (spec.md §5).
const defaultMailboxCapacity = 32

// Handler is implemented by a service actor handling request type T.
// Go has no inheritance-based trait; this generic interface is the
// idiomatic equivalent of spec.md §4.6's "actor gains a method."
type Handler[T any] interface {
	Handle(ctx context.Context, req T) (envelope.Envelope, error)
}

// HandlerFunc adapts a plain function to Handler[T], the way the
// standard library's http.HandlerFunc adapts a function to http.Handler.
type HandlerFunc[T any] func(ctx context.Context, req T) (envelope.Envelope, error)

// Handle implements Handler[T].
func (f HandlerFunc[T]) Handle(ctx context.Context, req T) (envelope.Envelope, error) {
	return f(ctx, req)
}

// ErrDowncastFailure indicates the registry's type tag matched but the
// stored payload did not assert to the handler's expected type — an
// internal invariant violation that should be unreachable given
// RegisterService's compile-time type capture. Treated as fatal.
var ErrDowncastFailure = errors.New("rpc: registry downcast failure")

// ErrHandlerMailboxFailure indicates the registered handler's owning
// actor has stopped accepting work (its mailbox goroutine exited or the
// caller's context was cancelled while waiting on it). spec.md's
// conservative disposition treats this the same as a downcast failure:
// fatal, not a per-request error, because silently dropping the request
// would hang the remote caller's pending entry forever.
var ErrHandlerMailboxFailure = errors.New("rpc: handler mailbox failure")

type mailboxTask[T any] struct {
	ctx     context.Context
	payload T
	result  chan mailboxResult
}

type mailboxResult struct {
	env envelope.Envelope
	err error
}

// RegisterService installs handler as the owner of service messages of
// type T. It starts a single goroutine — the actor's mailbox — that
// processes one request at a time, in arrival order, matching spec.md
// §5's single-threaded cooperative task model. The resulting delivery
// handle is a closure that captures T at compile time, so the downcast
// from the registry's type-erased `any` back to T cannot fail; if it
// ever does, that is reported as ErrDowncastFailure and treated as
// fatal, per spec.md §4.4.
func RegisterService[T any](core *Core, serviceName, actorName string, handler Handler[T]) {
	tag := registry.TagOf[T]()

	mailbox := make(chan mailboxTask[T], defaultMailboxCapacity)
	done := make(chan struct{})
	go runMailbox(mailbox, done, handler)

	handle := func(ctx context.Context, payload any) (envelope.Envelope, error) {
		typed, ok := payload.(T)
		if !ok {
			return envelope.Envelope{}, fmt.Errorf("%w: service %q", ErrDowncastFailure, serviceName)
		}

		result := make(chan mailboxResult, 1)
		select {
		case mailbox <- mailboxTask[T]{ctx: ctx, payload: typed, result: result}:
		case <-done:
			return envelope.Envelope{}, fmt.Errorf("%w: actor %q mailbox closed", ErrHandlerMailboxFailure, actorName)
		case <-ctx.Done():
			return envelope.Envelope{}, fmt.Errorf("%w: %v", ErrHandlerMailboxFailure, ctx.Err())
		}

		select {
		case r := <-result:
			return r.env, r.err
		case <-done:
			return envelope.Envelope{}, fmt.Errorf("%w: actor %q mailbox closed while awaiting response", ErrHandlerMailboxFailure, actorName)
		}
	}

	core.registry.Register(tag, serviceName, actorName, handle)
}

func runMailbox[T any](mailbox chan mailboxTask[T], done chan struct{}, handler Handler[T]) {
	defer close(done)
	for task := range mailbox {
		env, err := handler.Handle(task.ctx, task.payload)
		task.result <- mailboxResult{env: env, err: err}
	}
}

// DeserializeInto is called by a MatcherFunc once it has identified T
// from the inbound envelope's service name. It looks up the handler
// registered for T; if none is registered, or the payload fails to
// decode into T, it sends an Error-kind envelope back via reply,
// preserving the original ConnId (spec.md §4.5's deser_into). On
// success it forwards the typed value to the handler and sends the
// handler's returned envelope back via reply as a Response, also
// preserving the ConnId.
//
// DeserializeInto is a free function, not a method on *Core, because Go
// methods cannot carry their own type parameters — the idiomatic
// workaround, used throughout this module, is a package-level generic
// function taking the receiver explicitly.
func DeserializeInto[T any](ctx context.Context, core *Core, env envelope.Envelope, reply PeerAddress) {
	tag := registry.TagOf[T]()

	handle, _, ok := core.registry.Lookup(tag)
	if !ok {
		core.SendError(reply, env.Service, fmt.Sprintf("no handler is registered for service: %s", env.Service), env.ConnID)
		return
	}

	var payload T
	if err := env.Unmarshal(&payload); err != nil {
		core.SendError(reply, env.Service, fmt.Sprintf("could not deserialize payload for service %q: %v", env.Service, err), env.ConnID)
		return
	}

	resp, err := handle(ctx, payload)
	if err != nil {
		if errors.Is(err, ErrDowncastFailure) || errors.Is(err, ErrHandlerMailboxFailure) {
			core.log.Critical("handler dispatch failed fatally", logging.Fields{
				"service": env.Service,
				"error":   err.Error(),
			})
			return
		}
		core.SendError(reply, env.Service, err.Error(), env.ConnID)
		return
	}

	resp.ConnID = env.ConnID
	resp.Kind = envelope.Response
	if err := reply.Send(resp); err != nil {
		core.log.Error("could not send response envelope", logging.Fields{"service": env.Service, "error": err.Error()})
	}
}
