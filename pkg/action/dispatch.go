package action

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler executes one action kind and returns its result payload.
type Handler func(ctx context.Context, req Request) (any, error)

// Mux routes requests to registered handlers and guarantees every request
// produces exactly one structured response, panics included.
type Mux struct {
	handlers map[Kind]Handler
	log      *zap.Logger
}

// NewMux creates an empty dispatcher.
func NewMux(log *zap.Logger) *Mux {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mux{handlers: map[Kind]Handler{}, log: log}
}

// Handle registers handler for kind, replacing any previous registration.
func (m *Mux) Handle(kind Kind, handler Handler) {
	m.handlers[kind] = handler
}

// Dispatch runs the handler for req.Kind. An unknown kind, a handler error,
// and a handler panic all become failure responses; a nil error becomes a
// success response carrying the handler's payload.
func (m *Mux) Dispatch(ctx context.Context, req Request) (resp Response) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := m.log.With(zap.String("request", req.ID), zap.String("action", string(req.Kind)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("action handler panicked", zap.Any("panic", r))
			resp = Fail(NewError(CodeActionFailed, "internal failure: %v", r))
		}
	}()

	handler, ok := m.handlers[req.Kind]
	if !ok {
		log.Warn("unsupported action")
		return Fail(NewError(CodeUnsupportedAction, "unsupported action: %s", req.Kind))
	}

	data, err := handler(ctx, req)
	if err != nil {
		typed := AsError(err)
		log.Warn("action failed", zap.String("code", string(typed.Code)), zap.String("message", typed.Message))
		return Fail(typed)
	}
	log.Debug("action succeeded")
	return Succeed(data)
}

// Succeed builds a success response.
func Succeed(data any) Response {
	return Response{OK: true, Data: data}
}

// Fail builds a failure response.
func Fail(err *Error) Response {
	return Response{OK: false, Error: err}
}

// Responder delivers a response to an external caller at most once; later
// sends are dropped. Mirrors the reply discipline of a request/response
// message channel where double replies are protocol errors.
type Responder struct {
	once sync.Once
	send func(Response)
}

// NewResponder wraps send in a single-use reply.
func NewResponder(send func(Response)) *Responder {
	return &Responder{send: send}
}

// Send delivers resp if nothing was delivered before.
func (r *Responder) Send(resp Response) {
	r.once.Do(func() {
		if r.send != nil {
			r.send(resp)
		}
	})
}
