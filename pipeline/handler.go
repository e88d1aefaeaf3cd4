package pipeline

import (
	"net"

	"github.com/ssungk/netpipe/executor"
)

// Handler is intentionally the empty interface: a concrete handler
// implements whichever of the optional interfaces below it needs, and
// Context computes skip_flags once at construction by testing which of
// them the value satisfies.
// There is no base class to embed and no method to leave as a no-op.
type Handler = any

// Promise is the write-once completion handle for an outbound
// operation: the transport terminal at Head completes it, and callers
// further down the outbound chain may wait on it.
type Promise = executor.Future

// NewPromise creates an incomplete Promise for an outbound operation.
func NewPromise() *Promise { return executor.NewPromise() }

// Sharable is the marker interface a Handler implements to opt out of
// the "one position, one pipeline" rule.
type Sharable interface {
	PipelineSharable()
}

func isSharable(h Handler) bool {
	_, ok := h.(Sharable)
	return ok
}

// --- lifecycle ---

type HandlerAddedHandler interface {
	HandlerAdded(ctx *Context) error
}

type HandlerRemovedHandler interface {
	HandlerRemoved(ctx *Context) error
}

// --- inbound ---

type ChannelRegisteredHandler interface {
	ChannelRegistered(ctx *Context) error
}

type ChannelUnregisteredHandler interface {
	ChannelUnregistered(ctx *Context) error
}

type ChannelActiveHandler interface {
	ChannelActive(ctx *Context) error
}

type ChannelInactiveHandler interface {
	ChannelInactive(ctx *Context) error
}

type ChannelReadHandler interface {
	ChannelRead(ctx *Context, msg any) error
}

type ChannelReadCompleteHandler interface {
	ChannelReadComplete(ctx *Context) error
}

type UserEventHandler interface {
	UserEventTriggered(ctx *Context, evt any) error
}

type ChannelWritabilityChangedHandler interface {
	ChannelWritabilityChanged(ctx *Context) error
}

type ExceptionCaughtHandler interface {
	ExceptionCaught(ctx *Context, cause error) error
}

// --- outbound ---

type BindHandler interface {
	Bind(ctx *Context, localAddr net.Addr, promise *Promise) error
}

type ConnectHandler interface {
	Connect(ctx *Context, remoteAddr, localAddr net.Addr, promise *Promise) error
}

type DisconnectHandler interface {
	Disconnect(ctx *Context, promise *Promise) error
}

type CloseHandler interface {
	Close(ctx *Context, promise *Promise) error
}

type DeregisterHandler interface {
	Deregister(ctx *Context, promise *Promise) error
}

type ReadRequestHandler interface {
	Read(ctx *Context) error
}

type WriteHandler interface {
	Write(ctx *Context, msg any, promise *Promise) error
}

type FlushHandler interface {
	Flush(ctx *Context) error
}
