package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/ssungk/netpipe/buffer"
)

// headHandler is the outbound terminal and inbound pass-through
// sentinel that always occupies position zero of a Pipeline, its "Head".
// Its skip flags are always zero: it implements every event kind so
// propagation never has to special-case it.
type headHandler struct {
	unsafe Unsafe
}

func (h *headHandler) ChannelRegistered(ctx *Context) error       { ctx.FireChannelRegistered(); return nil }
func (h *headHandler) ChannelUnregistered(ctx *Context) error     { ctx.FireChannelUnregistered(); return nil }
func (h *headHandler) ChannelActive(ctx *Context) error           { ctx.FireChannelActive(); return nil }
func (h *headHandler) ChannelInactive(ctx *Context) error         { ctx.FireChannelInactive(); return nil }
func (h *headHandler) ChannelRead(ctx *Context, msg any) error    { ctx.FireChannelRead(msg); return nil }
func (h *headHandler) ChannelReadComplete(ctx *Context) error     { ctx.FireChannelReadComplete(); return nil }
func (h *headHandler) UserEventTriggered(ctx *Context, e any) error {
	ctx.FireUserEventTriggered(e)
	return nil
}
func (h *headHandler) ChannelWritabilityChanged(ctx *Context) error {
	ctx.FireChannelWritabilityChanged()
	return nil
}
func (h *headHandler) ExceptionCaught(ctx *Context, cause error) error {
	ctx.FireExceptionCaught(cause)
	return nil
}

func (h *headHandler) Bind(ctx *Context, localAddr net.Addr, promise *Promise) error {
	err := h.unsafe.Bind(localAddr)
	completePromise(promise, err)
	return nil
}

func (h *headHandler) Connect(ctx *Context, remoteAddr, localAddr net.Addr, promise *Promise) error {
	err := h.unsafe.Connect(remoteAddr, localAddr)
	completePromise(promise, err)
	return nil
}

func (h *headHandler) Disconnect(ctx *Context, promise *Promise) error {
	err := h.unsafe.Disconnect()
	completePromise(promise, err)
	return nil
}

func (h *headHandler) Close(ctx *Context, promise *Promise) error {
	err := h.unsafe.Close()
	completePromise(promise, err)
	return nil
}

func (h *headHandler) Deregister(ctx *Context, promise *Promise) error {
	err := h.unsafe.Deregister()
	completePromise(promise, err)
	return nil
}

func (h *headHandler) Read(ctx *Context) error {
	return h.unsafe.BeginRead()
}

func (h *headHandler) Write(ctx *Context, msg any, promise *Promise) error {
	err := h.unsafe.Write(msg)
	completePromise(promise, err)
	return nil
}

func (h *headHandler) Flush(ctx *Context) error {
	return h.unsafe.Flush()
}

func completePromise(p *Promise, err error) {
	if p != nil {
		p.Complete(err)
	}
}

// releasable is implemented by any inbound message that owns pooled
// storage a consumer must give back (see buffer.Buffer.Release).
type releasable interface {
	Release() error
}

// tailHandler is the inbound terminal and outbound pass-through
// sentinel that always occupies the last position of a Pipeline. An
// inbound message that reaches Tail without being consumed by any
// handler is released and logged, matching Netty's default
// ChannelInboundHandlerAdapter behavior.
type tailHandler struct {
	logger *slog.Logger
}

func (t *tailHandler) ChannelRegistered(ctx *Context) error   { return nil }
func (t *tailHandler) ChannelUnregistered(ctx *Context) error { return nil }
func (t *tailHandler) ChannelActive(ctx *Context) error       { return nil }
func (t *tailHandler) ChannelInactive(ctx *Context) error     { return nil }

// discardDumpLimit bounds how many leading bytes of a discarded buffer
// payload get hex-dumped into the log line, keeping one stray message
// from flooding it.
const discardDumpLimit = 32

func (t *tailHandler) ChannelRead(ctx *Context, msg any) error {
	dump := ""
	if b, ok := msg.(*buffer.Buffer); ok {
		n := b.ReadableBytes()
		if n > discardDumpLimit {
			n = discardDumpLimit
		}
		dump = buffer.HexDump(b, b.ReaderIndex(), n)
	}
	if r, ok := msg.(releasable); ok {
		r.Release()
	}
	t.logger.Debug("discarded inbound message with no handler to consume it",
		"context", ctx.Name(), "err", &UnhandledInboundError{Type: typeName(msg)}, "payload", dump)
	return nil
}

func (t *tailHandler) ChannelReadComplete(ctx *Context) error       { return nil }
func (t *tailHandler) UserEventTriggered(ctx *Context, e any) error { return nil }
func (t *tailHandler) ChannelWritabilityChanged(ctx *Context) error { return nil }

func (t *tailHandler) ExceptionCaught(ctx *Context, cause error) error {
	if m := ctx.pipeline.metrics; m != nil {
		m.ExceptionUnhandled()
	}
	if errors.Is(cause, io.EOF) {
		t.logger.Debug("exception reached tail unhandled", "cause", cause)
		return nil
	}
	t.logger.Warn("exception reached tail unhandled", "cause", &UnhandledExceptionError{Cause: cause})
	return nil
}

func (t *tailHandler) Bind(ctx *Context, localAddr net.Addr, promise *Promise) error {
	ctx.Bind(localAddr, promise)
	return nil
}

func (t *tailHandler) Connect(ctx *Context, remoteAddr, localAddr net.Addr, promise *Promise) error {
	ctx.Connect(remoteAddr, localAddr, promise)
	return nil
}

func (t *tailHandler) Disconnect(ctx *Context, promise *Promise) error {
	ctx.Disconnect(promise)
	return nil
}

func (t *tailHandler) Close(ctx *Context, promise *Promise) error {
	ctx.Close(promise)
	return nil
}

func (t *tailHandler) Deregister(ctx *Context, promise *Promise) error {
	ctx.Deregister(promise)
	return nil
}

func (t *tailHandler) Read(ctx *Context) error {
	ctx.Read()
	return nil
}

func (t *tailHandler) Write(ctx *Context, msg any, promise *Promise) error {
	ctx.Write(msg, promise)
	return nil
}

func (t *tailHandler) Flush(ctx *Context) error {
	ctx.Flush()
	return nil
}
