package pipeline

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/ssungk/netpipe/executor"
)

type ctxState int32

const (
	stateAdded ctxState = iota
	stateLive
	statePendingRemove
	stateRemoved
)

// Context wraps one handler's position in a Pipeline: its links, its
// executor binding, and the skip_flags precomputed from the handler's
// declared capability set.
type Context struct {
	pipeline *Pipeline
	name     string
	handler  Handler
	prev     atomic.Pointer[Context]
	next     atomic.Pointer[Context]
	exec     executor.Executor
	skip     eventMask
	state    atomic.Int32
}

func newContext(p *Pipeline, name string, h Handler, ex executor.Executor) *Context {
	return &Context{
		pipeline: p,
		name:     name,
		handler:  h,
		exec:     ex,
		skip:     computeSkipFlags(h),
	}
}

// Name returns the context's unique, non-empty name.
func (c *Context) Name() string { return c.name }

// Handler returns the wrapped handler.
func (c *Context) Handler() Handler { return c.handler }

// Pipeline returns the owning pipeline.
func (c *Context) Pipeline() *Pipeline { return c.pipeline }

// Executor returns the executor this context's callbacks run on.
func (c *Context) Executor() executor.Executor { return c.exec }

func (c *Context) isRemoved() bool { return ctxState(c.state.Load()) == stateRemoved }

func (c *Context) dispatch(task func()) {
	if c.exec == nil || c.exec.InEventLoop() {
		task()
		return
	}
	c.exec.Execute(task)
}

func (c *Context) safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: handler %q panicked: %v", c.name, r)
		}
	}()
	return fn()
}

func (c *Context) findNextInbound(kind eventMask) *Context {
	n := c.next.Load()
	for n != nil && (n.isRemoved() || n.skip&kind != 0) {
		n = n.next.Load()
	}
	return n
}

func (c *Context) findPrevOutbound(kind eventMask) *Context {
	p := c.prev.Load()
	for p != nil && (p.isRemoved() || p.skip&kind != 0) {
		p = p.prev.Load()
	}
	return p
}

// --- inbound Fire* : find the next capable context and invoke it there ---

func (c *Context) FireChannelRegistered() {
	if n := c.findNextInbound(evChannelRegistered); n != nil {
		n.invokeChannelRegistered()
	}
}

func (c *Context) FireChannelUnregistered() {
	if n := c.findNextInbound(evChannelUnregistered); n != nil {
		n.invokeChannelUnregistered()
	}
}

func (c *Context) FireChannelActive() {
	if n := c.findNextInbound(evChannelActive); n != nil {
		n.invokeChannelActive()
	}
}

func (c *Context) FireChannelInactive() {
	if n := c.findNextInbound(evChannelInactive); n != nil {
		n.invokeChannelInactive()
	}
}

func (c *Context) FireChannelRead(msg any) {
	if n := c.findNextInbound(evChannelRead); n != nil {
		n.invokeChannelRead(msg)
	}
}

func (c *Context) FireChannelReadComplete() {
	if n := c.findNextInbound(evChannelReadComplete); n != nil {
		n.invokeChannelReadComplete()
	}
}

func (c *Context) FireUserEventTriggered(evt any) {
	if n := c.findNextInbound(evUserEvent); n != nil {
		n.invokeUserEventTriggered(evt)
	}
}

func (c *Context) FireChannelWritabilityChanged() {
	if n := c.findNextInbound(evChannelWritabilityChanged); n != nil {
		n.invokeChannelWritabilityChanged()
	}
}

func (c *Context) FireExceptionCaught(cause error) {
	if m := c.pipeline.metrics; m != nil {
		m.ExceptionCaught(c.name)
	}
	if n := c.findNextInbound(evExceptionCaught); n != nil {
		n.invokeExceptionCaught(cause)
	}
}

// --- outbound Fire* : find the previous capable context (toward Head) ---

func (c *Context) Bind(localAddr net.Addr, promise *Promise) {
	if p := c.findPrevOutbound(evBind); p != nil {
		p.invokeBind(localAddr, promise)
	}
}

func (c *Context) Connect(remoteAddr, localAddr net.Addr, promise *Promise) {
	if p := c.findPrevOutbound(evConnect); p != nil {
		p.invokeConnect(remoteAddr, localAddr, promise)
	}
}

func (c *Context) Disconnect(promise *Promise) {
	if p := c.findPrevOutbound(evDisconnect); p != nil {
		p.invokeDisconnect(promise)
	}
}

func (c *Context) Close(promise *Promise) {
	if p := c.findPrevOutbound(evClose); p != nil {
		p.invokeClose(promise)
	}
}

func (c *Context) Deregister(promise *Promise) {
	if p := c.findPrevOutbound(evDeregister); p != nil {
		p.invokeDeregister(promise)
	}
}

func (c *Context) Read() {
	if p := c.findPrevOutbound(evOutboundRead); p != nil {
		p.invokeRead()
	}
}

func (c *Context) Write(msg any, promise *Promise) {
	if p := c.findPrevOutbound(evWrite); p != nil {
		p.invokeWrite(msg, promise)
	}
}

func (c *Context) Flush() {
	if p := c.findPrevOutbound(evFlush); p != nil {
		p.invokeFlush()
	}
}

// --- invoke* : call the handler at this context, converting a returned
// error or panic into an exception_caught event fired at the next
// context. ---

func (c *Context) invokeChannelRegistered() {
	c.dispatch(func() {
		h := c.handler.(ChannelRegisteredHandler)
		if err := c.safeCall(func() error { return h.ChannelRegistered(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeChannelUnregistered() {
	c.dispatch(func() {
		h := c.handler.(ChannelUnregisteredHandler)
		if err := c.safeCall(func() error { return h.ChannelUnregistered(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeChannelActive() {
	c.dispatch(func() {
		h := c.handler.(ChannelActiveHandler)
		if err := c.safeCall(func() error { return h.ChannelActive(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeChannelInactive() {
	c.dispatch(func() {
		h := c.handler.(ChannelInactiveHandler)
		if err := c.safeCall(func() error { return h.ChannelInactive(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeChannelRead(msg any) {
	c.dispatch(func() {
		h := c.handler.(ChannelReadHandler)
		if err := c.safeCall(func() error { return h.ChannelRead(c, msg) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeChannelReadComplete() {
	c.dispatch(func() {
		h := c.handler.(ChannelReadCompleteHandler)
		if err := c.safeCall(func() error { return h.ChannelReadComplete(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeUserEventTriggered(evt any) {
	c.dispatch(func() {
		h := c.handler.(UserEventHandler)
		if err := c.safeCall(func() error { return h.UserEventTriggered(c, evt) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeChannelWritabilityChanged() {
	c.dispatch(func() {
		h := c.handler.(ChannelWritabilityChangedHandler)
		if err := c.safeCall(func() error { return h.ChannelWritabilityChanged(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeExceptionCaught(cause error) {
	c.dispatch(func() {
		h := c.handler.(ExceptionCaughtHandler)
		if err := c.safeCall(func() error { return h.ExceptionCaught(c, cause) }); err != nil {
			// A handler that fails while handling an exception logs and stops;
			// there's no further "next" to escalate to but Tail itself.
			c.pipeline.logf("exception_caught handler %q itself failed: %v", c.name, err)
		}
	})
}

func (c *Context) invokeBind(localAddr net.Addr, promise *Promise) {
	c.dispatch(func() {
		h := c.handler.(BindHandler)
		if err := c.safeCall(func() error { return h.Bind(c, localAddr, promise) }); err != nil {
			c.failPromise(promise, err)
		}
	})
}

func (c *Context) invokeConnect(remoteAddr, localAddr net.Addr, promise *Promise) {
	c.dispatch(func() {
		h := c.handler.(ConnectHandler)
		if err := c.safeCall(func() error { return h.Connect(c, remoteAddr, localAddr, promise) }); err != nil {
			c.failPromise(promise, err)
		}
	})
}

func (c *Context) invokeDisconnect(promise *Promise) {
	c.dispatch(func() {
		h := c.handler.(DisconnectHandler)
		if err := c.safeCall(func() error { return h.Disconnect(c, promise) }); err != nil {
			c.failPromise(promise, err)
		}
	})
}

func (c *Context) invokeClose(promise *Promise) {
	c.dispatch(func() {
		h := c.handler.(CloseHandler)
		if err := c.safeCall(func() error { return h.Close(c, promise) }); err != nil {
			c.failPromise(promise, err)
		}
	})
}

func (c *Context) invokeDeregister(promise *Promise) {
	c.dispatch(func() {
		h := c.handler.(DeregisterHandler)
		if err := c.safeCall(func() error { return h.Deregister(c, promise) }); err != nil {
			c.failPromise(promise, err)
		}
	})
}

func (c *Context) invokeRead() {
	c.dispatch(func() {
		h := c.handler.(ReadRequestHandler)
		if err := c.safeCall(func() error { return h.Read(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) invokeWrite(msg any, promise *Promise) {
	c.dispatch(func() {
		h := c.handler.(WriteHandler)
		if err := c.safeCall(func() error { return h.Write(c, msg, promise) }); err != nil {
			c.failPromise(promise, err)
		}
	})
}

func (c *Context) invokeFlush() {
	c.dispatch(func() {
		h := c.handler.(FlushHandler)
		if err := c.safeCall(func() error { return h.Flush(c) }); err != nil {
			c.FireExceptionCaught(&HandlerError{Cause: err})
		}
	})
}

func (c *Context) failPromise(promise *Promise, err error) {
	if promise != nil {
		promise.Complete(err)
		return
	}
	c.FireExceptionCaught(&HandlerError{Cause: err})
}
