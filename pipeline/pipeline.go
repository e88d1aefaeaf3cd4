// Package pipeline implements the channel handler pipeline: an
// intrusive doubly-linked chain of Contexts that carries inbound events
// from Head to Tail and outbound events from Tail to Head, with
// skip-flag-optimized dispatch and per-context executor affinity.
package pipeline

import (
	"fmt"
	"log/slog"
	"net"
	"reflect"
	"strconv"
	"sync"

	"github.com/ssungk/netpipe/executor"
)

// Metrics is the narrow slice of metrics.Metrics a Pipeline reports
// context churn and exception activity to. *metrics.Metrics satisfies
// it; Pipeline stays free of a direct Prometheus dependency.
type Metrics interface {
	ContextAdded()
	ContextRemoved()
	ExceptionCaught(context string)
	ExceptionUnhandled()
}

// Pipeline owns one channel's Head/Tail sentinels and the handlers
// added between them. Structural mutation (Add*/Remove/Replace) is
// guarded by mu; lifecycle callbacks (handler_added/handler_removed)
// run on the affected context's own executor and are awaited outside
// the lock so a handler that touches the pipeline from its own
// callback cannot deadlock against the mutation that installed it.
type Pipeline struct {
	mu       sync.Mutex
	names    map[string]*Context
	nameSeq  map[string]int
	head     *Context
	tail     *Context
	group    executor.Group
	fallback executor.Executor
	logger   *slog.Logger
	metrics  Metrics

	registered bool
}

// SetMetrics attaches m so subsequent Add*/Remove/Replace/exception
// activity is recorded. Optional; call before wiring up handlers to
// capture everything, though it's safe to call at any point.
func (p *Pipeline) SetMetrics(m Metrics) {
	p.mu.Lock()
	p.metrics = m
	p.mu.Unlock()
}

// New builds a Pipeline for a single channel: unsafe is the transport
// terminal Head delegates outbound operations to, group hands out the
// executor(s) contexts run on, and logger receives diagnostic events
// (unhandled exceptions, discarded messages).
func New(unsafe Unsafe, group executor.Group, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		names:    make(map[string]*Context),
		nameSeq:  make(map[string]int),
		group:    group,
		fallback: group.Next(),
		logger:   logger,
	}
	p.head = newContext(p, "head", &headHandler{unsafe: unsafe}, p.fallback)
	p.tail = newContext(p, "tail", &tailHandler{logger: logger}, p.fallback)
	p.head.state.Store(int32(stateLive))
	p.tail.state.Store(int32(stateLive))
	p.head.next.Store(p.tail)
	p.tail.prev.Store(p.head)
	p.names["head"] = p.head
	p.names["tail"] = p.tail
	return p
}

func (p *Pipeline) logf(format string, args ...any) {
	p.logger.Warn(fmt.Sprintf(format, args...))
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func (p *Pipeline) generateName(h Handler) string {
	base := typeName(h)
	for {
		n := p.nameSeq[base]
		p.nameSeq[base] = n + 1
		name := base + "#" + strconv.Itoa(n)
		if _, exists := p.names[name]; !exists {
			return name
		}
	}
}

func (p *Pipeline) checkSharable(h Handler) error {
	if isSharable(h) {
		return nil
	}
	for _, ctx := range p.names {
		if ctx.handler == h {
			return &NotSharableError{Name: ctx.name}
		}
	}
	return nil
}

// AddLast inserts h immediately before Tail. An empty name requests
// auto-generation. An optional executor.Group binds the new context to
// a worker picked from that group instead of the pipeline's own
// executor; only the first group argument is used.
func (p *Pipeline) AddLast(name string, h Handler, group ...executor.Group) (*Context, error) {
	return p.addBetween(name, h, p.tail.prev.Load(), p.tail, group...)
}

// AddFirst inserts h immediately after Head. See AddLast for the
// optional executor.Group argument.
func (p *Pipeline) AddFirst(name string, h Handler, group ...executor.Group) (*Context, error) {
	return p.addBetween(name, h, p.head, p.head.next.Load(), group...)
}

// AddBefore inserts h immediately before the context named target. See
// AddLast for the optional executor.Group argument.
func (p *Pipeline) AddBefore(target, name string, h Handler, group ...executor.Group) (*Context, error) {
	p.mu.Lock()
	t, ok := p.names[target]
	p.mu.Unlock()
	if !ok {
		return nil, &NotFoundError{Name: target}
	}
	return p.addBetween(name, h, t.prev.Load(), t, group...)
}

// AddAfter inserts h immediately after the context named target. See
// AddLast for the optional executor.Group argument.
func (p *Pipeline) AddAfter(target, name string, h Handler, group ...executor.Group) (*Context, error) {
	p.mu.Lock()
	t, ok := p.names[target]
	p.mu.Unlock()
	if !ok {
		return nil, &NotFoundError{Name: target}
	}
	return p.addBetween(name, h, t, t.next.Load(), group...)
}

func (p *Pipeline) addBetween(name string, h Handler, prev, next *Context, group ...executor.Group) (*Context, error) {
	p.mu.Lock()
	if err := p.checkSharable(h); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if name == "" {
		name = p.generateName(h)
	} else if _, exists := p.names[name]; exists {
		p.mu.Unlock()
		return nil, &DuplicateNameError{Name: name}
	}

	ex := p.fallback
	if len(group) > 0 && group[0] != nil {
		ex = group[0].Next()
	}

	ctx := newContext(p, name, h, ex)
	ctx.state.Store(int32(stateAdded))
	ctx.prev.Store(prev)
	ctx.next.Store(next)
	prev.next.Store(ctx)
	next.prev.Store(ctx)
	p.names[name] = ctx

	registered := p.registered
	p.mu.Unlock()

	p.callHandlerAdded(ctx, registered)
	return ctx, nil
}

// callHandlerAdded runs handler_added for ctx. Per the pipeline's
// lifecycle-dispatch contract: if the channel is not yet registered,
// the callback runs inline on the calling goroutine; once registered,
// it runs on ctx's own executor, submitted and awaited outside the
// pipeline mutex.
func (p *Pipeline) callHandlerAdded(ctx *Context, registered bool) {
	run := func() error {
		ctx.state.Store(int32(stateLive))
		if hh, ok := ctx.handler.(HandlerAddedHandler); ok {
			if err := ctx.safeCall(func() error { return hh.HandlerAdded(ctx) }); err != nil {
				return err
			}
		}
		return nil
	}
	var err error
	switch {
	case !registered:
		err = run()
	case ctx.exec.InEventLoop():
		err = run()
	default:
		err = ctx.exec.Submit(run).Wait()
	}
	if err != nil {
		ctx.FireExceptionCaught(&PipelineError{Phase: "handler_added", Cause: err})
		p.unlinkFailedAdd(ctx)
		return
	}
	if p.metrics != nil {
		p.metrics.ContextAdded()
	}
}

// unlinkFailedAdd removes a context whose handler_added callback failed,
// per the pipeline error contract: a lifecycle failure during add takes
// the context back out rather than leaving it half-installed.
func (p *Pipeline) unlinkFailedAdd(ctx *Context) {
	p.mu.Lock()
	if ctxState(ctx.state.Load()) == stateRemoved {
		p.mu.Unlock()
		return
	}
	ctx.state.Store(int32(stateRemoved))
	prev := ctx.prev.Load()
	next := ctx.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)
	delete(p.names, ctx.name)
	p.mu.Unlock()
}

// Remove unlinks the context named name. handler_removed runs inline if
// the channel is not yet registered, otherwise on that context's own
// executor, awaited before Remove returns.
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	ctx, ok := p.names[name]
	if !ok {
		p.mu.Unlock()
		return &NotFoundError{Name: name}
	}
	if ctx == p.head || ctx == p.tail {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: cannot remove sentinel context %q", name)
	}
	ctx.state.Store(int32(statePendingRemove))
	prev := ctx.prev.Load()
	next := ctx.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)
	delete(p.names, name)
	registered := p.registered
	p.mu.Unlock()

	p.callHandlerRemoved(ctx, registered)
	return nil
}

// callHandlerRemoved runs handler_removed for ctx, with the same
// inline-vs-executor dispatch rule as callHandlerAdded.
func (p *Pipeline) callHandlerRemoved(ctx *Context, registered bool) {
	run := func() error {
		ctx.state.Store(int32(stateRemoved))
		if hh, ok := ctx.handler.(HandlerRemovedHandler); ok {
			return ctx.safeCall(func() error { return hh.HandlerRemoved(ctx) })
		}
		return nil
	}
	var err error
	switch {
	case !registered:
		err = run()
	case ctx.exec.InEventLoop():
		err = run()
	default:
		err = ctx.exec.Submit(run).Wait()
	}
	if err != nil {
		ctx.FireExceptionCaught(&PipelineError{Phase: "handler_removed", Cause: err})
	}
	if p.metrics != nil {
		p.metrics.ContextRemoved()
	}
}

// Replace swaps the handler at name for newHandler under a new name,
// preserving position: the new context is spliced in and lifecycle-added
// first, then the old context is unlinked and lifecycle-removed.
func (p *Pipeline) Replace(name, newName string, newHandler Handler) (*Context, error) {
	p.mu.Lock()
	old, ok := p.names[name]
	if !ok {
		p.mu.Unlock()
		return nil, &NotFoundError{Name: name}
	}
	if err := p.checkSharable(newHandler); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if newName == "" {
		newName = p.generateName(newHandler)
	} else if newName != name {
		if _, exists := p.names[newName]; exists {
			p.mu.Unlock()
			return nil, &DuplicateNameError{Name: newName}
		}
	}

	prev := old.prev.Load()
	next := old.next.Load()
	old.state.Store(int32(statePendingRemove))
	delete(p.names, name)

	nctx := newContext(p, newName, newHandler, old.exec)
	nctx.state.Store(int32(stateAdded))
	nctx.prev.Store(prev)
	nctx.next.Store(next)
	prev.next.Store(nctx)
	next.prev.Store(nctx)
	p.names[newName] = nctx
	registered := p.registered
	p.mu.Unlock()

	p.callHandlerAdded(nctx, registered)
	p.callHandlerRemoved(old, registered)
	return nctx, nil
}

// Context returns the context registered under name.
func (p *Pipeline) Context(name string) (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, ok := p.names[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return ctx, nil
}

// ContextOf returns the context wrapping handler, if present.
func (p *Pipeline) ContextOf(h Handler) (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ctx := range p.names {
		if ctx.handler == h {
			return ctx, nil
		}
	}
	return nil, &NotFoundError{Name: typeName(h)}
}

// ContextOfType returns the first context, in pipeline order, whose
// handler has the same concrete type as sample.
func (p *Pipeline) ContextOfType(sample Handler) (*Context, error) {
	want := reflect.TypeOf(sample)
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := p.head.next.Load(); c != p.tail; c = c.next.Load() {
		if reflect.TypeOf(c.handler) == want {
			return c, nil
		}
	}
	return nil, &NotFoundError{Name: typeName(sample)}
}

// First returns the first non-sentinel context in pipeline order.
func (p *Pipeline) First() (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.head.next.Load()
	if c == p.tail {
		return nil, &NotFoundError{Name: "<empty pipeline>"}
	}
	return c, nil
}

// Last returns the last non-sentinel context in pipeline order.
func (p *Pipeline) Last() (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.tail.prev.Load()
	if c == p.head {
		return nil, &NotFoundError{Name: "<empty pipeline>"}
	}
	return c, nil
}

// Get returns the handler registered under name.
func (p *Pipeline) Get(name string) (Handler, error) {
	ctx, err := p.Context(name)
	if err != nil {
		return nil, err
	}
	return ctx.Handler(), nil
}

// GetType returns the handler of the first context whose handler has
// the same concrete type as sample.
func (p *Pipeline) GetType(sample Handler) (Handler, error) {
	ctx, err := p.ContextOfType(sample)
	if err != nil {
		return nil, err
	}
	return ctx.Handler(), nil
}

// RemoveHandler removes the context wrapping handler instance h.
func (p *Pipeline) RemoveHandler(h Handler) error {
	ctx, err := p.ContextOf(h)
	if err != nil {
		return err
	}
	return p.Remove(ctx.Name())
}

// RemoveType removes the first context, in pipeline order, whose
// handler has the same concrete type as sample.
func (p *Pipeline) RemoveType(sample Handler) error {
	ctx, err := p.ContextOfType(sample)
	if err != nil {
		return err
	}
	return p.Remove(ctx.Name())
}

// Names returns handler context names in pipeline order, excluding the
// Head/Tail sentinels.
func (p *Pipeline) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for c := p.head.next.Load(); c != p.tail; c = c.next.Load() {
		out = append(out, c.name)
	}
	return out
}

// ToMap returns handler-name to Handler in pipeline order, excluding
// the sentinels.
func (p *Pipeline) ToMap() map[string]Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Handler)
	for c := p.head.next.Load(); c != p.tail; c = c.next.Load() {
		out[c.name] = c.handler
	}
	return out
}

// Register marks the pipeline attached to its channel's event loop and
// fires channel_registered down the pipeline. Every context added
// before this call already ran its handler_added callback inline at add
// time, so there is nothing queued here to flush.
func (p *Pipeline) Register() {
	p.mu.Lock()
	p.registered = true
	p.mu.Unlock()

	p.head.invokeChannelRegistered()
}

// --- inbound entry points, always invoked starting at Head ---

func (p *Pipeline) FireChannelRegistered()       { p.head.invokeChannelRegistered() }
func (p *Pipeline) FireChannelUnregistered()     { p.head.invokeChannelUnregistered() }
func (p *Pipeline) FireChannelActive()           { p.head.invokeChannelActive() }
func (p *Pipeline) FireChannelInactive()         { p.head.invokeChannelInactive() }
func (p *Pipeline) FireChannelRead(msg any)      { p.head.invokeChannelRead(msg) }
func (p *Pipeline) FireChannelReadComplete()     { p.head.invokeChannelReadComplete() }
func (p *Pipeline) FireUserEventTriggered(e any) { p.head.invokeUserEventTriggered(e) }
func (p *Pipeline) FireChannelWritabilityChanged() {
	p.head.invokeChannelWritabilityChanged()
}
func (p *Pipeline) FireExceptionCaught(cause error) { p.head.invokeExceptionCaught(cause) }

// --- outbound entry points, always invoked starting at Tail ---

func (p *Pipeline) Bind(localAddr net.Addr, promise *Promise) {
	p.tail.invokeBind(localAddr, promise)
}
func (p *Pipeline) Connect(remoteAddr, localAddr net.Addr, promise *Promise) {
	p.tail.invokeConnect(remoteAddr, localAddr, promise)
}
func (p *Pipeline) Disconnect(promise *Promise) { p.tail.invokeDisconnect(promise) }
func (p *Pipeline) Close(promise *Promise)      { p.tail.invokeClose(promise) }
func (p *Pipeline) Deregister(promise *Promise) { p.tail.invokeDeregister(promise) }
func (p *Pipeline) Read()                       { p.tail.invokeRead() }
func (p *Pipeline) Write(msg any, promise *Promise) {
	p.tail.invokeWrite(msg, promise)
}
func (p *Pipeline) Flush() { p.tail.invokeFlush() }

// Destroy drains the pipeline in the order Netty's DefaultChannelPipeline
// uses: destroyUp walks forward from Head as a pure barrier that removes
// nothing, then destroyDown walks backward from Tail unlinking and
// firing handler_removed on every context still in the chain. Splitting
// it this way means every still-live handler keeps seeing events (the
// forward walk touches nothing) right up until the backward pass
// actually tears it down, matching handler removal happening "after all
// events are handled."
func (p *Pipeline) Destroy() {
	p.destroyUp()
	p.destroyDown()
}

// destroyUp walks forward from Head to Tail and, for each context on a
// different executor than the caller's, waits for a no-op task on that
// executor, so events already queued there are handled first. It
// removes nothing itself.
func (p *Pipeline) destroyUp() {
	p.mu.Lock()
	var forward []*Context
	for c := p.head.next.Load(); c != p.tail; c = c.next.Load() {
		forward = append(forward, c)
	}
	p.mu.Unlock()
	for _, c := range forward {
		if c.exec != nil && !c.exec.InEventLoop() {
			_ = c.exec.Submit(func() error { return nil }).Wait()
		}
	}
}

func (p *Pipeline) destroyDown() {
	p.mu.Lock()
	var backward []*Context
	for c := p.tail.prev.Load(); c != p.head; c = c.prev.Load() {
		if ctxState(c.state.Load()) != stateRemoved {
			backward = append(backward, c)
		}
	}
	p.mu.Unlock()
	for _, c := range backward {
		p.removeForDestroy(c)
	}
}

func (p *Pipeline) removeForDestroy(ctx *Context) {
	p.mu.Lock()
	if ctxState(ctx.state.Load()) == stateRemoved {
		p.mu.Unlock()
		return
	}
	ctx.state.Store(int32(statePendingRemove))
	prev := ctx.prev.Load()
	next := ctx.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)
	delete(p.names, ctx.name)
	p.mu.Unlock()
	// Destroy only runs against a channel that has already been
	// registered and is tearing down, so lifecycle callbacks always go
	// through the context's own executor here.
	p.callHandlerRemoved(ctx, true)
}
