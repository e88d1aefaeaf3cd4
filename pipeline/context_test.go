package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicHandler struct{}

func (panicHandler) ChannelRead(ctx *Context, msg any) error {
	panic("kaboom")
}

func TestPanicInHandlerBecomesExceptionCaught(t *testing.T) {
	p, _ := newPipelineForTest(t)
	caught := make(chan error, 1)

	_, err := p.AddLast("panics", panicHandler{})
	require.NoError(t, err)
	_, err = p.AddLast("catcher", &catchExceptionHandler{caught: caught})
	require.NoError(t, err)

	p.Register()
	p.FireChannelRead("x")

	select {
	case err := <-caught:
		assert.Contains(t, err.Error(), "kaboom")
	case <-time.After(2 * time.Second):
		t.Fatal("panic never converted to exception_caught")
	}
}

// A context removed mid-flight must not receive further events, but
// in-flight propagation that already passed it must still reach live
// contexts further down the chain ("removed contexts never
// receive new events" combined with "propagation already under way
// completes").
func TestRemovedContextIsBypassedNotDeadEnd(t *testing.T) {
	p, _ := newPipelineForTest(t)

	first := &captureThenRemoveHandler{}
	_, err := p.AddLast("first", first)
	require.NoError(t, err)

	last := make(chan string, 1)
	_, err = p.AddLast("last", &nameCaptureHandler{out: last})
	require.NoError(t, err)

	p.Register()
	p.FireChannelRead("x")

	select {
	case name := <-last:
		assert.Equal(t, "last", name)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the context after the one that removed itself")
	}
}

// captureThenRemoveHandler marks its own context removed while handling
// one event and then propagates that event onward, to exercise a
// structural mutation racing with in-flight propagation.
type captureThenRemoveHandler struct{}

func (h *captureThenRemoveHandler) ChannelRead(ctx *Context, msg any) error {
	// Removing "first" itself would drop the context object we're
	// running on; instead we simulate a concurrent removal of this
	// context from another goroutine finishing just as this callback
	// returns, by marking it removed directly.
	ctx.state.Store(int32(stateRemoved))
	ctx.FireChannelRead(msg)
	return nil
}

type nameCaptureHandler struct {
	out chan string
}

func (h *nameCaptureHandler) ChannelRead(ctx *Context, msg any) error {
	h.out <- ctx.Name()
	return nil
}
