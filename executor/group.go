package executor

import "sync/atomic"

// LoopGroup is a fixed-size, round-robin pool of Loops, handed out to
// pipeline contexts that request an affinity-bound executor distinct
// from the channel's own event loop.
type LoopGroup struct {
	loops []*Loop
	next  atomic.Uint64
}

// NewLoopGroup starts n Loops, each with the given task queue depth, and
// returns a Group over them.
func NewLoopGroup(n, queueDepth int) *LoopGroup {
	if n <= 0 {
		n = 1
	}
	g := &LoopGroup{loops: make([]*Loop, n)}
	for i := range g.loops {
		loop := NewLoop(queueDepth)
		g.loops[i] = loop
		go loop.Run()
	}
	return g
}

// Next returns the next Loop in round-robin order. A context binds to
// the returned Loop for its lifetime rather than calling Next again. The
// Loop is not reserved for that context: every len(loops) calls hand the
// same Loop out again, so several contexts may share it.
func (g *LoopGroup) Next() Executor {
	idx := g.next.Add(1) - 1
	return g.loops[idx%uint64(len(g.loops))]
}

// Stop stops every Loop in the group.
func (g *LoopGroup) Stop() {
	for _, l := range g.loops {
		l.Stop()
	}
}
