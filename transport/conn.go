// Package transport supplies the pipeline.Unsafe terminal that turns
// outbound pipeline events into real socket I/O, using a buffered,
// byte-metering net.Conn wrapper.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ssungk/netpipe/buffer"
	"github.com/ssungk/netpipe/metrics"
	"github.com/ssungk/netpipe/pipeline"
)

const ioBufferSize = 8192

var errNotAClientConn = errors.New("transport: Bind/Connect not supported on an accepted connection")

// Conn is a pipeline.Unsafe backed by a real net.Conn. One Conn serves
// exactly one Pipeline for the lifetime of the connection.
type Conn struct {
	id      string
	netConn net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	writeMu sync.Mutex

	alloc   buffer.Allocator
	metrics *metrics.Metrics
	logger  *slog.Logger

	pipeline   *pipeline.Pipeline
	reading    atomic.Bool
	closed     atomic.Bool
	done       chan struct{}
	maxMsgSize int
}

// New wraps nc as a pipeline.Unsafe. Attach must be called with the
// owning Pipeline before any outbound event reaches this Conn.
// maxMsgSize bounds how large a single inbound buffer.Buffer may grow
// (config.BufferConfig.MaxCapacity); zero picks ioBufferSize.
func New(id string, nc net.Conn, alloc buffer.Allocator, m *metrics.Metrics, logger *slog.Logger, maxMsgSize int) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if maxMsgSize < ioBufferSize {
		maxMsgSize = ioBufferSize
	}
	return &Conn{
		id:         id,
		netConn:    nc,
		r:          bufio.NewReaderSize(nc, ioBufferSize),
		w:          bufio.NewWriterSize(nc, ioBufferSize),
		alloc:      alloc,
		metrics:    m,
		logger:     logger,
		done:       make(chan struct{}),
		maxMsgSize: maxMsgSize,
	}
}

// Done returns a channel that closes once the connection has been
// closed, letting an accept-loop goroutine park without racing the
// pipeline's own reads against the socket.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Attach binds the Conn to the Pipeline it drives. Call once, before
// Register.
func (c *Conn) Attach(p *pipeline.Pipeline) { c.pipeline = p }

// ID returns the connection's identifier, typically a uuid string
// assigned by the accept loop.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// --- pipeline.Unsafe ---

func (c *Conn) Bind(net.Addr) error { return errNotAClientConn }

func (c *Conn) Connect(net.Addr, net.Addr) error { return errNotAClientConn }

func (c *Conn) Disconnect() error { return c.Close() }

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.w.Flush()
	c.writeMu.Unlock()
	err := c.netConn.Close()
	if c.pipeline != nil {
		c.pipeline.FireChannelInactive()
		c.pipeline.FireChannelUnregistered()
		c.pipeline.Destroy()
	}
	close(c.done)
	return err
}

func (c *Conn) Deregister() error { return nil }

// BeginRead starts the connection's read loop the first time it is
// called; further calls are no-ops, since one goroutine already owns
// reading from netConn for the lifetime of the connection.
func (c *Conn) BeginRead() error {
	if !c.reading.CompareAndSwap(false, true) {
		return nil
	}
	go c.readLoop()
	return nil
}

func (c *Conn) readLoop() {
	tmp := make([]byte, ioBufferSize)
	for {
		n, err := c.r.Read(tmp)
		if n > 0 {
			buf, allocErr := c.alloc.NewBuffer(n, c.maxMsgSize)
			if allocErr != nil {
				if c.pipeline != nil {
					c.pipeline.FireExceptionCaught(fmt.Errorf("transport: allocate read buffer: %w", allocErr))
				}
			} else {
				_ = buf.WriteBytes(tmp[:n])
				if c.metrics != nil {
					c.metrics.BytesRead.Add(float64(n))
				}
				if c.pipeline != nil {
					c.pipeline.FireChannelRead(buf)
					c.pipeline.FireChannelReadComplete()
				}
			}
		}
		if err != nil {
			if c.pipeline != nil && !c.closed.Load() {
				c.pipeline.FireExceptionCaught(fmt.Errorf("transport: read: %w", err))
			}
			_ = c.Close()
			return
		}
	}
}

// Write accepts a *buffer.Buffer and copies its readable bytes to the
// underlying connection's write buffer without flushing.
func (c *Conn) Write(msg any) error {
	buf, ok := msg.(*buffer.Buffer)
	if !ok {
		return fmt.Errorf("transport: Write: unsupported message type %T", msg)
	}
	defer buf.Release()

	n := buf.ReadableBytes()
	if n == 0 {
		return nil
	}
	data := make([]byte, n)
	if err := buf.ReadBytes(data); err != nil {
		return err
	}
	c.writeMu.Lock()
	written, err := c.w.Write(data)
	c.writeMu.Unlock()
	if written > 0 && c.metrics != nil {
		c.metrics.BytesWritten.Add(float64(written))
	}
	return err
}

func (c *Conn) Flush() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.w.Flush()
}
