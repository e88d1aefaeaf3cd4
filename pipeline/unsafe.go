package pipeline

import "net"

// Unsafe is the transport collaborator sitting behind Head: the single
// object per channel that turns outbound pipeline events into real I/O.
// A transport implementation (see the transport package) supplies one
// per connection.
type Unsafe interface {
	Bind(localAddr net.Addr) error
	Connect(remoteAddr, localAddr net.Addr) error
	Disconnect() error
	Close() error
	Deregister() error
	BeginRead() error
	Write(msg any) error
	Flush() error
}
