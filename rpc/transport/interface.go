package transport

import (
	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/pkg/errors"
)

// Errors returned by client transports. They may be wrapped, use errors.Is.
var (
	ErrRequestTimeout = errors.New("request timed out")
	ErrNotConnected   = errors.New("no active connections available")
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until Close is called (returns nil) or the listener fails.
	Listen(config common.ServerConfig) error
	// Close stops accepting new connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ISender sends one request and waits for its response.
type ISender interface {
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
}

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	ISender
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Close closes the transport connection
	Close() error
}

// IPinnableClientTransport is implemented by client transports that balance
// requests over several endpoints. Server side state such as query cursors
// and index tasks lives on one server, requests that refer to it must be
// sent through a pinned sender.
type IPinnableClientTransport interface {
	IRPCClientTransport
	// Pin returns a sender that sends every request to the same endpoint.
	Pin() ISender
}

// Pin returns a pinned sender of t, or t itself if it has only one route.
func Pin(t IRPCClientTransport) ISender {
	if p, ok := t.(IPinnableClientTransport); ok {
		return p.Pin()
	}
	return t
}
