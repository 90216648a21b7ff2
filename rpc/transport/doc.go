// Package transport defines the interfaces and abstractions for RPC communication
// in the ixKV record store. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Supporting shard-based request routing
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IPinnableClientTransport and Pin: senders bound to one endpoint, used for
//     requests that refer to server side state (query cursors, index tasks).
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - ErrRequestTimeout, ErrNotConnected: transport failures the RPC client maps
//     to store return codes.
package transport
