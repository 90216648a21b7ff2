// Package base implements the connection handling shared by the socket based
// transports (tcp and unix). The protocol specific parts (dial, listen and
// socket options) are supplied by an IClientConnector or IServerConnector.
//
// Frames:
//
//	Every request and response is sent as one frame: an 8 byte shard id, an
//	8 byte request id and a 4 byte payload length (all big endian), followed by
//	the payload. Payloads larger than 64 MB are rejected on both sides.
//
// Client:
//
//   - Keeps ConnectionsPerEndpoint connections per endpoint and picks one round
//     robin for every request.
//   - A reader goroutine per connection correlates responses by request id, so
//     many requests can be in flight on one connection.
//   - Every attempt uses a fresh request id. A late response to an attempt that
//     already timed out is dropped instead of being delivered to a retry.
//   - Failed sends are retried RetryCount times on the next connection; broken
//     connections are re-dialed. Exhausted retries are reported as
//     transport.ErrRequestTimeout or transport.ErrNotConnected.
//   - Pin returns a sender bound to one connection. Query cursors and index
//     tasks live on one server, the rpc client sends their requests pinned.
//
// Server:
//
//   - Every accepted connection is served by a session that reads frames, at
//     most workersPerConn handlers run concurrently per session.
//   - Read buffers come from a sync.Pool.
//   - Close stops the accept loop and Listen returns nil. Connections that are
//     already open are served until the client disconnects.
package base
