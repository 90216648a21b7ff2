// Package client implements the RPC client of the ixKV record store.
// It provides an implementation of the store.IStore interface that communicates
// with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a store shard
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and store errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to remote servers via the configured
//     transport layer. Every error it returns is a *store.Error, transport timeouts are
//     reported with RetCTimeout.
//
//   - Query: opens a server side cursor and pages through it with QueryPageSize
//     records per round trip while the recordset is consumed.
//
//   - WriteStats: request latency timers per message type.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	// Create store client
//	s, _ := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	// Use the store
//	key, _ := store.NewKey("test", "demo", "skkey1")
//	_ = s.Put(nil, key, store.NewBin("skbin", 1))
//	rec, _ := s.Get(nil, key)
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The store client is thread-safe and can be used concurrently from
//	multiple goroutines. A single recordset must not be shared between goroutines.
package client
