// Package common provides the data structures shared by the RPC client, the
// RPC server and the transports.
//
// Key Components:
//
//   - Message: the single request/response structure of the RPC protocol. Keys
//     travel as digest plus optional binary encoded user key, bins as
//     value.EncodeBins payload and query results as pages of WireRecord.
//     Failures carry the store.RetCode so that clients can rebuild the
//     *store.Error.
//
//   - MessageType: record, index, cursor and metadata operations plus the
//     generic success and error types.
//
//   - ServerConfig: shards, RAFT parameters, transport settings, cursor idle
//     timeout and metrics endpoint. Converts to Dragonboat configurations.
//
//   - ClientConfig: endpoints, timeouts, retries and query page size.
//
//   - Logger: a dragonboat logger.ILogger that prints "LEVEL | package | message".
package common
