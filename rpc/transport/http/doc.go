// Package http implements the RPC transport over plain HTTP.
//
// A request is a POST to /{shardId} with the serialized message as body, the
// response body is the serialized answer. The server also exposes the process
// metrics in Prometheus format on GET /metrics, so a single port serves both.
//
// The client balances requests round robin across its endpoints. Endpoints
// without a scheme get http:// prepended. Each retry builds a new request body
// and goes to the next endpoint; a client timeout is reported as
// transport.ErrRequestTimeout. A pinned sender (see transport.Pin) keeps all
// its requests and retries on one endpoint.
//
// Requests are logged at debug level by a small middleware that records the
// status code and latency.
package http
