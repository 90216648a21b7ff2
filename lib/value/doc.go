// Package value defines the scalar values stored in record bins and used as
// user keys.
//
// A Value is a tagged variant (Empty, Integer, String, Bytes). Callers convert
// it explicitly with AsInteger, AsString or AsBytes; a conversion against the
// wrong variant fails with a *TypeError that matches ErrType. This keeps values
// read back from a store (including a user key that resolves to null) typed
// instead of passing around interface{}.
//
// The package also provides the binary and JSON codecs for single values and
// the binary codec for bin maps (EncodeBins / DecodeBins) shared by the engine
// snapshot format, the raft command log and the RPC protocol.
package value
