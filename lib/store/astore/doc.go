/*
Package astore implements store.IStore on top of an Aerospike cluster using the
official Go client.

Records are addressed by the digest the Aerospike client computes from set and
user key, so keys read back from this store carry the server digest. Index
state and record counts are read with info commands (sindex-list and
namespace/<ns>). Dropping or querying a missing index is reported with
RetCIndexNotFound even though the server itself accepts the drop.
*/
package astore
