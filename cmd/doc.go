// Package cmd implements the command-line interface of ixKV. It provides a
// hierarchical command structure with operations for running the server and
// for working with a store as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starting and configuring the ixKV server
//   - record: Writing, reading and deleting single records
//   - index: Creating, dropping and inspecting secondary indexes
//   - query: Range queries and set scans
//   - run: The index workflow (create, write, query, verify, drop)
//   - util: Shared flag, configuration and store setup helpers (internal use)
//
// The client commands select their backend with --store (rpc, aerospike or
// local). See ixkv -help for a list of all commands.
package cmd
