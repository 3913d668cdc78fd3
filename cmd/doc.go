// Package cmd implements the command-line interface for the daxc
// accelerator client. It provides a hierarchical command structure for
// issuing table operations against a cache cluster.
//
// The package is organized into several subpackages:
//
//   - item: Commands for table operations (get, put, delete, query, scan, describe)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See daxc -help for a list of all commands.
package cmd
