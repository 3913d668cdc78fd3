// Package proto frames requests for the remote service and decodes its
// replies.
//
// A request is three concatenated top-level values: the service id, the
// method id, and the operation parameters. A reply is two: an error
// descriptor sequence followed by the method-specific body. The
// authorization frame is the one exception, a flat run of seven values
// with no parameter mapping.
package proto
