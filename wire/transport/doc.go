// Package transport owns the sockets to the cluster.
//
// A Connection is one TCP or TLS stream to one cluster node. It performs
// the opening handshake, re-asserts the caller's identity with a signed
// authorization frame at most every five minutes (sampled inline on the
// request path, never from a timer), and serves one request at a time:
// write the frame, then buffer chunked reads until the codec finds two
// complete top-level values.
//
// The Pool multiplexes callers over a set of connections. It hands out the
// earliest-created healthy idle connection, creates new ones on demand by
// global round-robin over the endpoints, enforces a per-host cap, and
// quarantines connections reported bad for thirty seconds before their
// sockets are reaped.
package transport
