// Package client is the public facade of the accelerator client.
//
// An operation call shapes its parameters into a map with canonical keys,
// validates any request key against the cached table schema, flattens the
// map to the wire encoding, and hands the frame to a pooled connection.
// The reply travels the same path backwards. Items are plain
// map[string]any trees in the single-discriminator attribute form
// ({"S": ...}, {"N": ...}, sets, nested lists and maps); the bridge in
// this package translates between that form and the wire value domain.
package client
