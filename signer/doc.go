// Package signer produces the Signature V4 material embedded in the
// authorization frame of a cluster connection.
//
// The signed request is always the same synthetic one: a POST to / on the
// canonical service host with an empty payload. Only the timestamp and the
// credentials vary, so the signer exposes the three derived pieces the
// wire protocol needs (access key, hex signature, string-to-sign) rather
// than a signed HTTP request. Credentials come from any
// aws.CredentialsProvider, static or chained.
package signer
