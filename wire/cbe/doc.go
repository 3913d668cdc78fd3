// Package cbe implements the compact binary encoding used on the wire
// between the client and the cluster.
//
// The encoding is self-delimiting: every value starts with one prefix byte
// carrying a major category in the upper three bits and either a small
// immediate value or one of four big-endian length forms (1, 2, 4 or 8
// additional bytes) in the lower five. Containers carry definite lengths,
// so a decoder can always find the end of a value without out-of-band
// framing. Streams on the socket are one or more top-level values back to
// back; Decode is greedy and returns the unconsumed remainder so callers
// can split such streams.
//
// The codec never auto-unboxes tagged values. Set-typed attributes travel
// as tags (TagStringSet, TagNumberSet, TagBinarySet) wrapping a sequence;
// interpreting those is the job of the attribute-value bridge in the
// client package.
package cbe
