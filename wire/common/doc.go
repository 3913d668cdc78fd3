// Package common holds the material shared by every wire-level package:
// the client configuration struct with its defaults, the error taxonomy,
// the method-id table of the remote service, and the logger factory used
// across the module.
package common
