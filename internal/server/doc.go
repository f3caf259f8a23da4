// Package server implements the HTTP surface of fanren-sync. It wires
// together the routes, the path-secret authenticator, the archive store,
// and the optional backup mirror, and provides lifecycle helpers used by
// tests and the production binary.
package server
