// Package server holds the HTTP server configuration and the error-to-status mapping
// shared by feature handlers.
//
// # Configuration
//
// The Config struct defines the HTTP port, the API key protecting every route,
// the request read timeout and whether /metrics is exposed.
//
// # Errors
//
// Status translates the engine's typed errors (validation, conflict, partial batch,
// upstream network failure) into HTTP status codes; Error writes the JSON body.
package server
