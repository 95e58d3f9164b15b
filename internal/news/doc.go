// Package news defines the query descriptor and result payload exchanged
// between a session and its upstream collaborators.
//
// Fetchers and sinks are injected into every session and must be safe for
// concurrent use. Payloads are forwarded verbatim and never retained.
package news
