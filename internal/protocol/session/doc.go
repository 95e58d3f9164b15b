// Package session owns the newsd<->newsclient menu conversation.
//
// Ownership boundary:
// - Channel: framed send/receive over one net.Conn plus the shared menu state
// - Server: authoritative state machine for one accepted connection
// - Client: initiator side that drives the same token vocabulary
//
// Exactly one request/response exchange is in flight per connection. A clean
// close at a frame boundary ends a session without error; transport failures
// end it with an error; everything else is answered in-band.
package session
