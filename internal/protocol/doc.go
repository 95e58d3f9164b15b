// Package protocol owns the wire contract shared by newsd and newsclient.
//
// Ownership boundary:
// - reply and choice token vocabulary
// - enumerated filter value sets
// - frame primitives (see frame)
// - session state machine (see session)
package protocol
