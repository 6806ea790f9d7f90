package types

// Event is the wire-level payload of a ledger state transition: a dotted type
// name plus flat string attributes, as surfaced by the RPC event feed.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
