package store

// CoreRecord identifies one Core in the journal.
type CoreRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	InitialState string `json:"initial_state"` // canonical JSON
}

// Entry is one applied event and the state it produced.
type Entry struct {
	CoreID      string `json:"core_id"`
	Seq         int64  `json:"seq"`
	EventType   string `json:"event_type"`
	Event       string `json:"event"` // canonical JSON
	State       string `json:"state"` // canonical JSON
	StateDigest string `json:"state_digest"`
	ChainDigest string `json:"chain_digest"` // links to the previous entry
}
