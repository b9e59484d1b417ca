package store

import (
	"strconv"
	"strings"

	"github.com/roach88/reactor/internal/canonical"
)

// GenesisDigest is the link before a Core's first entry: the state digest
// of its initial state.
func GenesisDigest(initialState string) string {
	return canonical.Digest(canonical.DomainState, []byte(initialState))
}

// Seal fills in e's digests from its payloads and the chain digest of the
// entry before it (GenesisDigest for seq 1).
func Seal(prev string, e Entry) Entry {
	e.StateDigest = canonical.Digest(canonical.DomainState, []byte(e.State))
	e.ChainDigest = chainDigest(prev, e)
	return e
}

// chainDigest covers the previous link plus seq, event type, canonical
// event and state digest, newline separated. Canonical JSON never contains
// a raw newline.
func chainDigest(prev string, e Entry) string {
	var b strings.Builder
	b.WriteString(prev)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(e.Seq, 10))
	b.WriteByte('\n')
	b.WriteString(e.EventType)
	b.WriteByte('\n')
	b.WriteString(e.Event)
	b.WriteByte('\n')
	b.WriteString(e.StateDigest)
	return canonical.Digest(canonical.DomainEntry, []byte(b.String()))
}

// Check is the integrity verdict for one entry.
type Check struct {
	Seq     int64 `json:"seq"`
	StateOK bool  `json:"state_ok"`
	ChainOK bool  `json:"chain_ok"`
}

// OK reports whether both digests verified.
func (c Check) OK() bool { return c.StateOK && c.ChainOK }

// Verify recomputes the digests of a Core's full journal, in seq order.
// A gap in seq breaks the chain at the entry after it. Once a link fails,
// later entries are checked against their recorded predecessor, so a single
// tampered entry is reported once rather than poisoning the rest.
func Verify(core CoreRecord, entries []Entry) []Check {
	checks := make([]Check, 0, len(entries))
	prev := GenesisDigest(core.InitialState)
	var prevSeq int64
	for _, e := range entries {
		c := Check{
			Seq:     e.Seq,
			StateOK: canonical.Digest(canonical.DomainState, []byte(e.State)) == e.StateDigest,
			ChainOK: e.Seq == prevSeq+1 && chainDigest(prev, e) == e.ChainDigest,
		}
		checks = append(checks, c)
		prev, prevSeq = e.ChainDigest, e.Seq
	}
	return checks
}
