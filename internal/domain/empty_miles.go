package domain

import (
	"github.com/shopspring/decimal"
)

// Key suffix of the terminal "return to base" entry.
const EmptyMilesEndKey = "end"

// EmptyMilesKey builds the synthetic key "{fromID}-to-{toID}".
func EmptyMilesKey(fromID, toID string) string { return fromID + "-to-" + toID }

// TerminalEmptyMilesKey builds the "{fromID}-to-end" key.
func TerminalEmptyMilesKey(fromID string) string { return EmptyMilesKey(fromID, EmptyMilesEndKey) }

// One deadhead gap between the end of FromID and the start of ToID
// (ToID is EmptyMilesEndKey for the terminal entry).
type EmptyMilesEntry struct {
	Key        string
	FromID     string
	ToID       string
	Miles      decimal.Decimal
	Overridden bool
	Fallback   bool
}

// EmptyMilesMap holds exactly one entry per chronologically ordered
// mile-billed assignment: N-1 inter-assignment gaps plus the terminal entry.
// Values are treated as immutable; With returns a modified copy.
type EmptyMilesMap struct {
	Entries []EmptyMilesEntry
}

func (m EmptyMilesMap) Len() int { return len(m.Entries) }

func (m EmptyMilesMap) Get(key string) (EmptyMilesEntry, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return EmptyMilesEntry{}, false
}

// ForAssignment returns the outgoing gap of the given assignment.
func (m EmptyMilesMap) ForAssignment(id string) (decimal.Decimal, bool) {
	for _, e := range m.Entries {
		if e.FromID == id {
			return e.Miles, true
		}
	}
	return decimal.Zero, false
}

// With returns a copy where key carries the user-entered value.
func (m EmptyMilesMap) With(key string, miles decimal.Decimal) (EmptyMilesMap, error) {
	out := EmptyMilesMap{Entries: make([]EmptyMilesEntry, len(m.Entries))}
	copy(out.Entries, m.Entries)

	for i := range out.Entries {
		if out.Entries[i].Key == key {
			out.Entries[i].Miles = miles
			out.Entries[i].Overridden = true
			out.Entries[i].Fallback = false
			return out, nil
		}
	}
	return m, ErrUnknownEmptyMilesKey
}

// Reset returns a copy where key is back to zero and no longer overridden.
// Unknown keys leave the map unchanged.
func (m EmptyMilesMap) Reset(key string) EmptyMilesMap {
	out := EmptyMilesMap{Entries: make([]EmptyMilesEntry, len(m.Entries))}
	copy(out.Entries, m.Entries)

	for i := range out.Entries {
		if out.Entries[i].Key == key {
			out.Entries[i].Miles = decimal.Zero
			out.Entries[i].Overridden = false
		}
	}
	return out
}

// Total sums every entry exactly.
func (m EmptyMilesMap) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range m.Entries {
		sum = sum.Add(e.Miles)
	}
	return sum
}
