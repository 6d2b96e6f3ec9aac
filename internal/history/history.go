// Package history keeps the most recent calculation inputs so they can be
// listed and restored later.
//
// Entries are stored in their persisted form (Record). Restore turns a record
// back into a core.Snapshot and fails as a whole if any field is malformed.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nebenkosten/internal/core"
)

// Capacity is the number of entries a store retains.
const Capacity = 20

var (
	ErrMalformedEntry = errors.New("malformed history entry")
	ErrEntryNotFound  = errors.New("history entry not found")
)

// Store is implemented by every history backend.
type Store interface {
	// Record prepends the entry and drops everything beyond Capacity.
	Record(ctx context.Context, e Entry) error
	// List returns the current entries, most recent first.
	List(ctx context.Context) ([]Entry, error)
	// Clear removes all entries.
	Clear(ctx context.Context) error
}

type Entry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Data      Record `json:"data"`

	invalid map[string]json.RawMessage
}

// Record is the persisted shape of a snapshot: ISO date strings and
// numeric-or-null amounts. Amounts stay raw until Restore, and values of the
// wrong type are kept aside, so one bad entry never hides the rest of the
// history.
type Record struct {
	TenantAStart    string          `json:"tenant_a_start"`
	TenantAEnd      string          `json:"tenant_a_end"`
	HasTenantB      bool            `json:"has_tenant_b"`
	TenantBStart    string          `json:"tenant_b_start"`
	TenantBEnd      string          `json:"tenant_b_end"`
	PropertyTax     json.RawMessage `json:"property_tax"`
	SharedCosts     json.RawMessage `json:"shared_costs"`
	HeatingInShared bool            `json:"heating_in_shared"`
	HeatingPeriods  int             `json:"heating_periods"`
	Heating1        json.RawMessage `json:"heating_1"`
	Heating2        json.RawMessage `json:"heating_2"`
	Heating3        json.RawMessage `json:"heating_3"`
	PeriodsMatch    bool            `json:"periods_match"`

	invalid map[string]json.RawMessage
}

// NewEntry snapshots the input state at the given time.
func NewEntry(s core.Snapshot, now time.Time) (Entry, error) {
	rec, err := EncodeSnapshot(s)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: now.Format(time.RFC3339),
		Data:      rec,
	}, nil
}

// Label is the human-readable timestamp shown in the history list.
func (e Entry) Label() string {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return e.Timestamp
	}
	return t.Format("02.01.2006 | 15:04 Uhr")
}

// EncodeSnapshot converts a snapshot to its persisted form.
func EncodeSnapshot(s core.Snapshot) (Record, error) {
	amounts := []core.OptionalMoney{
		s.Costs.PropertyTax, s.Costs.SharedCosts,
		s.Costs.Heating[0], s.Costs.Heating[1], s.Costs.Heating[2],
	}
	raw := make([]json.RawMessage, len(amounts))
	for i, a := range amounts {
		b, err := json.Marshal(a)
		if err != nil {
			return Record{}, fmt.Errorf("encode amount: %w", err)
		}
		raw[i] = b
	}
	return Record{
		TenantAStart:    s.TenantA.Start.ISO(),
		TenantAEnd:      s.TenantA.End.ISO(),
		HasTenantB:      s.HasTenantB,
		TenantBStart:    s.TenantB.Start.ISO(),
		TenantBEnd:      s.TenantB.End.ISO(),
		PropertyTax:     raw[0],
		SharedCosts:     raw[1],
		HeatingInShared: s.Heating.IncludedInShared,
		HeatingPeriods:  s.Heating.SubPeriodCount,
		Heating1:        raw[2],
		Heating2:        raw[3],
		Heating3:        raw[4],
		PeriodsMatch:    s.Heating.PeriodsMatchTenancy,
	}, nil
}

// Restore parses the entry back into a snapshot. Either the whole snapshot
// is returned or an error wrapping ErrMalformedEntry; nothing partial.
//
// Tenant A's dates are required. Tenant B's dates are required only when
// tenant B is present; otherwise missing dates fall back to the second half
// of year.
func Restore(e Entry, year int) (core.Snapshot, error) {
	if key := e.Damaged(); key != "" {
		return core.Snapshot{}, fmt.Errorf("%w: %s: unexpected value type", ErrMalformedEntry, key)
	}
	r := e.Data
	var s core.Snapshot
	var err error

	if s.TenantA, err = restorePeriod("tenant_a", r.TenantAStart, r.TenantAEnd, true); err != nil {
		return core.Snapshot{}, err
	}
	s.HasTenantB = r.HasTenantB
	if s.TenantB, err = restorePeriod("tenant_b", r.TenantBStart, r.TenantBEnd, r.HasTenantB); err != nil {
		return core.Snapshot{}, err
	}
	def := core.DefaultSnapshot(year)
	if s.TenantB.Start.IsEmpty() {
		s.TenantB.Start = def.TenantB.Start
	}
	if s.TenantB.End.IsEmpty() {
		s.TenantB.End = def.TenantB.End
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *core.OptionalMoney
	}{
		{"property_tax", r.PropertyTax, &s.Costs.PropertyTax},
		{"shared_costs", r.SharedCosts, &s.Costs.SharedCosts},
		{"heating_1", r.Heating1, &s.Costs.Heating[0]},
		{"heating_2", r.Heating2, &s.Costs.Heating[1]},
		{"heating_3", r.Heating3, &s.Costs.Heating[2]},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue // missing key reads as an empty field
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformedEntry, f.name, err)
		}
	}

	s.Heating = core.HeatingConfig{
		IncludedInShared:    r.HeatingInShared,
		SubPeriodCount:      r.HeatingPeriods,
		PeriodsMatchTenancy: r.PeriodsMatch,
	}
	if err := s.Validate(year); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return s, nil
}

func restorePeriod(name, start, end string, required bool) (core.Period, error) {
	if required && (start == "" || end == "") {
		return core.Period{}, fmt.Errorf("%w: %s: missing date", ErrMalformedEntry, name)
	}
	s, err := core.ParseISODate(start)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %s_start: %v", ErrMalformedEntry, name, err)
	}
	e, err := core.ParseISODate(end)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %s_end: %v", ErrMalformedEntry, name, err)
	}
	return core.Period{Start: s, End: e}, nil
}

// Prepend returns entries with e in front, truncated to Capacity. The input
// slice is not modified.
func Prepend(entries []Entry, e Entry) []Entry {
	out := make([]Entry, 0, min(len(entries)+1, Capacity))
	out = append(out, e)
	for _, old := range entries {
		if len(out) == Capacity {
			break
		}
		out = append(out, old)
	}
	return out
}

// At returns the n-th entry (0 = most recent) of the store.
func At(ctx context.Context, st Store, n int) (Entry, error) {
	entries, err := st.List(ctx)
	if err != nil {
		return Entry{}, err
	}
	if n < 0 || n >= len(entries) {
		return Entry{}, fmt.Errorf("%w: index %d", ErrEntryNotFound, n)
	}
	return entries[n], nil
}

// Find returns the entry the user picked from a rendered list: position n,
// as long as it still carries id. When other entries were recorded since the
// list was rendered, the entry is looked up by id instead. An empty id falls
// back to the position alone.
func Find(ctx context.Context, st Store, n int, id string) (Entry, error) {
	if id == "" {
		return At(ctx, st, n)
	}
	entries, err := st.List(ctx)
	if err != nil {
		return Entry{}, err
	}
	if n >= 0 && n < len(entries) && entries[n].ID == id {
		return entries[n], nil
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: id %s", ErrEntryNotFound, id)
}
