package history

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

// errNotObject is returned when an element of a stored history is not a JSON
// object. Only such elements are dropped when reading a store.
var errNotObject = errors.New("history element is not a JSON object")

// decodeFields decodes a JSON object field by field into dst. Values that do
// not fit their field are returned as-is, keyed by name; unknown keys are
// ignored.
func decodeFields(data []byte, dst map[string]any) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, errNotObject
	}
	var invalid map[string]json.RawMessage
	for key, raw := range fields {
		target, ok := dst[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			if invalid == nil {
				invalid = make(map[string]json.RawMessage)
			}
			invalid[key] = raw
		}
	}
	return invalid, nil
}

// encodeFields marshals v and writes the kept invalid values back over their
// keys, so a damaged entry is stored exactly as it was read.
func encodeFields(v any, invalid map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(invalid) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	maps.Copy(fields, invalid)
	return json.Marshal(fields)
}

func firstInvalid(invalid map[string]json.RawMessage) string {
	if len(invalid) == 0 {
		return ""
	}
	return slices.Min(slices.Collect(maps.Keys(invalid)))
}

func (r *Record) fieldTargets() map[string]any {
	return map[string]any{
		"tenant_a_start":    &r.TenantAStart,
		"tenant_a_end":      &r.TenantAEnd,
		"has_tenant_b":      &r.HasTenantB,
		"tenant_b_start":    &r.TenantBStart,
		"tenant_b_end":      &r.TenantBEnd,
		"property_tax":      &r.PropertyTax,
		"shared_costs":      &r.SharedCosts,
		"heating_in_shared": &r.HeatingInShared,
		"heating_periods":   &r.HeatingPeriods,
		"heating_1":         &r.Heating1,
		"heating_2":         &r.Heating2,
		"heating_3":         &r.Heating3,
		"periods_match":     &r.PeriodsMatch,
	}
}

// UnmarshalJSON accepts any object. A value of the wrong type is kept and
// reported by Restore instead of failing the whole history.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}
	invalid, err := decodeFields(data, r.fieldTargets())
	if err != nil {
		return err
	}
	r.invalid = invalid
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return encodeFields(plain(r), r.invalid)
}

// UnmarshalJSON accepts any object; see Record.UnmarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	*e = Entry{}
	invalid, err := decodeFields(data, map[string]any{
		"id":        &e.ID,
		"timestamp": &e.Timestamp,
		"data":      &e.Data,
	})
	if err != nil {
		return err
	}
	e.invalid = invalid
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return encodeFields(plain(e), e.invalid)
}

// Damaged reports the first field of the entry that could not be decoded, or
// "" when every field has the expected type.
func (e Entry) Damaged() string {
	if key := firstInvalid(e.invalid); key != "" {
		return key
	}
	return firstInvalid(e.Data.invalid)
}
