package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nebenkosten/internal/core"
)

// Form field names. They match the keys of a persisted history record.
const (
	fieldTenantAStart    = "tenant_a_start"
	fieldTenantAEnd      = "tenant_a_end"
	fieldHasTenantB      = "has_tenant_b"
	fieldTenantBStart    = "tenant_b_start"
	fieldTenantBEnd      = "tenant_b_end"
	fieldPropertyTax     = "property_tax"
	fieldSharedCosts     = "shared_costs"
	fieldHeatingInShared = "heating_in_shared"
	fieldHeatingPeriods  = "heating_periods"
	fieldPeriodsMatch    = "periods_match"

	// fieldEntryID is sent by the history load buttons only.
	fieldEntryID = "entry_id"
)

func heatingField(i int) string {
	return "heating_" + strconv.Itoa(i+1)
}

var fieldLabels = map[string]string{
	fieldTenantAStart:   "Mieter A Beginn",
	fieldTenantAEnd:     "Mieter A Ende",
	fieldTenantBStart:   "Mieter B Beginn",
	fieldTenantBEnd:     "Mieter B Ende",
	fieldPropertyTax:    "Grundsteuer",
	fieldSharedCosts:    "Umlagekosten",
	fieldHeatingPeriods: "Heizkosten-Zeiträume",
	"heating_1":         "Heizkosten Zeitraum 1",
	"heating_2":         "Heizkosten Zeitraum 2",
	"heating_3":         "Heizkosten Zeitraum 3",
}

// FieldError is a rejected form value with a message for the user.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

type fieldErrors []FieldError

func (fe fieldErrors) messages() []string {
	out := make([]string, len(fe))
	for i, e := range fe {
		out[i] = fieldLabels[e.Field] + ": " + e.Message
	}
	return out
}

func (fe fieldErrors) fields() map[string]bool {
	out := make(map[string]bool, len(fe))
	for _, e := range fe {
		out[e.Field] = true
	}
	return out
}

// Accepted date layouts: the browser date picker and the German notation.
var dateLayouts = []string{time.DateOnly, "02.01.2006", "2.1.2006"}

// parseSnapshotForm converts submitted form values into a snapshot for the
// reference year. Fields of an inactive tenant B or of inactive heating
// sub-periods are not checked.
func parseSnapshotForm(form url.Values, year int) (core.Snapshot, fieldErrors) {
	var (
		snap core.Snapshot
		errs fieldErrors
	)
	fail := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	date := func(field string, check bool) core.Date {
		d, err := parseFormDate(sanitizeInput(form.Get(field)))
		switch {
		case !check:
			if err != nil || (!d.IsEmpty() && d.Year() != year) {
				return core.Date{}
			}
		case err != nil:
			fail(field, "ungültiges Datum")
		case !d.IsEmpty() && d.Year() != year:
			fail(field, fmt.Sprintf("Datum muss im Jahr %d liegen", year))
		}
		return d
	}
	amount := func(field string, check bool) core.OptionalMoney {
		m, err := core.ParseOptionalAmount(sanitizeInput(form.Get(field)))
		switch {
		case err == nil:
			return m
		case !check:
			return core.OptionalMoney{}
		case errors.Is(err, core.ErrNegativeAmount):
			fail(field, "Betrag darf nicht negativ sein")
		default:
			fail(field, "ungültiger Betrag")
		}
		return core.OptionalMoney{}
	}

	snap.Heating.SubPeriodCount = 1
	if raw := sanitizeInput(form.Get(fieldHeatingPeriods)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > core.MaxHeatingPeriods {
			fail(fieldHeatingPeriods, "muss 1, 2 oder 3 sein")
		} else {
			snap.Heating.SubPeriodCount = n
		}
	}
	snap.Heating.IncludedInShared = checked(form, fieldHeatingInShared)
	snap.Heating.PeriodsMatchTenancy = checked(form, fieldPeriodsMatch)

	snap.TenantA = core.Period{Start: date(fieldTenantAStart, true), End: date(fieldTenantAEnd, true)}
	snap.HasTenantB = checked(form, fieldHasTenantB)
	snap.TenantB = core.Period{
		Start: date(fieldTenantBStart, snap.HasTenantB),
		End:   date(fieldTenantBEnd, snap.HasTenantB),
	}

	snap.Costs.PropertyTax = amount(fieldPropertyTax, true)
	snap.Costs.SharedCosts = amount(fieldSharedCosts, true)
	for i := range snap.Costs.Heating {
		snap.Costs.Heating[i] = amount(heatingField(i), i < snap.Heating.SubPeriodCount)
	}

	return snap, errs
}

func parseFormDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Date{Time: t}, nil
		}
	}
	return core.Date{}, fmt.Errorf("parse date %q", s)
}

func checked(form url.Values, field string) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(field))) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
