package http

import (
	"net/url"
	"strconv"

	"nebenkosten/internal/apportion"
	"nebenkosten/internal/core"
	"nebenkosten/internal/history"
)

const displayDate = "02.01.2006"

// formView is the form as rendered: raw strings, so rejected input can be
// shown back to the user exactly as typed.
type formView struct {
	TenantAStart, TenantAEnd string
	HasTenantB               bool
	TenantBStart, TenantBEnd string
	PropertyTax, SharedCosts string
	HeatingInShared          bool
	HeatingPeriods           int
	Heating                  [core.MaxHeatingPeriods]string
	PeriodsMatch             bool
	Invalid                  map[string]bool
}

type heatingInput struct {
	Name    string
	Label   string
	Value   string
	Active  bool
	Invalid bool
}

// HeatingInputs lists the three heating fields; only the first
// HeatingPeriods are active.
func (f formView) HeatingInputs() []heatingInput {
	out := make([]heatingInput, core.MaxHeatingPeriods)
	for i := range out {
		name := heatingField(i)
		out[i] = heatingInput{
			Name:    name,
			Label:   fieldLabels[name],
			Value:   f.Heating[i],
			Active:  i < f.HeatingPeriods,
			Invalid: f.Invalid[name],
		}
	}
	return out
}

func (f formView) PeriodOptions() []int {
	opts := make([]int, core.MaxHeatingPeriods)
	for i := range opts {
		opts[i] = i + 1
	}
	return opts
}

func formFromSnapshot(s core.Snapshot) formView {
	f := formView{
		TenantAStart:    s.TenantA.Start.ISO(),
		TenantAEnd:      s.TenantA.End.ISO(),
		HasTenantB:      s.HasTenantB,
		TenantBStart:    s.TenantB.Start.ISO(),
		TenantBEnd:      s.TenantB.End.ISO(),
		PropertyTax:     s.Costs.PropertyTax.FormValue(),
		SharedCosts:     s.Costs.SharedCosts.FormValue(),
		HeatingInShared: s.Heating.IncludedInShared,
		HeatingPeriods:  s.Heating.SubPeriodCount,
		PeriodsMatch:    s.Heating.PeriodsMatchTenancy,
	}
	for i, h := range s.Costs.Heating {
		f.Heating[i] = h.FormValue()
	}
	return f
}

func formFromValues(v url.Values) formView {
	f := formView{
		TenantAStart:    sanitizeInput(v.Get(fieldTenantAStart)),
		TenantAEnd:      sanitizeInput(v.Get(fieldTenantAEnd)),
		HasTenantB:      checked(v, fieldHasTenantB),
		TenantBStart:    sanitizeInput(v.Get(fieldTenantBStart)),
		TenantBEnd:      sanitizeInput(v.Get(fieldTenantBEnd)),
		PropertyTax:     sanitizeInput(v.Get(fieldPropertyTax)),
		SharedCosts:     sanitizeInput(v.Get(fieldSharedCosts)),
		HeatingInShared: checked(v, fieldHeatingInShared),
		HeatingPeriods:  1,
		PeriodsMatch:    checked(v, fieldPeriodsMatch),
	}
	if n, err := strconv.Atoi(v.Get(fieldHeatingPeriods)); err == nil && n >= 1 && n <= core.MaxHeatingPeriods {
		f.HeatingPeriods = n
	}
	for i := range f.Heating {
		f.Heating[i] = sanitizeInput(v.Get(heatingField(i)))
	}
	return f
}

type tenantRow struct {
	Name        string
	Period      string
	Days        int
	PropertyTax string
	SharedCosts string
	Heating     string
	Total       string
	Basis       string
}

type resultView struct {
	Tenants         []tenantRow
	TotalHeating    string
	EffectiveShared string
	Warnings        []string
}

func newResultView(res apportion.Result) *resultView {
	rv := &resultView{
		TotalHeating:    core.FormatAmount(res.TotalHeating),
		EffectiveShared: core.FormatAmount(res.EffectiveShared),
	}
	for _, t := range res.Tenants {
		rv.Tenants = append(rv.Tenants, tenantRow{
			Name:        tenantName(t.Tenant),
			Period:      displayPeriod(t.Period),
			Days:        t.Days,
			PropertyTax: core.FormatAmount(t.PropertyTax),
			SharedCosts: core.FormatAmount(t.SharedCosts),
			Heating:     core.FormatAmount(t.Heating),
			Total:       core.FormatAmount(t.PropertyTax + t.SharedCosts + t.Heating),
			Basis:       t.Basis.Note(),
		})
	}
	for _, w := range res.Warnings {
		rv.Warnings = append(rv.Warnings, w.Message)
	}
	return rv
}

func tenantName(n int) string {
	if n == 2 {
		return "Mieter B"
	}
	return "Mieter A"
}

func displayPeriod(p core.Period) string {
	if !p.Valid() {
		return "kein gültiger Zeitraum"
	}
	return p.Start.Format(displayDate) + " bis " + p.End.Format(displayDate)
}

type historyItem struct {
	Index int
	ID    string
	Label string
}

func historyItems(entries []history.Entry) []historyItem {
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = historyItem{Index: i, ID: e.ID, Label: e.Label()}
	}
	return items
}

// pageData feeds index.html.
type pageData struct {
	Year         int
	Form         formView
	Result       *resultView
	Errors       []string
	Notice       string
	History      []historyItem
	HistoryError string
}
