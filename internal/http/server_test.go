package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nebenkosten/internal/history"
	"nebenkosten/internal/history/file"
	"nebenkosten/internal/history/memory"
	applog "nebenkosten/internal/log"
	"nebenkosten/internal/middleware/ratelimit"
	"nebenkosten/internal/services"
)

type failingStore struct {
	*memory.Store
}

func (failingStore) Record(context.Context, history.Entry) error {
	return errors.New("disk full")
}

func newTestServer(t *testing.T, store history.Store, opts Options) *Server {
	t.Helper()
	svc := services.NewCalculationService(2024, store, nil, nil)
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(srv.limiter.Stop)
	return srv
}

func do(t *testing.T, srv *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// twoTenants is the half-and-half year with only property tax entered.
func twoTenants() url.Values {
	return url.Values{
		"tenant_a_start":  {"2024-01-01"},
		"tenant_a_end":    {"2024-06-30"},
		"has_tenant_b":    {"on"},
		"tenant_b_start":  {"2024-07-01"},
		"tenant_b_end":    {"2024-12-31"},
		"property_tax":    {"1200"},
		"heating_periods": {"1"},
	}
}

func listLen(t *testing.T, st history.Store) int {
	t.Helper()
	entries, err := st.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Nebenkostenabrechnung 2024", `value="2024-01-01"`, `value="2024-06-30"`, "Noch keine Berechnungen"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing security or request-id headers")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/style.css"} {
		rr := do(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := do(t, srv, http.MethodGet, "/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/calculate", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /calculate status=%d", rr.Code)
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{
		Ready: func(context.Context) error { return errors.New("db down") },
	})
	if rr := do(t, srv, http.MethodGet, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCalculateShowsSharesAndRecords(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, Options{})

	rr := do(t, srv, http.MethodPost, "/calculate", twoTenants())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		"596.72 €", "603.28 €",
		"01.01.2024 bis 30.06.2024",
		"<td class=\"num\">182</td>", "<td class=\"num\">184</td>",
		"Anteilig HGZ",
		"/history/0/load",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if n := listLen(t, store); n != 1 {
		t.Fatalf("history len = %d, want 1", n)
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"negative amount", "property_tax", "-5", "nicht negativ"},
		{"garbage amount", "shared_costs", "zwölf", "ungültiger Betrag"},
		{"date outside year", "tenant_a_start", "2023-12-31", "im Jahr 2024"},
		{"garbage date", "tenant_b_end", "31.13.2024", "ungültiges Datum"},
		{"sub-period count", "heating_periods", "4", "1, 2 oder 3"},
		{"active heating field", "heating_1", "-1", "Heizkosten Zeitraum 1: Betrag darf nicht negativ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			srv := newTestServer(t, store, Options{})
			form := twoTenants()
			form.Set(tt.field, tt.value)

			rr := do(t, srv, http.MethodPost, "/calculate", form)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d", rr.Code)
			}
			body := rr.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if !strings.Contains(body, `aria-invalid="true"`) {
				t.Error("offending field not marked")
			}
			if strings.Contains(body, "Ergebnis") {
				t.Error("no result expected on rejected input")
			}
			if n := listLen(t, store); n != 0 {
				t.Fatalf("rejected input recorded: %d entries", n)
			}
		})
	}
}

func TestCalculateIgnoresInactiveFields(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	form := twoTenants()
	form.Del("has_tenant_b")
	form.Set("tenant_b_start", "kaputt")
	form.Set("heating_3", "abc")

	rr := do(t, srv, http.MethodPost, "/calculate", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "Mieter B</td>") {
		t.Error("inactive tenant B must not appear in results")
	}
}

func TestCalculateWarnsWhenHeatingExceedsShared(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	form := twoTenants()
	form.Set("shared_costs", "100")
	form.Set("heating_1", "150")
	form.Set("heating_in_shared", "on")

	rr := do(t, srv, http.MethodPost, "/calculate", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "banner-warning") {
		t.Fatal("expected warning banner")
	}
}

func TestCalculateRecordFailureStillShowsResult(t *testing.T) {
	srv := newTestServer(t, failingStore{memory.New()}, Options{})

	rr := do(t, srv, http.MethodPost, "/calculate", twoTenants())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "596.72 €") || !strings.Contains(body, "nicht im Verlauf gespeichert") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestLoadHistoryEntry(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, Options{})
	form := twoTenants()
	form.Set("property_tax", "366")
	do(t, srv, http.MethodPost, "/calculate", form)
	do(t, srv, http.MethodPost, "/calculate", twoTenants())

	// Entry 1 is the older calculation.
	rr := do(t, srv, http.MethodPost, "/history/1/load", twoTenants())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `value="366.00"`) || !strings.Contains(body, "182.00 €") {
		t.Fatalf("loaded entry not shown: %s", body)
	}
	if !strings.Contains(body, "geladen") {
		t.Error("missing load notice")
	}
	if n := listLen(t, store); n != 2 {
		t.Fatalf("load must not record, history len = %d", n)
	}
}

func TestLoadHistoryUsesSubmittedEntryID(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, Options{})
	form := twoTenants()
	form.Set("property_tax", "366")
	do(t, srv, http.MethodPost, "/calculate", form)

	page := do(t, srv, http.MethodGet, "/", nil).Body.String()
	entries, _ := store.List(context.Background())
	if !strings.Contains(page, `name="entry_id" value="`+entries[0].ID+`"`) {
		t.Fatalf("load button does not carry the entry id: %s", page)
	}

	// A second calculation shifts the first entry to index 1.
	do(t, srv, http.MethodPost, "/calculate", twoTenants())

	stale := twoTenants()
	stale.Set("entry_id", entries[0].ID)
	rr := do(t, srv, http.MethodPost, "/history/0/load", stale)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `value="366.00"`) {
		t.Fatalf("wrong entry loaded: %s", body)
	}

	stale.Set("entry_id", "deleted-meanwhile")
	if rr := do(t, srv, http.MethodPost, "/history/0/load", stale); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown entry id: status=%d", rr.Code)
	}
}

func TestLoadHistoryErrorsKeepForm(t *testing.T) {
	store := memory.New()
	bad := history.Entry{
		ID:        "broken",
		Timestamp: "2024-05-17T09:05:00Z",
		Data: history.Record{
			TenantAStart:   "2024-01-01",
			TenantAEnd:     "2024-06-30",
			PropertyTax:    json.RawMessage(`"abc"`),
			HeatingPeriods: 1,
		},
	}
	if err := store.Record(context.Background(), bad); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, Options{})

	form := twoTenants()
	form.Set("property_tax", "777.77")

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/history/0/load", http.StatusUnprocessableEntity, "beschädigt"},
		{"/history/7/load", http.StatusNotFound, "existiert nicht"},
		{"/history/x/load", http.StatusNotFound, "existiert nicht"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.path, form)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d", rr.Code, tt.status)
			}
			body := rr.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if !strings.Contains(body, `value="777.77"`) {
				t.Error("form state was not kept")
			}
		})
	}
}

func TestLoadWrongTypedEntryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	content := `[{"id":"a","timestamp":"2024-03-01T10:00:00Z","data":{"tenant_a_start":"2024-01-01","tenant_a_end":"2024-06-30","heating_periods":"2"}}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := file.New(path)
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store, Options{})

	page := do(t, srv, http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(page, "01.03.2024 | 10:00 Uhr") {
		t.Fatal("damaged entry should still be listed")
	}
	rr := do(t, srv, http.MethodPost, "/history/0/load", twoTenants())
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "beschädigt") {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestResetKeepsHistoryAndClearEmptiesIt(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, Options{})
	do(t, srv, http.MethodPost, "/calculate", twoTenants())

	rr := do(t, srv, http.MethodPost, "/reset", twoTenants())
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, `value="1200.00"`) || strings.Contains(body, `value="1200"`) {
		t.Error("reset must clear amounts")
	}
	if !strings.Contains(body, "/history/0/load") || listLen(t, store) != 1 {
		t.Fatal("reset must keep the history")
	}

	rr = do(t, srv, http.MethodPost, "/history/clear", twoTenants())
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status=%d", rr.Code)
	}
	if listLen(t, store) != 0 {
		t.Fatal("history not cleared")
	}
	body = rr.Body.String()
	if !strings.Contains(body, "Noch keine Berechnungen") || !strings.Contains(body, `value="1200"`) {
		t.Errorf("clear should keep the form and show an empty history: %s", body)
	}
}

func TestRateLimitAppliesToPostOnly(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{RateLimit: ratelimit.Config{RequestsPerMinute: 2}})

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/reset", url.Values{}); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/reset", url.Values{})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/", nil); rr.Code != http.StatusOK {
		t.Fatalf("GET limited: %d", rr.Code)
	}
}
