package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nebenkosten/internal/amqp"
	"nebenkosten/internal/sheets"
	"nebenkosten/internal/sheets/memory"
)

func event(id string) *amqp.CalculationRecordedMessage {
	return &amqp.CalculationRecordedMessage{
		Type:      amqp.MessageType,
		EntryID:   id,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Year:      2024,
		Tenants: []amqp.TenantShares{
			{Tenant: 1, Start: "2024-01-01", End: "2024-06-30", Days: 182,
				PropertyTax: decimal.RequireFromString("596.72"), SharedCosts: decimal.RequireFromString("1740.44"),
				Heating: decimal.RequireFromString("350"), Basis: "(Anteilig HGZ: 583.33)"},
			{Tenant: 2, Start: "2024-07-01", End: "2024-12-31", Days: 184,
				PropertyTax: decimal.RequireFromString("603.28"), SharedCosts: decimal.RequireFromString("1759.56"),
				Heating: decimal.RequireFromString("250"), Basis: "(Anteilig HGZ: 416.67)"},
		},
		Warnings: []string{"heating_exceeds_shared"},
	}
}

func TestHandleArchivesOneRowPerTenant(t *testing.T) {
	archive := memory.New()
	w := NewArchiveWorker(archive)

	if err := w.Handle(context.Background(), event("e1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows := archive.Rows(2024)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Heating != "350.00" || rows[1].PropertyTax != "603.28" {
		t.Errorf("unexpected amounts: %+v", rows)
	}
	if rows[0].Warnings != "heating_exceeds_shared" {
		t.Errorf("warnings = %q", rows[0].Warnings)
	}
}

func TestHandleSkipsRedelivery(t *testing.T) {
	archive := memory.New()
	w := NewArchiveWorker(archive)
	ctx := context.Background()

	_ = w.Handle(ctx, event("e1"))
	if err := w.Handle(ctx, event("e1")); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if n := len(archive.Rows(2024)); n != 2 {
		t.Fatalf("redelivered event was archived again: %d rows", n)
	}
}

type failingArchive struct{ calls int }

func (f *failingArchive) AppendCalculation(context.Context, int, []sheets.CalculationRow) error {
	f.calls++
	return errors.New("quota exceeded")
}

func TestHandlePropagatesArchiveErrors(t *testing.T) {
	archive := &failingArchive{}
	w := NewArchiveWorker(archive)
	if w.checker != nil {
		t.Fatal("archive without lookup must not get a checker")
	}
	if err := w.Handle(context.Background(), event("e1")); err == nil {
		t.Fatal("expected error so the event is requeued")
	}
	if archive.calls != 1 {
		t.Fatalf("expected one append attempt, got %d", archive.calls)
	}
}

func TestHandleEmptyEvent(t *testing.T) {
	archive := &failingArchive{}
	w := NewArchiveWorker(archive)
	msg := event("e2")
	msg.Tenants = nil
	if err := w.Handle(context.Background(), msg); err != nil {
		t.Fatalf("empty event should be acknowledged: %v", err)
	}
	if archive.calls != 0 {
		t.Fatal("nothing should be appended")
	}
}
