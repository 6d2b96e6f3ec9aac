// Package worker turns calculation events into archive rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nebenkosten/internal/amqp"
	"nebenkosten/internal/sheets"
)

// ArchiveWorker writes every recorded calculation to the archive once.
type ArchiveWorker struct {
	archive sheets.CalculationArchiver
	checker sheets.EntryChecker
}

// NewArchiveWorker uses archive for writes. If archive also implements
// sheets.EntryChecker, redelivered events are detected and skipped.
func NewArchiveWorker(archive sheets.CalculationArchiver) *ArchiveWorker {
	w := &ArchiveWorker{archive: archive}
	if c, ok := archive.(sheets.EntryChecker); ok {
		w.checker = c
	}
	return w
}

// Handle archives one event. A returned error makes the consumer requeue it.
func (w *ArchiveWorker) Handle(ctx context.Context, msg *amqp.CalculationRecordedMessage) error {
	slog.InfoContext(ctx, "Processing calculation event", "entry_id", msg.EntryID, "year", msg.Year)

	if w.checker != nil {
		done, err := w.checker.HasEntry(ctx, msg.Year, msg.EntryID)
		if err != nil {
			return fmt.Errorf("check archive: %w", err)
		}
		if done {
			slog.InfoContext(ctx, "Calculation already archived, skipping", "entry_id", msg.EntryID)
			return nil
		}
	}

	rows := Rows(msg)
	if len(rows) == 0 {
		slog.WarnContext(ctx, "Calculation event has no tenants", "entry_id", msg.EntryID)
		return nil
	}
	if err := w.archive.AppendCalculation(ctx, msg.Year, rows); err != nil {
		return fmt.Errorf("archive calculation %s: %w", msg.EntryID, err)
	}
	return nil
}

// Rows flattens an event to one archive row per tenant.
func Rows(msg *amqp.CalculationRecordedMessage) []sheets.CalculationRow {
	warnings := strings.Join(msg.Warnings, ",")
	rows := make([]sheets.CalculationRow, 0, len(msg.Tenants))
	for _, t := range msg.Tenants {
		rows = append(rows, sheets.CalculationRow{
			EntryID:     msg.EntryID,
			RecordedAt:  msg.Timestamp,
			Year:        msg.Year,
			Tenant:      t.Tenant,
			Start:       t.Start,
			End:         t.End,
			Days:        t.Days,
			PropertyTax: t.PropertyTax.StringFixed(2),
			SharedCosts: t.SharedCosts.StringFixed(2),
			Heating:     t.Heating.StringFixed(2),
			Basis:       t.Basis,
			Warnings:    warnings,
		})
	}
	return rows
}
