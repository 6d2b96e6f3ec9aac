package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nebenkosten/internal/amqp"
	"nebenkosten/internal/apportion"
	"nebenkosten/internal/cache"
	"nebenkosten/internal/core"
	"nebenkosten/internal/history"
)

// Publisher announces recorded calculations. *amqp.Client implements it.
type Publisher interface {
	PublishCalculationRecorded(ctx context.Context, msg *amqp.CalculationRecordedMessage) error
}

// ErrRecordFailed is returned alongside a valid Outcome when the calculation
// succeeded but could not be added to the history.
var ErrRecordFailed = errors.New("calculation not recorded")

// Outcome is what the UI renders after a calculation or a history load.
type Outcome struct {
	Snapshot core.Snapshot
	Result   apportion.Result
	Entry    history.Entry
}

// CalculationService runs apportionments for one reference year and keeps
// the history of inputs. Event publishing is best effort.
type CalculationService struct {
	year      int
	store     history.Store
	publisher Publisher
	results   cache.Cache[apportion.Result]
	now       func() time.Time
}

// NewCalculationService wires the service. publisher and results may be nil.
func NewCalculationService(year int, store history.Store, publisher Publisher, results cache.Cache[apportion.Result]) *CalculationService {
	return &CalculationService{
		year:      year,
		store:     store,
		publisher: publisher,
		results:   results,
		now:       time.Now,
	}
}

func (s *CalculationService) Year() int {
	return s.year
}

// Calculate validates and apportions snap, records it in the history and
// publishes an event. A history failure returns the outcome together with an
// error wrapping ErrRecordFailed; publish failures are only logged.
func (s *CalculationService) Calculate(ctx context.Context, snap core.Snapshot) (Outcome, error) {
	if err := snap.Validate(s.year); err != nil {
		return Outcome{}, err
	}
	res := s.Preview(ctx, snap)

	entry, err := history.NewEntry(snap, s.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("build history entry: %w", err)
	}
	out := Outcome{Snapshot: snap, Result: res, Entry: entry}

	if err := s.store.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to record calculation", "entry_id", entry.ID, "error", err)
		return out, fmt.Errorf("%w: %v", ErrRecordFailed, err)
	}

	s.publish(ctx, entry, res)

	slog.InfoContext(ctx, "Calculation recorded",
		"entry_id", entry.ID,
		"tenants", len(res.Tenants),
		"warnings", len(res.Warnings))
	return out, nil
}

// Preview apportions snap without touching the history.
func (s *CalculationService) Preview(ctx context.Context, snap core.Snapshot) apportion.Result {
	key, ok := s.cacheKey(snap)
	if ok && s.results != nil {
		if res, hit := s.results.Get(key); hit {
			slog.DebugContext(ctx, "Result cache hit")
			return res
		}
	}
	res := apportion.Calculate(s.year, snap)
	if ok && s.results != nil {
		s.results.Set(key, res)
	}
	return res
}

func (s *CalculationService) cacheKey(snap core.Snapshot) (string, bool) {
	rec, err := history.EncodeSnapshot(snap)
	if err != nil {
		return "", false
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d|%s", s.year, b), true
}

func (s *CalculationService) publish(ctx context.Context, e history.Entry, res apportion.Result) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewCalculationRecordedMessage(e, res)
	if err := s.publisher.PublishCalculationRecorded(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish calculation event", "entry_id", e.ID, "error", err)
	}
}

// History lists the recorded entries, most recent first.
func (s *CalculationService) History(ctx context.Context) ([]history.Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Load restores entry n (0 = most recent) and recomputes it. A non-empty id
// must match the entry; see history.Find. The load itself is not recorded.
func (s *CalculationService) Load(ctx context.Context, n int, id string) (Outcome, error) {
	entry, err := history.Find(ctx, s.store, n, id)
	if err != nil {
		return Outcome{}, err
	}
	snap, err := history.Restore(entry, s.year)
	if err != nil {
		slog.WarnContext(ctx, "History entry could not be restored", "entry_id", entry.ID, "error", err)
		return Outcome{}, err
	}
	return Outcome{Snapshot: snap, Result: s.Preview(ctx, snap), Entry: entry}, nil
}

// Reset returns the blank input state. The history is left untouched.
func (s *CalculationService) Reset() core.Snapshot {
	return core.DefaultSnapshot(s.year)
}

// ClearHistory removes every history entry.
func (s *CalculationService) ClearHistory(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
