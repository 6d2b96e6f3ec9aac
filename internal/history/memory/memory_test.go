package memory

import (
	"context"
	"fmt"
	"testing"

	"nebenkosten/internal/history"
)

func TestMemoryStoreCapacityAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if err := s.Record(ctx, history.Entry{ID: fmt.Sprint(i)}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != history.Capacity {
		t.Fatalf("expected %d entries, got %d", history.Capacity, len(got))
	}
	for i, e := range got {
		if want := fmt.Sprint(24 - i); e.ID != want {
			t.Fatalf("position %d: id=%s want %s", i, e.ID, want)
		}
	}
}

func TestMemoryStoreListIsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Record(ctx, history.Entry{ID: "a"})
	got, _ := s.List(ctx)
	got[0].ID = "mutated"
	again, _ := s.List(ctx)
	if again[0].ID != "a" {
		t.Fatalf("store state leaked through List: %v", again[0].ID)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Record(ctx, history.Entry{ID: "a"})
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := s.List(ctx)
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %d", len(got))
	}
}
