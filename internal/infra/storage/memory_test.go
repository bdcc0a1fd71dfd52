package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

func TestMemoryStore_AddAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.AddMessage(ctx, testInboundMessage("mem-1")); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	loaded, err := store.GetMessage(ctx, "mem-1")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if loaded.Kind != domain.MessageKindInbound {
		t.Errorf("expected kind %q, got %q", domain.MessageKindInbound, loaded.Kind)
	}
	if loaded.Title != domain.TitleSecurityEvaluation {
		t.Errorf("unexpected title: %q", loaded.Title)
	}
}

func TestMemoryStore_DuplicateAdd(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	msg := testInboundMessage("mem-dup")
	if err := store.AddMessage(ctx, msg); err != nil {
		t.Fatalf("first AddMessage failed: %v", err)
	}

	changed := msg
	changed.Title = "mutated"
	if err := store.AddMessage(ctx, changed); err != nil {
		t.Fatalf("duplicate AddMessage failed: %v", err)
	}

	count, err := store.CountMessages(ctx)
	if err != nil {
		t.Fatalf("CountMessages failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 message, got %d", count)
	}

	loaded, err := store.GetMessage(ctx, "mem-dup")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if loaded.Title != domain.TitleSecurityEvaluation {
		t.Errorf("duplicate add overwrote the original record")
	}
}

func TestMemoryStore_MissingMessage(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetMessage(context.Background(), "missing")
	if !errors.Is(err, domain.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("mem-order-%d", i)
		if err := store.AddMessage(ctx, testInboundMessage(id)); err != nil {
			t.Fatalf("AddMessage(%s) failed: %v", id, err)
		}
	}

	records, err := store.ListMessages(ctx, 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "mem-order-3" || records[1].ID != "mem-order-2" {
		t.Errorf("unexpected order: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestMemoryStore_ConcurrentInserts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.AddMessage(ctx, testInboundMessage(fmt.Sprintf("mem-conc-%d", n)))
		}(i)
	}
	wg.Wait()

	count, err := store.CountMessages(ctx)
	if err != nil {
		t.Fatalf("CountMessages failed: %v", err)
	}
	if count != 20 {
		t.Errorf("expected 20 messages, got %d", count)
	}
}
