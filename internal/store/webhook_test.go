package store

import (
	"errors"
	"testing"
	"time"

	"github.com/fmarinho/futx/internal/domain"
)

func newWebhook(id, owner, event, url string) *domain.Webhook {
	now := time.Now()
	return &domain.Webhook{
		WebhookID: id,
		Owner:     owner,
		Event:     event,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWebhookStore_UpsertCreatesThenUpdates(t *testing.T) {
	s := NewWebhookStore()

	created := s.Upsert(newWebhook("wh-1", "alice", "trade.executed", "https://a.example/hook"))
	if !created {
		t.Fatal("first upsert for an owner+event pair must create")
	}

	// Same pair with a new URL: update in place, id stays stable.
	created = s.Upsert(newWebhook("wh-2", "alice", "trade.executed", "https://b.example/hook"))
	if created {
		t.Fatal("second upsert for the same pair must update, not create")
	}

	w, err := s.Get("wh-1")
	if err != nil {
		t.Fatalf("original webhook id must survive an update: %v", err)
	}
	if w.URL != "https://b.example/hook" {
		t.Errorf("URL not refreshed: %s", w.URL)
	}
	if _, err := s.Get("wh-2"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Error("the replacement id must not be stored")
	}
}

func TestWebhookStore_DistinctEventsAreSeparate(t *testing.T) {
	s := NewWebhookStore()

	s.Upsert(newWebhook("wh-1", "alice", "trade.executed", "https://a.example/t"))
	s.Upsert(newWebhook("wh-2", "alice", "order.cancelled", "https://a.example/c"))

	if got := len(s.ListByOwner("alice")); got != 2 {
		t.Errorf("expected 2 subscriptions, got %d", got)
	}
}

func TestWebhookStore_GetByOwnerEvent(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(newWebhook("wh-1", "alice", "trade.executed", "https://a.example/t"))

	if w := s.GetByOwnerEvent("alice", "trade.executed"); w == nil || w.WebhookID != "wh-1" {
		t.Errorf("lookup by owner+event failed: %+v", w)
	}
	if w := s.GetByOwnerEvent("alice", "order.expired"); w != nil {
		t.Error("unsubscribed event must return nil")
	}
	if w := s.GetByOwnerEvent("bob", "trade.executed"); w != nil {
		t.Error("unknown owner must return nil")
	}
}

func TestWebhookStore_Delete(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(newWebhook("wh-1", "alice", "trade.executed", "https://a.example/t"))

	if err := s.Delete("wh-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get("wh-1"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Error("deleted webhook must be gone")
	}
	if w := s.GetByOwnerEvent("alice", "trade.executed"); w != nil {
		t.Error("owner index must be cleaned up on delete")
	}
	if err := s.Delete("wh-1"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Error("double delete must report not found")
	}
}

func TestWebhookStore_ListByOwnerEmpty(t *testing.T) {
	s := NewWebhookStore()

	if got := s.ListByOwner("nobody"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
