package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

func TestSubscribe_UpsertsByEndpoint(t *testing.T) {
	repo := newMockPushRepo()
	svc := NewPushService(repo)
	endpoint := "https://fcm.googleapis.com/fcm/send/abc"

	first, err := svc.Subscribe(context.Background(), "u1", endpoint, "key", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := svc.Subscribe(context.Background(), "u2", endpoint, "key2", "secret2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID || second.UserID != "u2" {
		t.Errorf("expected same subscription re-owned, got %+v", second)
	}

	subs, _ := svc.ListSubscriptions(context.Background(), "u1")
	if len(subs) != 0 {
		t.Errorf("expected u1 to have no subscriptions, got %d", len(subs))
	}
}

func TestSubscribe_Invalid(t *testing.T) {
	svc := NewPushService(newMockPushRepo())

	for _, endpoint := range []string{"", "http://insecure.example/x", "not a url"} {
		if _, err := svc.Subscribe(context.Background(), "u1", endpoint, "k", "a"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %q, got: %v", endpoint, err)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	repo := newMockPushRepo()
	svc := NewPushService(repo)
	endpoint := "https://push.example/1"

	svc.Subscribe(context.Background(), "u1", endpoint, "k", "a")

	if err := svc.Unsubscribe(context.Background(), "u2", endpoint); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got: %v", err)
	}
	if err := svc.Unsubscribe(context.Background(), "u1", endpoint); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
