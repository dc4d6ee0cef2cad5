package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wallybot/wally-agent/internal/domain"
)

func newTestStore() (*OrderStore, *time.Time) {
	store := NewOrderStore()
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestSaveRejectsEmptyItems(t *testing.T) {
	store, _ := newTestStore()
	if _, err := store.Save(context.Background(), nil, nil); !errors.Is(err, domain.ErrEmptyOrder) {
		t.Fatalf("err = %v, want ErrEmptyOrder", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	items := []domain.ItemRequest{
		{Name: "milk", Quantity: 2},
		{Name: "milk", Quantity: 1}, // duplicate names are independent entries
	}
	total := 12.50

	saved, err := store.Save(ctx, items, &total)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("saved order has empty id")
	}
	if len(saved.Items) != 2 || saved.Items[0] != items[0] || saved.Items[1] != items[1] {
		t.Fatalf("saved.Items = %v, want %v", saved.Items, items)
	}

	// The saved order is first in list(limit=1).
	listed, err := store.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != saved.ID {
		t.Fatalf("List = %v, want the saved order first", listed)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	store, now := newTestStore()
	ctx := context.Background()

	first, _ := store.Save(ctx, []domain.ItemRequest{{Name: "a", Quantity: 1}}, nil)
	*now = now.Add(time.Minute)
	second, _ := store.Save(ctx, []domain.ItemRequest{{Name: "b", Quantity: 1}}, nil)
	*now = now.Add(time.Minute)
	third, _ := store.Save(ctx, []domain.ItemRequest{{Name: "c", Quantity: 1}}, nil)

	listed, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	wantIDs := []domain.OrderID{third.ID, second.ID, first.ID}
	if len(listed) != 3 {
		t.Fatalf("len = %d, want 3", len(listed))
	}
	for i, want := range wantIDs {
		if listed[i].ID != want {
			t.Errorf("listed[%d].ID = %s, want %s", i, listed[i].ID, want)
		}
	}

	// offset/limit paging
	page, err := store.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != second.ID {
		t.Fatalf("page = %v, want just the middle order", page)
	}
}

// Listing twice without intervening writes returns identical sequences,
// even when created_at ties force the id tie-break.
func TestListIdempotentWithTies(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Save(ctx, []domain.ItemRequest{{Name: "x", Quantity: 1}}, nil); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	a, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	b, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("ordering not stable at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestGet(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	saved, _ := store.Save(ctx, []domain.ItemRequest{{Name: "milk", Quantity: 1}}, nil)

	got, err := store.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != saved.ID {
		t.Fatalf("got %s, want %s", got.ID, saved.ID)
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestMostRecent(t *testing.T) {
	store, now := newTestStore()
	ctx := context.Background()

	// Empty history is (nil, nil), not an error.
	got, err := store.MostRecent(ctx)
	if err != nil {
		t.Fatalf("MostRecent failed: %v", err)
	}
	if got != nil {
		t.Fatalf("got %v, want nil on empty history", got)
	}

	store.Save(ctx, []domain.ItemRequest{{Name: "old", Quantity: 1}}, nil)
	*now = now.Add(time.Hour)
	latest, _ := store.Save(ctx, []domain.ItemRequest{{Name: "new", Quantity: 1}}, nil)

	got, err = store.MostRecent(ctx)
	if err != nil {
		t.Fatalf("MostRecent failed: %v", err)
	}
	if got.ID != latest.ID {
		t.Fatalf("got %s, want %s", got.ID, latest.ID)
	}
}

// Orders are immutable through the store: mutating a returned order must not
// leak into history.
func TestReturnedOrdersAreCopies(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	saved, _ := store.Save(ctx, []domain.ItemRequest{{Name: "milk", Quantity: 1}}, nil)
	saved.Items[0].Name = "tampered"

	got, err := store.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Items[0].Name != "milk" {
		t.Fatalf("stored order was mutated through a returned copy: %v", got.Items)
	}
}
