package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wallybot/wally-agent/internal/domain"
)

// Store implements domain.OrderStore on Firestore. Orders are append-only
// documents; nothing here ever updates or deletes one.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Firestore-backed order store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Firestore types
// ─────────────────────────────────────────

type orderDoc struct {
	CreatedAt time.Time `firestore:"created_at"`
	Items     []itemDoc `firestore:"items"`
	Total     *float64  `firestore:"total"`
}

type itemDoc struct {
	Name     string `firestore:"name"`
	Quantity int    `firestore:"quantity"`
}

func (s *Store) ordersCol() *firestore.CollectionRef {
	return s.client.Collection("orders")
}

// ─────────────────────────────────────────
// OrderStore implementation
// ─────────────────────────────────────────

func (s *Store) Save(ctx context.Context, items []domain.ItemRequest, total *float64) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	order := &domain.Order{
		ID:        domain.OrderID(uuid.NewString()),
		CreatedAt: s.now().UTC(),
		Items:     items,
		Total:     total,
	}

	doc := orderDoc{
		CreatedAt: order.CreatedAt,
		Items:     toItemDocs(order.Items),
		Total:     order.Total,
	}

	if _, err := s.ordersCol().Doc(string(order.ID)).Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating order document: %w", err)
	}
	return order, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	query := s.ordersCol().
		OrderBy("created_at", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Offset(offset).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	orders := []*domain.Order{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating orders: %w", err)
		}

		order, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *Store) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	snap, err := s.ordersCol().Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}
	return fromSnapshot(snap)
}

func (s *Store) MostRecent(ctx context.Context) (*domain.Order, error) {
	orders, err := s.List(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return orders[0], nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func fromSnapshot(snap *firestore.DocumentSnapshot) (*domain.Order, error) {
	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding order document %s: %w", snap.Ref.ID, err)
	}

	items := make([]domain.ItemRequest, 0, len(doc.Items))
	for _, it := range doc.Items {
		items = append(items, domain.ItemRequest{Name: it.Name, Quantity: it.Quantity})
	}

	return &domain.Order{
		ID:        domain.OrderID(snap.Ref.ID),
		CreatedAt: doc.CreatedAt,
		Items:     items,
		Total:     doc.Total,
	}, nil
}

func toItemDocs(items []domain.ItemRequest) []itemDoc {
	out := make([]itemDoc, 0, len(items))
	for _, it := range items {
		out = append(out, itemDoc{Name: it.Name, Quantity: it.Quantity})
	}
	return out
}
