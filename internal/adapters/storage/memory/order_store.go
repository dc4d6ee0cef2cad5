package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wallybot/wally-agent/internal/domain"
)

// OrderStore is an in-memory implementation of domain.OrderStore.
// It is NOT persistent and is only suitable for development / local mode.
// Orders are copied on the way in and out so callers cannot mutate history.
type OrderStore struct {
	mu     sync.RWMutex
	orders []*domain.Order
	byID   map[domain.OrderID]*domain.Order

	now func() time.Time
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		byID: make(map[domain.OrderID]*domain.Order),
		now:  time.Now,
	}
}

func (s *OrderStore) Save(ctx context.Context, items []domain.ItemRequest, total *float64) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	order := &domain.Order{
		ID:        domain.OrderID(uuid.NewString()),
		CreatedAt: s.now(),
		Items:     cloneItems(items),
		Total:     cloneTotal(total),
	}

	s.mu.Lock()
	s.orders = append(s.orders, order)
	s.byID[order.ID] = order
	s.mu.Unlock()

	return cloneOrder(order), nil
}

func (s *OrderStore) List(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	s.mu.RLock()
	sorted := make([]*domain.Order, len(s.orders))
	copy(sorted, s.orders)
	s.mu.RUnlock()

	// Most-recent-first, id breaks ties so the ordering is deterministic.
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	if offset >= len(sorted) {
		return []*domain.Order{}, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]*domain.Order, 0, len(sorted))
	for _, o := range sorted {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func (s *OrderStore) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *OrderStore) MostRecent(ctx context.Context) (*domain.Order, error) {
	orders, err := s.List(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return orders[0], nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	return &domain.Order{
		ID:        o.ID,
		CreatedAt: o.CreatedAt,
		Items:     cloneItems(o.Items),
		Total:     cloneTotal(o.Total),
	}
}

func cloneItems(items []domain.ItemRequest) []domain.ItemRequest {
	out := make([]domain.ItemRequest, len(items))
	copy(out, items)
	return out
}

func cloneTotal(total *float64) *float64 {
	if total == nil {
		return nil
	}
	v := *total
	return &v
}
