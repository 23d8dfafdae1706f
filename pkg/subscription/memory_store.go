package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Repository.
// Transactions hold the store lock for their whole duration and work on a
// copy of the data that replaces the live data on commit.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

func (s *MemoryStore) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getSubscription(id)
}

func (s *MemoryStore) SaveSubscription(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.saveSubscription(sub)
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getOrder(id)
}

func (s *MemoryStore) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *MemoryStore) SaveOrder(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.saveOrder(order)
	return nil
}

func (s *MemoryStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.deleteOrder(id)
}

func (s *MemoryStore) OrdersForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ordersFor(subscriptionID), nil
}

// WithTx runs fn against a snapshot of the store.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{data: s.data.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// memoryTx works on a private copy, the store lock is held by WithTx.
type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return t.data.getSubscription(id)
}

func (t *memoryTx) SaveSubscription(ctx context.Context, sub *Subscription) error {
	t.data.saveSubscription(sub)
	return nil
}

func (t *memoryTx) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return t.data.getOrder(id)
}

func (t *memoryTx) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return t.data.getOrder(id)
}

func (t *memoryTx) SaveOrder(ctx context.Context, order *Order) error {
	t.data.saveOrder(order)
	return nil
}

func (t *memoryTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return t.data.deleteOrder(id)
}

func (t *memoryTx) OrdersForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Order, error) {
	return t.data.ordersFor(subscriptionID), nil
}

// WithTx joins the running transaction.
func (t *memoryTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	return fn(ctx, t)
}

type memoryData struct {
	subscriptions map[uuid.UUID]*Subscription
	orders        map[uuid.UUID]*Order
}

func newMemoryData() *memoryData {
	return &memoryData{
		subscriptions: make(map[uuid.UUID]*Subscription),
		orders:        make(map[uuid.UUID]*Order),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for id, sub := range d.subscriptions {
		c.subscriptions[id] = sub.Clone()
	}
	for id, order := range d.orders {
		c.orders[id] = order.Clone()
	}
	return c
}

func (d *memoryData) getSubscription(id uuid.UUID) (*Subscription, error) {
	sub, ok := d.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (d *memoryData) saveSubscription(sub *Subscription) {
	d.subscriptions[sub.ID] = sub.Clone()
}

func (d *memoryData) getOrder(id uuid.UUID) (*Order, error) {
	order, ok := d.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (d *memoryData) saveOrder(order *Order) {
	d.orders[order.ID] = order.Clone()
}

func (d *memoryData) deleteOrder(id uuid.UUID) error {
	if _, ok := d.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(d.orders, id)
	return nil
}

func (d *memoryData) ordersFor(subscriptionID uuid.UUID) []*Order {
	var out []*Order
	for _, order := range d.orders {
		if order.RelatesTo(subscriptionID) {
			out = append(out, order.Clone())
		}
	}
	SortNewestFirst(out)
	return out
}
