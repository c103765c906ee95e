package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"ecommerce-api/internal/models"
)

// ErrNotFound is returned when an entity is not in the store
var ErrNotFound = errors.New("not found")

// Store is the in-memory system of record for carts, orders and discount
// codes. Entities go in and come out as copies.
type Store struct {
	mu            sync.RWMutex
	carts         map[string]*models.Cart
	orders        map[string]*models.Order
	orderIDs      []string
	discountCodes map[string]*models.DiscountCode
	codeOrder     []string
	orderCounter  int

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex
	seqMu     sync.Mutex

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		carts:         make(map[string]*models.Cart),
		orders:        make(map[string]*models.Order),
		discountCodes: make(map[string]*models.DiscountCode),
		userLocks:     make(map[string]*sync.Mutex),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Now returns the store clock
func (s *Store) Now() time.Time {
	return s.now()
}

// LockUser serializes read-modify-write on one user's cart. Call the returned
// func to release.
func (s *Store) LockUser(userID string) func() {
	s.locksMu.Lock()
	m, ok := s.userLocks[userID]
	if !ok {
		m = &sync.Mutex{}
		s.userLocks[userID] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// LockOrderSequence serializes checkouts and discount code minting so the
// order-count check and code redemption are atomic. Always take a user lock
// before this one, never after.
func (s *Store) LockOrderSequence() func() {
	s.seqMu.Lock()
	return s.seqMu.Unlock
}

// GetCart returns the user's cart, creating an empty one on first access
func (s *Store) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	s.mu.RLock()
	cart, ok := s.carts[userID]
	if ok {
		cp := cart.Clone()
		s.mu.RUnlock()
		return cp, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok = s.carts[userID]; !ok {
		cart = models.NewCart(userID, s.now())
		s.carts[userID] = cart
	}
	return cart.Clone(), nil
}

// SaveCart replaces the stored cart for cart.UserID
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.UserID] = cart.Clone()
	return nil
}

// SaveOrder appends an order and bumps the audit counter
func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.OrderID]; !exists {
		s.orderIDs = append(s.orderIDs, order.OrderID)
	}
	s.orders[order.OrderID] = order.Clone()
	s.orderCounter++
	return nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

// ListOrders returns all orders in insertion order
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		out = append(out, *s.orders[id].Clone())
	}
	return out, nil
}

// OrderCount returns the number of stored orders
func (s *Store) OrderCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// OrderCounter returns the audit counter incremented on every SaveOrder
func (s *Store) OrderCounter(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderCounter
}

// SaveDiscountCode inserts or replaces a discount code
func (s *Store) SaveDiscountCode(ctx context.Context, dc *models.DiscountCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.discountCodes[dc.Code]; !exists {
		s.codeOrder = append(s.codeOrder, dc.Code)
	}
	s.discountCodes[dc.Code] = dc.Clone()
	return nil
}

// GetDiscountCode retrieves a discount code
func (s *Store) GetDiscountCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dc, ok := s.discountCodes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return dc.Clone(), nil
}

// ListDiscountCodes returns all codes in creation order
func (s *Store) ListDiscountCodes(ctx context.Context) ([]models.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DiscountCode, 0, len(s.codeOrder))
	for _, code := range s.codeOrder {
		out = append(out, *s.discountCodes[code].Clone())
	}
	return out, nil
}

// ListValidDiscountCodes returns codes that are unused and not expired
func (s *Store) ListValidDiscountCodes(ctx context.Context) ([]models.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]models.DiscountCode, 0)
	for _, code := range s.codeOrder {
		if dc := s.discountCodes[code]; dc.IsValidAt(now) {
			out = append(out, *dc.Clone())
		}
	}
	return out, nil
}

// Reset drops all data
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts = make(map[string]*models.Cart)
	s.orders = make(map[string]*models.Order)
	s.orderIDs = nil
	s.discountCodes = make(map[string]*models.DiscountCode)
	s.codeOrder = nil
	s.orderCounter = 0
}
