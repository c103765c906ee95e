package service

import (
	"context"
	"fmt"
	"strings"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"go.uber.org/zap"
)

// CartService mutates per-user carts
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddItem merges an item into the user's cart
func (s *CartService) AddItem(ctx context.Context, userID string, item models.Item) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, newError(ErrInvalidInput, "User ID cannot be empty")
	}
	if err := item.Validate(); err != nil {
		return nil, newError(ErrInvalidInput, "%s", err.Error())
	}

	unlock := s.store.LockUser(userID)
	defer unlock()

	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if err := cart.AddItem(item, s.store.Now()); err != nil {
		return nil, newError(ErrInvalidInput, "%s", err.Error())
	}
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartItemsAddedTotal.Inc()
	s.logger.Info("Added item to cart",
		zap.String("user_id", userID),
		zap.String("item_id", item.ItemID),
		zap.Int("quantity", item.Quantity))

	return cart, nil
}

// GetCart returns the user's cart, creating it on first access
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	return s.store.GetCart(ctx, userID)
}

// ClearCart empties the user's cart
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	unlock := s.store.LockUser(userID)
	defer unlock()
	return s.clear(ctx, userID)
}

// clear expects the caller to hold the user lock
func (s *CartService) clear(ctx context.Context, userID string) error {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}
	cart.Clear(s.store.Now())
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	util.CartsClearedTotal.Inc()
	s.logger.Info("Cleared cart", zap.String("user_id", userID))
	return nil
}

// RemoveItem drops an item line from the user's cart
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	unlock := s.store.LockUser(userID)
	defer unlock()

	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if !cart.RemoveItem(itemID, s.store.Now()) {
		return nil, newError(ErrNotFound, "Item %s not found in cart", itemID)
	}
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	s.logger.Info("Removed item from cart",
		zap.String("user_id", userID),
		zap.String("item_id", itemID))
	return cart, nil
}
