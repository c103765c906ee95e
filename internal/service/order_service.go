package service

import (
	"context"
	"errors"
	"fmt"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// OrderService converts carts into orders
type OrderService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store) *OrderService {
	return &OrderService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateOrder builds and persists an order from the cart. A non-empty
// discountCode must be valid; it is not marked as used here, the caller
// consumes it through DiscountService.UseCode.
func (s *OrderService) CreateOrder(ctx context.Context, cart *models.Cart, discountCode string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if cart == nil || cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	subtotal := cart.Total()
	discountAmount := decimal.Zero

	var appliedCode *string
	if discountCode != "" {
		amount, err := s.discountFor(ctx, discountCode, subtotal)
		if err != nil {
			return nil, err
		}
		discountAmount = amount
		code := discountCode
		appliedCode = &code
	}

	order := models.NewOrder(
		uuid.New().String(),
		cart.UserID,
		cart.Items,
		subtotal,
		appliedCode,
		discountAmount,
		s.store.Now(),
	)

	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	util.OrderValue.Observe(order.TotalAmount.InexactFloat64())
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.String()))

	return order, nil
}

// discountFor calculates subtotal * percentage / 100 for a valid code
func (s *OrderService) discountFor(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	dc, err := s.store.GetDiscountCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, ErrInvalidDiscount
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load discount code: %w", err)
	}
	if !dc.IsValidAt(s.store.Now()) {
		return decimal.Zero, ErrInvalidDiscount
	}
	return subtotal.Mul(dc.DiscountPercentage.Div(hundred)), nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "Order %s not found", orderID)
	}
	return order, err
}

// GetUserOrders returns the user's orders in placement order
func (s *OrderService) GetUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}
