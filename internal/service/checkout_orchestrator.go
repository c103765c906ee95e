package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutOrchestrator runs the checkout workflow: order creation, code
// redemption, cart clearing and the every-Nth-order code issue.
type CheckoutOrchestrator struct {
	store          *store.Store
	carts          *CartService
	orders         *OrderService
	discounts      *DiscountService
	eventPublisher EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	frequency      int
	logger         *zap.Logger
}

// CheckoutResult is the outcome of a checkout. Replayed is set when the order
// was returned for a repeated idempotency key instead of being created.
type CheckoutResult struct {
	Order         *models.Order
	GeneratedCode *models.DiscountCode
	Replayed      bool

	codeRedeemed bool
	orderCount   int
}

// NewCheckoutOrchestrator creates a new checkout orchestrator. eventPublisher
// and idempotency may be nil.
func NewCheckoutOrchestrator(
	store *store.Store,
	carts *CartService,
	orders *OrderService,
	discounts *DiscountService,
	eventPublisher EventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
	frequency int,
) *CheckoutOrchestrator {
	if frequency <= 0 {
		frequency = 1
	}
	return &CheckoutOrchestrator{
		store:          store,
		carts:          carts,
		orders:         orders,
		discounts:      discounts,
		eventPublisher: eventPublisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		frequency:      frequency,
		logger:         util.GetLogger(),
	}
}

// Checkout converts the user's cart into an order. A failed checkout leaves
// the cart, the code and the order count untouched. Events are published
// after all locks are released.
func (co *CheckoutOrchestrator) Checkout(ctx context.Context, userID, discountCode, idempotencyKey string) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutOrchestrator.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	result, err := co.checkoutForUser(ctx, userID, discountCode, idempotencyKey)
	if err != nil || result.Replayed {
		return result, err
	}

	order := result.Order
	if result.codeRedeemed {
		co.publishCodeRedeemed(ctx, order)
	}
	if result.GeneratedCode != nil {
		publishCodeIssued(ctx, co.eventPublisher, co.logger, result.GeneratedCode, models.DiscountSourceAutomatic, result.orderCount)
	}
	co.publishOrderPlaced(ctx, order)

	co.logger.Info("Checkout completed",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", userID),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("order_counter", co.store.OrderCounter(ctx)))

	return result, nil
}

// checkoutForUser holds the user lock from the idempotency lookup through
// recording the key, so a retry arriving mid-checkout waits and then replays.
func (co *CheckoutOrchestrator) checkoutForUser(ctx context.Context, userID, discountCode, idempotencyKey string) (*CheckoutResult, error) {
	unlockUser := co.store.LockUser(userID)
	defer unlockUser()

	useKey := idempotencyKey != "" && co.idempotency != nil
	if useKey {
		if order, ok := co.replay(ctx, userID, idempotencyKey); ok {
			return &CheckoutResult{Order: order, Replayed: true}, nil
		}
	}

	result, err := co.placeOrder(ctx, userID, discountCode)
	if err != nil {
		return nil, err
	}

	if useKey {
		if err := co.idempotency.SetIdempotencyKey(ctx, idempotencyScope(userID, idempotencyKey), result.Order.OrderID, co.idempotencyTTL); err != nil {
			co.logger.Warn("Failed to store idempotency key",
				zap.String("key", idempotencyKey),
				zap.Error(err))
		}
	}
	return result, nil
}

// placeOrder runs from discount validation through milestone code generation
// under the order-sequence lock. The caller holds the user lock.
func (co *CheckoutOrchestrator) placeOrder(ctx context.Context, userID, discountCode string) (*CheckoutResult, error) {
	unlockSeq := co.store.LockOrderSequence()
	defer unlockSeq()

	cart, err := co.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.IsEmpty() {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	if discountCode != "" && !co.discounts.IsValid(ctx, discountCode) {
		util.CheckoutsFailedTotal.WithLabelValues("invalid_discount").Inc()
		co.logger.Warn("Rejected checkout with invalid discount code",
			zap.String("user_id", userID),
			zap.String("code", discountCode))
		return nil, ErrInvalidDiscount
	}

	order, err := co.orders.CreateOrder(ctx, cart, discountCode)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("create_order").Inc()
		return nil, err
	}

	result := &CheckoutResult{Order: order}

	if discountCode != "" {
		if err := co.discounts.UseCode(ctx, discountCode); err != nil {
			// Validated above under the sequence lock; only a store failure lands here.
			co.logger.Error("Failed to mark discount code as used",
				zap.String("order_id", order.OrderID),
				zap.String("code", discountCode),
				zap.Error(err))
		} else {
			result.codeRedeemed = true
		}
	}

	if err := co.carts.clear(ctx, userID); err != nil {
		co.logger.Error("Failed to clear cart after checkout",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	result.orderCount = co.store.OrderCount(ctx)
	if result.orderCount%co.frequency == 0 {
		dc, err := co.discounts.GenerateCode(ctx)
		if err != nil {
			co.logger.Error("Failed to generate milestone discount code",
				zap.Int("order_count", result.orderCount),
				zap.Error(err))
		} else {
			result.GeneratedCode = dc
			util.DiscountCodesIssuedTotal.WithLabelValues(models.DiscountSourceAutomatic).Inc()
			co.logger.Info("Issued discount code on order milestone",
				zap.String("code", dc.Code),
				zap.Int("order_count", result.orderCount))
		}
	}

	return result, nil
}

// replay looks up an order previously produced for the same key. Lookup
// failures fall through to a normal checkout.
func (co *CheckoutOrchestrator) replay(ctx context.Context, userID, key string) (*models.Order, bool) {
	orderID, found, err := co.idempotency.GetIdempotencyKey(ctx, idempotencyScope(userID, key))
	if err != nil {
		co.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	order, err := co.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		co.logger.Warn("Failed to load replayed order", zap.String("order_id", orderID), zap.Error(err))
		return nil, false
	}

	co.logger.Info("Returning existing order for idempotency key",
		zap.String("key", key),
		zap.String("order_id", orderID))
	return order, true
}

func (co *CheckoutOrchestrator) publishOrderPlaced(ctx context.Context, order *models.Order) {
	if co.eventPublisher == nil {
		return
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now().UTC(),
		},
		OrderID:        order.OrderID,
		UserID:         order.UserID,
		Items:          models.CopyItems(order.Items),
		Subtotal:       order.Subtotal,
		DiscountCode:   order.DiscountCode,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
	}
	if err := co.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		co.logger.Error("Failed to publish OrderPlaced event",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}
}

func (co *CheckoutOrchestrator) publishCodeRedeemed(ctx context.Context, order *models.Order) {
	if co.eventPublisher == nil || order.DiscountCode == nil {
		return
	}
	event := &models.DiscountCodeRedeemedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDiscountCodeRedeemed,
			Timestamp: time.Now().UTC(),
		},
		Code:    *order.DiscountCode,
		OrderID: order.OrderID,
		UserID:  order.UserID,
	}
	if err := co.eventPublisher.PublishDiscountCodeRedeemed(ctx, event); err != nil {
		co.logger.Error("Failed to publish DiscountCodeRedeemed event",
			zap.String("code", *order.DiscountCode),
			zap.Error(err))
	}
}

func idempotencyScope(userID, key string) string {
	return "checkout:" + userID + ":" + key
}
