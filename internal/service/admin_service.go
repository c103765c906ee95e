package service

import (
	"context"
	"fmt"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Statistics is the admin view over all orders and discount codes. Monetary
// values are rounded to 2 places.
type Statistics struct {
	Orders    OrderStatistics    `json:"orders"`
	Discounts DiscountStatistics `json:"discounts"`
	Revenue   RevenueStatistics  `json:"revenue"`
}

type OrderStatistics struct {
	TotalOrders         int             `json:"total_orders"`
	TotalItemsPurchased int             `json:"total_items_purchased"`
	TotalPurchaseAmount decimal.Decimal `json:"total_purchase_amount"`
	AverageOrderValue   decimal.Decimal `json:"average_order_value"`
}

type DiscountStatistics struct {
	TotalDiscountCodes     int                   `json:"total_discount_codes"`
	UsedDiscountCodes      int                   `json:"used_discount_codes"`
	AvailableDiscountCodes int                   `json:"available_discount_codes"`
	TotalDiscountAmount    decimal.Decimal       `json:"total_discount_amount"`
	DiscountCodes          []models.DiscountCode `json:"discount_codes"`
}

type RevenueStatistics struct {
	GrossRevenue      decimal.Decimal `json:"gross_revenue"`
	NetRevenue        decimal.Decimal `json:"net_revenue"`
	TotalSavingsGiven decimal.Decimal `json:"total_savings_given"`
}

// OrderSummary is a compact admin listing entry
type OrderSummary struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DiscountApplied bool            `json:"discount_applied"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DiscountCodeSummary counts codes by state
type DiscountCodeSummary struct {
	TotalCodes     int                   `json:"total_codes"`
	UsedCodes      int                   `json:"used_codes"`
	AvailableCodes int                   `json:"available_codes"`
	Codes          []models.DiscountCode `json:"codes"`
}

// AdminService aggregates store statistics and issues codes on request
type AdminService struct {
	store          *store.Store
	discounts      *DiscountService
	eventPublisher EventPublisher
	frequency      int
	logger         *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(store *store.Store, discounts *DiscountService, eventPublisher EventPublisher, frequency int) *AdminService {
	if frequency <= 0 {
		frequency = 1
	}
	return &AdminService{
		store:          store,
		discounts:      discounts,
		eventPublisher: eventPublisher,
		frequency:      frequency,
		logger:         util.GetLogger(),
	}
}

// GetStatistics aggregates all orders and discount codes
func (s *AdminService) GetStatistics(ctx context.Context) (*Statistics, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.GetStatistics")
	defer span.End()

	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	codes, err := s.store.ListDiscountCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}
	available, err := s.store.ListValidDiscountCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}

	itemsPurchased := 0
	purchaseAmount := decimal.Zero
	discountAmount := decimal.Zero
	for _, o := range orders {
		itemsPurchased += o.ItemCount()
		purchaseAmount = purchaseAmount.Add(o.TotalAmount)
		discountAmount = discountAmount.Add(o.DiscountAmount)
	}

	average := decimal.Zero
	if len(orders) > 0 {
		average = purchaseAmount.Div(decimal.NewFromInt(int64(len(orders))))
	}

	used := 0
	for _, dc := range codes {
		if dc.IsUsed {
			used++
		}
	}

	stats := &Statistics{
		Orders: OrderStatistics{
			TotalOrders:         len(orders),
			TotalItemsPurchased: itemsPurchased,
			TotalPurchaseAmount: purchaseAmount.Round(2),
			AverageOrderValue:   average.Round(2),
		},
		Discounts: DiscountStatistics{
			TotalDiscountCodes:     len(codes),
			UsedDiscountCodes:      used,
			AvailableDiscountCodes: len(available),
			TotalDiscountAmount:    discountAmount.Round(2),
			DiscountCodes:          codes,
		},
		Revenue: RevenueStatistics{
			GrossRevenue:      purchaseAmount.Add(discountAmount).Round(2),
			NetRevenue:        purchaseAmount.Round(2),
			TotalSavingsGiven: discountAmount.Round(2),
		},
	}

	s.logger.Debug("Generated store statistics", zap.Int("total_orders", len(orders)))
	return stats, nil
}

// GetOrderSummary lists every order in placement order
func (s *AdminService) GetOrderSummary(ctx context.Context) ([]OrderSummary, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderSummary{
			OrderID:         o.OrderID,
			UserID:          o.UserID,
			TotalAmount:     o.TotalAmount,
			DiscountApplied: o.DiscountCode != nil,
			DiscountAmount:  o.DiscountAmount,
			CreatedAt:       o.CreatedAt,
		})
	}
	return out, nil
}

// GetDiscountCodeSummary counts codes by state
func (s *AdminService) GetDiscountCodeSummary(ctx context.Context) (*DiscountCodeSummary, error) {
	codes, err := s.store.ListDiscountCodes(ctx)
	if err != nil {
		return nil, err
	}
	available, err := s.store.ListValidDiscountCodes(ctx)
	if err != nil {
		return nil, err
	}
	used := 0
	for _, dc := range codes {
		if dc.IsUsed {
			used++
		}
	}
	return &DiscountCodeSummary{
		TotalCodes:     len(codes),
		UsedCodes:      used,
		AvailableCodes: len(available),
		Codes:          codes,
	}, nil
}

// GenerateDiscountCode issues a code manually. Unlike the automatic path at
// checkout, it refuses while any unused valid code exists.
func (s *AdminService) GenerateDiscountCode(ctx context.Context) (*models.DiscountCode, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.GenerateDiscountCode")
	defer span.End()

	dc, total, err := s.generateLocked(ctx)
	if err != nil {
		return nil, err
	}

	publishCodeIssued(ctx, s.eventPublisher, s.logger, dc, models.DiscountSourceAdmin, total)

	s.logger.Info("Admin generated discount code", zap.String("code", dc.Code))
	return dc, nil
}

// generateLocked checks both preconditions and mints the code under the
// order-sequence lock. It returns the order count the check ran against.
func (s *AdminService) generateLocked(ctx context.Context) (*models.DiscountCode, int, error) {
	unlock := s.store.LockOrderSequence()
	defer unlock()

	total := s.store.OrderCount(ctx)
	if total%s.frequency != 0 {
		return nil, total, newError(ErrPreconditionFailed,
			"Discount code can only be generated every %d orders. Current orders: %d", s.frequency, total)
	}

	exists, err := s.discounts.HasUnusedCode(ctx)
	if err != nil {
		return nil, total, err
	}
	if exists {
		return nil, total, newError(ErrPreconditionFailed, "There is already an unused discount code available")
	}

	dc, err := s.discounts.GenerateCode(ctx)
	if err != nil {
		return nil, total, err
	}

	util.DiscountCodesIssuedTotal.WithLabelValues(models.DiscountSourceAdmin).Inc()
	return dc, total, nil
}

func publishCodeIssued(ctx context.Context, publisher EventPublisher, logger *zap.Logger, dc *models.DiscountCode, source string, orderCount int) {
	if publisher == nil {
		return
	}
	event := &models.DiscountCodeIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDiscountCodeIssued,
			Timestamp: time.Now().UTC(),
		},
		Code:               dc.Code,
		DiscountPercentage: dc.DiscountPercentage,
		Source:             source,
		OrderCount:         orderCount,
		ExpiresAt:          dc.ExpiresAt,
	}
	if err := publisher.PublishDiscountCodeIssued(ctx, event); err != nil {
		logger.Error("Failed to publish DiscountCodeIssued event", zap.Error(err))
	}
}
