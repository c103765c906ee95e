package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const discountCodePrefix = "DISCOUNT"

// DiscountService mints, validates and consumes discount codes
type DiscountService struct {
	store      *store.Store
	percentage decimal.Decimal
	ttl        time.Duration
	logger     *zap.Logger
}

// NewDiscountService creates a discount service. Non-positive expiryDays
// fall back to the 30-day default.
func NewDiscountService(store *store.Store, percentage float64, expiryDays int) *DiscountService {
	ttl := models.DefaultDiscountCodeTTL
	if expiryDays > 0 {
		ttl = time.Duration(expiryDays) * 24 * time.Hour
	}
	return &DiscountService{
		store:      store,
		percentage: decimal.NewFromFloat(percentage),
		ttl:        ttl,
		logger:     util.GetLogger(),
	}
}

// Percentage returns the discount applied by generated codes
func (s *DiscountService) Percentage() decimal.Decimal {
	return s.percentage
}

// GenerateCode mints and stores a new code. The 8 hex characters come from a
// random UUID; collisions are not re-checked and the code is not a secret.
func (s *DiscountService) GenerateCode(ctx context.Context) (*models.DiscountCode, error) {
	ctx, span := util.StartSpan(ctx, "DiscountService.GenerateCode")
	defer span.End()

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	now := s.store.Now()
	dc := models.NewDiscountCode(discountCodePrefix+suffix, s.percentage, now, now.Add(s.ttl))

	if err := s.store.SaveDiscountCode(ctx, dc); err != nil {
		return nil, fmt.Errorf("failed to save discount code: %w", err)
	}

	s.logger.Info("Generated discount code", zap.String("code", dc.Code))
	return dc, nil
}

// IsValid reports whether the code exists and is currently valid
func (s *DiscountService) IsValid(ctx context.Context, code string) bool {
	dc, err := s.store.GetDiscountCode(ctx, code)
	if err != nil {
		return false
	}
	return dc.IsValidAt(s.store.Now())
}

// UseCode marks a valid code as used
func (s *DiscountService) UseCode(ctx context.Context, code string) error {
	ctx, span := util.StartSpan(ctx, "DiscountService.UseCode")
	defer span.End()

	dc, err := s.store.GetDiscountCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, "Discount code not found")
	}
	if err != nil {
		return fmt.Errorf("failed to load discount code: %w", err)
	}

	now := s.store.Now()
	if !dc.IsValidAt(now) {
		return newError(ErrInvalidDiscount, "Discount code is expired or already used")
	}

	dc.Use(now)
	if err := s.store.SaveDiscountCode(ctx, dc); err != nil {
		return fmt.Errorf("failed to save discount code: %w", err)
	}

	util.DiscountCodesRedeemedTotal.Inc()
	s.logger.Info("Marked discount code as used", zap.String("code", code))
	return nil
}

// HasUnusedCode reports whether any stored code is currently valid
func (s *DiscountService) HasUnusedCode(ctx context.Context) (bool, error) {
	codes, err := s.store.ListValidDiscountCodes(ctx)
	if err != nil {
		return false, err
	}
	return len(codes) > 0, nil
}

// AvailableCodes returns the currently valid codes
func (s *DiscountService) AvailableCodes(ctx context.Context) ([]models.DiscountCode, error) {
	return s.store.ListValidDiscountCodes(ctx)
}
