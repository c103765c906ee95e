package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce-api/internal/models"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidDiscount    = errors.New("invalid or expired discount code")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Error is a business-rule failure with a client-facing message. It matches
// its Kind under errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// EventPublisher emits domain events. Publish failures never fail the
// operation that produced the event.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishDiscountCodeIssued(ctx context.Context, event *models.DiscountCodeIssuedEvent) error
	PublishDiscountCodeRedeemed(ctx context.Context, event *models.DiscountCodeRedeemedEvent) error
}

// IdempotencyStore remembers which order a checkout idempotency key produced
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
