package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced          = "ORDER_PLACED"
	EventTypeDiscountCodeIssued   = "DISCOUNT_CODE_ISSUED"
	EventTypeDiscountCodeRedeemed = "DISCOUNT_CODE_REDEEMED"
)

// Discount code sources
const (
	DiscountSourceAutomatic = "automatic"
	DiscountSourceAdmin     = "admin"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when checkout creates an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	Items          []Item          `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountCode   *string         `json:"discount_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// DiscountCodeIssuedEvent published when a new code is minted
type DiscountCodeIssuedEvent struct {
	BaseEvent
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Source             string          `json:"source"`
	OrderCount         int             `json:"order_count"`
	ExpiresAt          time.Time       `json:"expires_at"`
}

// DiscountCodeRedeemedEvent published when a code is consumed by an order
type DiscountCodeRedeemedEvent struct {
	BaseEvent
	Code    string `json:"code"`
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}
