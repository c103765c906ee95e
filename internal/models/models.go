package models

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals are rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultDiscountCodeTTL is applied when a code is created without an expiry.
const DefaultDiscountCodeTTL = 30 * 24 * time.Hour

var (
	ErrNegativePrice       = errors.New("price cannot be negative")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrQuantityOverflow    = errors.New("quantity exceeds the maximum allowed")
)

// Item represents a line in a cart or an order
type Item struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// NewItem builds a validated item
func NewItem(itemID, name string, price decimal.Decimal, quantity int) (Item, error) {
	item := Item{ItemID: itemID, Name: name, Price: price, Quantity: quantity}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Validate checks the price and quantity invariants
func (i Item) Validate() error {
	if i.Price.IsNegative() {
		return ErrNegativePrice
	}
	if i.Quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	return nil
}

// Subtotal returns price * quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) MarshalJSON() ([]byte, error) {
	type alias Item
	return json.Marshal(struct {
		alias
		Subtotal decimal.Decimal `json:"subtotal"`
	}{alias(i), i.Subtotal()})
}

// Cart represents a user's pending purchase list
type Cart struct {
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCart creates an empty cart for a user
func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges by item_id: an existing line gets its quantity increased.
// The cart is left unchanged when the merged quantity would overflow.
func (c *Cart) AddItem(item Item, now time.Time) error {
	if idx := c.FindItem(item.ItemID); idx >= 0 {
		if c.Items[idx].Quantity > math.MaxInt-item.Quantity {
			return ErrQuantityOverflow
		}
		c.Items[idx].Quantity += item.Quantity
	} else {
		c.Items = append(c.Items, item)
	}
	c.UpdatedAt = now
	return nil
}

// FindItem returns the index of the item or -1
func (c *Cart) FindItem(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// RemoveItem drops a line from the cart, reporting whether it was present.
func (c *Cart) RemoveItem(itemID string, now time.Time) bool {
	idx := c.FindItem(itemID)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.UpdatedAt = now
	return true
}

// Total returns the sum of price * quantity across all lines
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount returns the sum of quantities
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Clear empties the cart
func (c *Cart) Clear(now time.Time) {
	c.Items = []Item{}
	c.UpdatedAt = now
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = CopyItems(c.Items)
	return &cp
}

func (c Cart) MarshalJSON() ([]byte, error) {
	type alias Cart
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	a := alias(c)
	a.Items = items
	return json.Marshal(struct {
		alias
		TotalItems  int             `json:"total_items"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}{a, c.ItemCount(), c.Total()})
}

// CopyItems returns a value copy of the slice
func CopyItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// DiscountCode is a single-use, time-limited percentage discount
type DiscountCode struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	IsUsed             bool            `json:"is_used"`
	CreatedAt          time.Time       `json:"created_at"`
	UsedAt             *time.Time      `json:"used_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
}

// NewDiscountCode creates an unused code. A zero expiresAt defaults to
// createdAt + DefaultDiscountCodeTTL.
func NewDiscountCode(code string, percentage decimal.Decimal, createdAt, expiresAt time.Time) *DiscountCode {
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(DefaultDiscountCodeTTL)
	}
	return &DiscountCode{
		Code:               code,
		DiscountPercentage: percentage,
		CreatedAt:          createdAt,
		ExpiresAt:          expiresAt,
	}
}

// IsValid reports whether the code is unused and not expired now
func (d *DiscountCode) IsValid() bool {
	return d.IsValidAt(time.Now().UTC())
}

// IsValidAt reports whether the code is unused and now <= expires_at
func (d *DiscountCode) IsValidAt(now time.Time) bool {
	if d.IsUsed {
		return false
	}
	return !now.After(d.ExpiresAt)
}

// Use marks the code as used. There is no way back.
func (d *DiscountCode) Use(now time.Time) {
	d.IsUsed = true
	d.UsedAt = &now
}

// Clone returns a copy that does not share UsedAt
func (d *DiscountCode) Clone() *DiscountCode {
	cp := *d
	if d.UsedAt != nil {
		usedAt := *d.UsedAt
		cp.UsedAt = &usedAt
	}
	return &cp
}

func (d DiscountCode) MarshalJSON() ([]byte, error) {
	type alias DiscountCode
	return json.Marshal(struct {
		alias
		IsValid bool `json:"is_valid"`
	}{alias(d), d.IsValid()})
}

// Order is the immutable record of a completed checkout
type Order struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	Items          []Item          `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountCode   *string         `json:"discount_code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewOrder snapshots items and computes total_amount = subtotal - discount_amount.
func NewOrder(orderID, userID string, items []Item, subtotal decimal.Decimal, discountCode *string, discountAmount decimal.Decimal, now time.Time) *Order {
	return &Order{
		OrderID:        orderID,
		UserID:         userID,
		Items:          CopyItems(items),
		Subtotal:       subtotal,
		DiscountCode:   discountCode,
		DiscountAmount: discountAmount,
		TotalAmount:    subtotal.Sub(discountAmount),
		CreatedAt:      now,
	}
}

// ItemCount returns the sum of quantities in the order
func (o *Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = CopyItems(o.Items)
	if o.DiscountCode != nil {
		code := *o.DiscountCode
		cp.DiscountCode = &code
	}
	return &cp
}
