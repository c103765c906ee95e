package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"ecommerce-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemMergesQuantities(t *testing.T) {
	svc := NewCartService(store.NewStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", item("A", 10, 2))
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "u1", item("A", 10, 3))
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(50)))
}

func TestAddItemRejectsQuantityOverflow(t *testing.T) {
	svc := NewCartService(store.NewStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", item("A", 1, math.MaxInt))
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "u1", item("A", 1, 1))
	require.ErrorIs(t, err, ErrInvalidInput)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "quantity exceeds the maximum allowed", svcErr.Message)

	cart, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, math.MaxInt, cart.Items[0].Quantity)
}

func TestAddItemValidation(t *testing.T) {
	svc := NewCartService(store.NewStore())
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		price  int64
		qty    int
	}{
		{"blank user", "  ", 10, 1},
		{"negative price", "u1", -1, 1},
		{"zero quantity", "u1", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, tt.userID, item("A", tt.price, tt.qty))
			assert.ErrorIs(t, err, ErrInvalidInput)

			var svcErr *Error
			require.True(t, errors.As(err, &svcErr))
			assert.NotEmpty(t, svcErr.Message)
		})
	}

	cart, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveItem(t *testing.T) {
	svc := NewCartService(store.NewStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", item("A", 10, 1))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", item("B", 20, 1))
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, "u1", "A")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "B", cart.Items[0].ItemID)

	_, err = svc.RemoveItem(ctx, "u1", "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearCart(t *testing.T) {
	svc := NewCartService(store.NewStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", item("A", 10, 1))
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, "u1"))

	cart, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
