package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	placed   []*models.OrderPlacedEvent
	issued   []*models.DiscountCodeIssuedEvent
	redeemed []*models.DiscountCodeRedeemedEvent
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, event)
	return nil
}

func (f *fakePublisher) PublishDiscountCodeIssued(ctx context.Context, event *models.DiscountCodeIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, event)
	return nil
}

func (f *fakePublisher) PublishDiscountCodeRedeemed(ctx context.Context, event *models.DiscountCodeRedeemedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemed = append(f.redeemed, event)
	return nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	return v, ok, nil
}

func (m *memIdempotency) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	m.keys[key] = value.(string)
	return nil
}

type testServices struct {
	store     *store.Store
	carts     *CartService
	orders    *OrderService
	discounts *DiscountService
	admin     *AdminService
	checkout  *CheckoutOrchestrator
	publisher *fakePublisher
}

func newTestServices(frequency int, idem IdempotencyStore) *testServices {
	st := store.NewStore()
	pub := &fakePublisher{}
	carts := NewCartService(st)
	orders := NewOrderService(st)
	discounts := NewDiscountService(st, 10, 30)
	return &testServices{
		store:     st,
		carts:     carts,
		orders:    orders,
		discounts: discounts,
		admin:     NewAdminService(st, discounts, pub, frequency),
		checkout:  NewCheckoutOrchestrator(st, carts, orders, discounts, pub, idem, time.Hour, frequency),
		publisher: pub,
	}
}

func (ts *testServices) placeOrder(t *testing.T, userID string, price int64) *CheckoutResult {
	t.Helper()
	_, err := ts.carts.AddItem(context.Background(), userID, item("A", price, 1))
	require.NoError(t, err)
	res, err := ts.checkout.Checkout(context.Background(), userID, "", "")
	require.NoError(t, err)
	return res
}

func TestCheckoutWithDiscount(t *testing.T) {
	ts := newTestServices(3, nil)
	ctx := context.Background()

	dc, err := ts.discounts.GenerateCode(ctx)
	require.NoError(t, err)

	_, err = ts.carts.AddItem(ctx, "u1", item("A", 100, 1))
	require.NoError(t, err)

	res, err := ts.checkout.Checkout(ctx, "u1", dc.Code, "")
	require.NoError(t, err)

	order := res.Order
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(90)))
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Sub(order.DiscountAmount)))

	assert.False(t, ts.discounts.IsValid(ctx, dc.Code))

	cart, err := ts.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	require.Len(t, ts.publisher.placed, 1)
	require.Len(t, ts.publisher.redeemed, 1)
	assert.Equal(t, dc.Code, ts.publisher.redeemed[0].Code)
	assert.Equal(t, order.OrderID, ts.publisher.redeemed[0].OrderID)

	// a used code cannot be redeemed twice
	_, err = ts.carts.AddItem(ctx, "u1", item("A", 100, 1))
	require.NoError(t, err)
	_, err = ts.checkout.Checkout(ctx, "u1", dc.Code, "")
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestCheckoutEmptyCartHasNoEffect(t *testing.T) {
	ts := newTestServices(1, nil)
	ctx := context.Background()

	_, err := ts.checkout.Checkout(ctx, "u1", "", "")
	assert.ErrorIs(t, err, ErrEmptyCart)

	assert.Equal(t, 0, ts.store.OrderCount(ctx))
	codes, err := ts.store.ListDiscountCodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, codes)
	assert.Empty(t, ts.publisher.placed)
}

func TestCheckoutInvalidDiscountKeepsCart(t *testing.T) {
	ts := newTestServices(3, nil)
	ctx := context.Background()

	past := ts.store.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, ts.store.SaveDiscountCode(ctx, models.NewDiscountCode("DISCOUNTEXPIRED0", decimal.NewFromInt(10), past, time.Time{})))

	_, err := ts.carts.AddItem(ctx, "u1", item("A", 25, 2))
	require.NoError(t, err)

	for _, code := range []string{"UNKNOWN", "DISCOUNTEXPIRED0"} {
		_, err = ts.checkout.Checkout(ctx, "u1", code, "")
		assert.ErrorIs(t, err, ErrInvalidDiscount)
	}

	cart, err := ts.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 0, ts.store.OrderCount(ctx))
}

func TestCheckoutIssuesCodeEveryNthOrder(t *testing.T) {
	ts := newTestServices(3, nil)
	ctx := context.Background()

	first := ts.placeOrder(t, "u1", 10)
	second := ts.placeOrder(t, "u2", 10)
	assert.Nil(t, first.GeneratedCode)
	assert.Nil(t, second.GeneratedCode)

	third := ts.placeOrder(t, "u3", 10)
	require.NotNil(t, third.GeneratedCode)
	assert.Regexp(t, codePattern, third.GeneratedCode.Code)

	codes, err := ts.store.ListDiscountCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, third.GeneratedCode.Code, codes[0].Code)

	require.Len(t, ts.publisher.issued, 1)
	assert.Equal(t, models.DiscountSourceAutomatic, ts.publisher.issued[0].Source)
	assert.Equal(t, 3, ts.publisher.issued[0].OrderCount)

	// the automatic path ignores outstanding unused codes
	ts.placeOrder(t, "u1", 10)
	ts.placeOrder(t, "u2", 10)
	sixth := ts.placeOrder(t, "u3", 10)
	require.NotNil(t, sixth.GeneratedCode)

	available, err := ts.discounts.AvailableCodes(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 2)
}

func TestCheckoutIdempotencyKeyReplaysOrder(t *testing.T) {
	ts := newTestServices(5, &memIdempotency{})
	ctx := context.Background()

	_, err := ts.carts.AddItem(ctx, "u1", item("A", 40, 1))
	require.NoError(t, err)

	first, err := ts.checkout.Checkout(ctx, "u1", "", "key-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := ts.checkout.Checkout(ctx, "u1", "", "key-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.OrderID, again.Order.OrderID)
	assert.Equal(t, 1, ts.store.OrderCount(ctx))

	// keys are scoped per user
	_, err = ts.checkout.Checkout(ctx, "u2", "", "key-1")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestConcurrentCheckoutsIssueOneCodePerMilestone(t *testing.T) {
	const users = 30
	ts := newTestServices(3, nil)
	ctx := context.Background()

	for i := 0; i < users; i++ {
		_, err := ts.carts.AddItem(ctx, userName(i), item("A", 10, 1))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ts.checkout.Checkout(ctx, userName(i), "", "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, users, ts.store.OrderCount(ctx))
	codes, err := ts.store.ListDiscountCodes(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, users/3)
}

func TestConcurrentRedemptionOfOneCode(t *testing.T) {
	const users = 10
	ts := newTestServices(100, nil)
	ctx := context.Background()

	dc, err := ts.discounts.GenerateCode(ctx)
	require.NoError(t, err)
	for i := 0; i < users; i++ {
		_, err := ts.carts.AddItem(ctx, userName(i), item("A", 10, 1))
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := ts.checkout.Checkout(ctx, userName(i), dc.Code, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, ts.store.OrderCount(ctx))
}

func userName(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func TestConcurrentRetriesWithSameKeyReplay(t *testing.T) {
	const retries = 8
	idem := &memIdempotency{}
	ts := newTestServices(100, idem)
	ctx := context.Background()

	_, err := ts.carts.AddItem(ctx, "u1", item("A", 40, 1))
	require.NoError(t, err)

	results := make([]*CheckoutResult, retries)
	errs := make([]error, retries)
	var wg sync.WaitGroup
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ts.checkout.Checkout(ctx, "u1", "", "retry-key")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < retries; i++ {
		require.NoError(t, errs[i])
		if !results[i].Replayed {
			created++
		}
		assert.Equal(t, results[0].Order.OrderID, results[i].Order.OrderID)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, ts.store.OrderCount(ctx))
}

// stallingPublisher blocks OrderPlaced for one user until released
type stallingPublisher struct {
	fakePublisher
	stallUser string
	entered   chan struct{}
	release   chan struct{}
}

func (p *stallingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	if event.UserID == p.stallUser {
		close(p.entered)
		<-p.release
	}
	return p.fakePublisher.PublishOrderPlaced(ctx, event)
}

func TestSlowPublishDoesNotBlockOtherCheckouts(t *testing.T) {
	st := store.NewStore()
	pub := &stallingPublisher{stallUser: "u1", entered: make(chan struct{}), release: make(chan struct{})}
	carts := NewCartService(st)
	discounts := NewDiscountService(st, 10, 30)
	checkout := NewCheckoutOrchestrator(st, carts, NewOrderService(st), discounts, pub, &memIdempotency{}, time.Hour, 2)
	admin := NewAdminService(st, discounts, pub, 2)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2"} {
		_, err := carts.AddItem(ctx, u, item("A", 10, 1))
		require.NoError(t, err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := checkout.Checkout(ctx, "u1", "", "k1")
		firstDone <- err
	}()
	<-pub.entered

	otherDone := make(chan error, 1)
	go func() {
		_, err := checkout.Checkout(ctx, "u2", "", "k2")
		if err == nil {
			// reaches the sequence lock too
			_, err = admin.GetStatistics(ctx)
		}
		otherDone <- err
	}()

	select {
	case err := <-otherDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(pub.release)
		t.Fatal("checkout for another user blocked behind an in-flight publish")
	}

	close(pub.release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 2, st.OrderCount(ctx))
}
