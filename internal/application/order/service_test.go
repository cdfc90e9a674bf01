package order

import (
	"context"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability/obstest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, repo domain.Repository, id, userID string, method domain.PaymentMethod) *domain.Order {
	t.Helper()
	o, err := domain.New(id, userID, "", []domain.Line{
		{ProductID: "dal", Name: "Toor Dal", Price: decimal.NewFromInt(90), Quantity: 1},
	}, testPricing, method, domain.Address{Name: "Ravi"})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), o))
	return o
}

func TestGetOrderHidesOtherUsersOrders(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "a1b2c3d4e5f60718293a4b5c6d7e8f90", "u1", domain.PaymentCOD)
	svc := NewService(repo, nil, nil)

	o, err := svc.GetOrder(ctx, "u1", "a1b2c3d4e5f60718293a4b5c6d7e8f90")
	require.NoError(t, err)
	assert.Equal(t, "u1", o.UserID)

	_, err = svc.GetOrder(ctx, "u2", "a1b2c3d4e5f60718293a4b5c6d7e8f90")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetOrder(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetOrder(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Invoice(ctx, "u2", "a1b2c3d4e5f60718293a4b5c6d7e8f90")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersSummarisesOwnOrders(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "11111111111111111111111111111111", "u1", domain.PaymentCOD)
	seedOrder(t, repo, "22222222222222222222222222222222", "u1", domain.PaymentRazorpay)
	seedOrder(t, repo, "33333333333333333333333333333333", "u2", domain.PaymentCOD)
	svc := NewService(repo, nil, nil)

	summaries, err := svc.ListOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.NotEqual(t, "33333333333333333333333333333333", s.OrderID)
		assert.Equal(t, "Pending", s.StatusLabel)
	}

	_, err = svc.ListOrders(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUserRequired)
}

func TestInvoiceForOwner(t *testing.T) {
	repo := memory.NewOrderRepository()
	o := seedOrder(t, repo, "a1b2c3d4e5f60718293a4b5c6d7e8f90", "u1", domain.PaymentCOD)
	svc := NewService(repo, nil, nil)

	inv, err := svc.Invoice(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, inv.OrderID)
	assert.Equal(t, "Cash on Delivery", inv.PaymentMethodLabel)
	assert.Len(t, inv.Lines, 1)
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	pub := &recordingPublisher{}
	tel := obstest.New()
	o := seedOrder(t, repo, "a1b2c3d4e5f60718293a4b5c6d7e8f90", "u1", domain.PaymentCOD)
	svc := NewService(repo, pub, tel)

	for _, to := range []domain.Status{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		got, err := svc.UpdateStatus(ctx, o.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, got.Status)
	}

	stored, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, []string{"order.status_changed", "order.status_changed", "order.status_changed"}, pub.names())

	_, err = svc.UpdateStatus(ctx, o.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Len(t, pub.names(), 3)
}

func TestUpdateStatusSameStatusDoesNotPublish(t *testing.T) {
	repo := memory.NewOrderRepository()
	pub := &recordingPublisher{}
	o := seedOrder(t, repo, "a1b2c3d4e5f60718293a4b5c6d7e8f90", "u1", domain.PaymentCOD)
	svc := NewService(repo, pub, nil)

	_, err := svc.UpdateStatus(context.Background(), o.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pub.names())
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc := NewService(memory.NewOrderRepository(), nil, nil)
	_, err := svc.UpdateStatus(context.Background(), "nope", domain.StatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	o := seedOrder(t, repo, "a1b2c3d4e5f60718293a4b5c6d7e8f90", "u1", domain.PaymentRazorpay)
	svc := NewService(repo, nil, nil)

	got, err := svc.MarkPaid(ctx, o.ID, "pay_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "pay_abc", got.PaymentReference)

	_, err = svc.UpdateStatus(ctx, o.ID, domain.StatusCancelled)
	require.NoError(t, err)
	cancelled, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, cancelled.PaymentStatus)

	_, err = svc.MarkPaid(ctx, o.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}
