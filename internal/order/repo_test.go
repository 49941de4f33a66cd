package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
)

var orderCols = []string{
	"id", "order_number", "customer_id",
	"subtotal", "delivery_charge", "discount", "total",
	"payment_method", "payment_status", "status", "delivery_status",
	"delivery_boy_id", "delivery_otp", "delivery_instructions",
	"created_at", "updated_at", "delivery_accepted_at", "delivery_picked_at",
	"delivery_out_at", "delivery_completed_at", "actual_delivery_time", "cancelled_at",
	"address_id", "full_name", "phone", "address_line1", "address_line2", "city", "postal_code",
	"latitude", "longitude",
}

var itemCols = []string{"id", "order_id", "product_id", "seller_id", "product_name", "quantity", "unit_price", "total_price"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestInsertFillsIDs(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	o := &Order{
		OrderNumber:    "ORD-20260101-ABCDEF12",
		CustomerID:     "c1",
		Subtotal:       decimal.NewFromInt(250),
		DeliveryCharge: decimal.Zero,
		Discount:       decimal.Zero,
		Total:          decimal.NewFromInt(250),
		PaymentMethod:  PaymentCOD,
		PaymentStatus:  PaymentPending,
		Status:         lifecycle.StatusPlaced,
		DeliveryStatus: lifecycle.DeliveryPending,
		Address:        DeliveryAddress{FullName: "Ana", Phone: "555", AddressLine1: "Main 1", City: "X", PostalCode: "01"},
		Items: []Item{
			{ProductID: "p1", SellerID: "s1", ProductName: "Milk", Quantity: 2, UnitPrice: decimal.NewFromInt(100), TotalPrice: decimal.NewFromInt(200)},
			{ProductID: "p2", SellerID: "s2", ProductName: "Bread", Quantity: 1, UnitPrice: decimal.NewFromInt(50), TotalPrice: decimal.NewFromInt(50)},
		},
		CreatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO delivery_addresses").WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(o.OrderNumber, "c1", "250.00", "0.00", "0.00", "250.00", "cod", "pending", "placed", "pending",
			int64(9), "", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(77)))
	mock.ExpectQuery("INSERT INTO order_items").
		WithArgs(int64(77), "p1", "s1", "Milk", 2, "100.00", "200.00").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO order_items").
		WithArgs(int64(77), "p2", "s2", "Bread", 1, "50.00", "50.00").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))

	require.NoError(t, NewPGRepo(mock).Insert(context.Background(), mock, o))
	assert.Equal(t, int64(77), o.ID)
	assert.Equal(t, int64(9), o.Address.ID)
	assert.Equal(t, int64(77), o.Items[1].OrderID)
	assert.Equal(t, int64(2), o.Items[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPropagatesItemFailure(t *testing.T) {
	mock := newMock(t)
	o := &Order{Items: []Item{{ProductID: "p1", Quantity: 1}}}

	mock.ExpectQuery("INSERT INTO delivery_addresses").WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO orders").WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectQuery("INSERT INTO order_items").WillReturnError(errors.New("check violation"))

	err := NewPGRepo(mock).Insert(context.Background(), mock, o)
	assert.ErrorContains(t, err, "check violation")
}

func TestGetLoadsOrderWithItems(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	agent := "d1"
	otp := "4821"

	mock.ExpectQuery("FROM orders o").WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(
			int64(5), "ORD-1", "c1",
			"200.00", "25.00", "0.00", "225.00",
			"cod", "pending", "confirmed", "accepted",
			&agent, &otp, "ring twice",
			now, now, &now, nil,
			nil, nil, nil, nil,
			int64(3), "Ana", "555", "Main 1", "", "X", "01",
			nil, nil,
		))
	mock.ExpectQuery("FROM order_items").WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow(int64(1), int64(5), "p1", "s1", "Milk", 2, "100.00", "200.00"))

	o, err := NewPGRepo(mock).Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusConfirmed, o.Status)
	assert.Equal(t, lifecycle.DeliveryAccepted, o.DeliveryStatus)
	assert.True(t, o.AssignedTo("d1"))
	assert.Equal(t, "225", o.Total.String())
	require.Len(t, o.Items, 1)
	assert.Equal(t, "s1", o.Items[0].SellerID)
	assert.True(t, o.Consistent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM orders o").WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	_, err := NewPGRepo(mock).Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScopesAndPages(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`WHERE \(o.delivery_boy_id = \$1 OR \(o.delivery_boy_id IS NULL`).
		WithArgs("d1", 20, 0).
		WillReturnRows(pgxmock.NewRows(orderCols))

	out, err := NewPGRepo(mock).List(context.Background(), Filter{AgentID: "d1", IncludePool: true, Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptGuard(t *testing.T) {
	now := time.Now()

	t.Run("wins", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE orders").WithArgs(int64(1), "d1", "1234", now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		assert.NoError(t, NewPGRepo(mock).Accept(context.Background(), 1, "d1", "1234", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already taken", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE orders").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		assert.ErrorIs(t, NewPGRepo(mock).Accept(context.Background(), 1, "d2", "9999", now), ErrConflict)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE orders").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		assert.ErrorIs(t, NewPGRepo(mock).Accept(context.Background(), 1, "d2", "9999", now), ErrNotFound)
	})
}

func TestAssignGuardsOnObservedState(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	prev := "d1"
	mock.ExpectExec("IS NOT DISTINCT FROM").
		WithArgs(int64(3), "d2", "5555", &prev, "accepted", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewPGRepo(mock).Assign(context.Background(), Assignment{
		OrderID: 3, AgentID: "d2", OTP: "5555", PrevAgent: &prev, PrevDelivery: lifecycle.DeliveryAccepted, At: now,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceDelivery(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("delivery_out_at = \\$7").
		WithArgs(int64(4), "d1", "picked_up", "out_for_delivery", "ready", "out_for_delivery", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPGRepo(mock)
	err := repo.AdvanceDelivery(context.Background(), DeliveryChange{
		OrderID: 4, AgentID: "d1",
		From: lifecycle.DeliveryPickedUp, To: lifecycle.DeliveryOutForDelivery,
		StatusFrom: lifecycle.StatusReady, StatusTo: lifecycle.StatusOutForDelivery,
		At: now,
	})
	require.NoError(t, err)

	err = repo.AdvanceDelivery(context.Background(), DeliveryChange{OrderID: 4, To: lifecycle.DeliveryDelivered})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRejectsStaleOTP(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("delivery_otp = \\$3").WithArgs(int64(8), "d1", "1111", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("delivery_otp = \\$3").WithArgs(int64(8), "d1", "1111", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPGRepo(mock)
	require.NoError(t, repo.Complete(context.Background(), mock, 8, "d1", "1111", now))
	assert.ErrorIs(t, repo.Complete(context.Background(), mock, 8, "d1", "1111", now), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelAndSetStatusGuards(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("SET status = \\$3").WithArgs(int64(2), "placed", "confirmed", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET status = 'cancelled'").WithArgs(int64(2), "confirmed", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPGRepo(mock)
	require.NoError(t, repo.SetStatus(context.Background(), mock, 2, lifecycle.StatusPlaced, lifecycle.StatusConfirmed, now))
	assert.ErrorIs(t, repo.Cancel(context.Background(), mock, 2, lifecycle.StatusConfirmed, now), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
