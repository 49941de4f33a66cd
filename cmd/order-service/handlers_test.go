package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
	ord "github.com/MikeMC777/entregas-ecom/internal/order"
)

func init() {
	gin.SetMode(gin.TestMode)
	log.SetOutput(io.Discard)
}

//
// ---------- STUBS ----------
//

type stubCheckout struct {
	who     auth.Identity
	created *ord.Order
	err     error
}

func (s *stubCheckout) FromCart(ctx context.Context, who auth.Identity, req ord.CreateOrderRequest) (*ord.Order, error) {
	s.who = who
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubCheckout) BuyNow(ctx context.Context, who auth.Identity, req ord.BuyNowRequest) (*ord.Order, error) {
	s.who = who
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

type stubOrders struct {
	byID         map[int64]*ord.Order
	limit        int
	offset       int
	cancelReason string
	statusTarget string
	err          error
}

func (s *stubOrders) List(ctx context.Context, who auth.Identity, limit, offset int) ([]ord.Order, error) {
	s.limit, s.offset = limit, offset
	var out []ord.Order
	for _, o := range s.byID {
		if o.CustomerID == who.UserID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrders) Get(ctx context.Context, who auth.Identity, id int64) (*ord.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	return o, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, who auth.Identity, id int64, target string) (*ord.Order, error) {
	s.statusTarget = target
	if s.err != nil {
		return nil, s.err
	}
	return s.Get(ctx, who, id)
}

func (s *stubOrders) Cancel(ctx context.Context, who auth.Identity, id int64, reason string) (*ord.Order, error) {
	s.cancelReason = reason
	o, err := s.Get(ctx, who, id)
	if err != nil {
		return nil, err
	}
	o.Status = lifecycle.StatusCancelled
	return o, nil
}

type stubDispatch struct {
	acceptErr   error
	completeErr error
	accepted    int64
	agentQuery  string
	available   *bool
	assigned    string
}

func (s *stubDispatch) Queue(ctx context.Context, who auth.Identity, agentID string, limit, offset int) ([]ord.Order, error) {
	s.agentQuery = agentID
	return nil, nil
}

func (s *stubDispatch) Accept(ctx context.Context, who auth.Identity, orderID int64) (*ord.Order, error) {
	if s.acceptErr != nil {
		return nil, s.acceptErr
	}
	s.accepted = orderID
	id := who.UserID
	return &ord.Order{ID: orderID, DeliveryBoyID: &id, DeliveryStatus: lifecycle.DeliveryAccepted}, nil
}

func (s *stubDispatch) AdminAssign(ctx context.Context, who auth.Identity, orderID int64, agentID string) (*ord.Order, error) {
	s.assigned = agentID
	return &ord.Order{ID: orderID, DeliveryBoyID: &agentID}, nil
}

func (s *stubDispatch) UpdateStatus(ctx context.Context, who auth.Identity, orderID int64, target string) (*ord.Order, error) {
	return &ord.Order{ID: orderID, DeliveryStatus: lifecycle.DeliveryStatus(target)}, nil
}

func (s *stubDispatch) CompleteDelivery(ctx context.Context, who auth.Identity, orderID int64, otp string) (*ord.Order, error) {
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return &ord.Order{ID: orderID, Status: lifecycle.StatusDelivered, DeliveryStatus: lifecycle.DeliveryDelivered}, nil
}

func (s *stubDispatch) PingLocation(ctx context.Context, who auth.Identity, orderID int64, lat, lng float64) error {
	return nil
}

func (s *stubDispatch) SetAvailability(ctx context.Context, who auth.Identity, available bool) error {
	s.available = &available
	return nil
}

//
// ---------- HELPERS ----------
//

const testSecret = "handlers-test-secret"

type fixture struct {
	router   *gin.Engine
	checkout *stubCheckout
	orders   *stubOrders
	dispatch *stubDispatch
	healthy  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		checkout: &stubCheckout{},
		orders:   &stubOrders{byID: map[int64]*ord.Order{}},
		dispatch: &stubDispatch{},
		healthy:  true,
	}
	f.router = newRouter(deps{
		verifier: auth.NewVerifier(testSecret),
		checkout: f.checkout,
		orders:   f.orders,
		dispatch: f.dispatch,
		healthy:  func() bool { return f.healthy },
	})
	return f
}

func tokenFor(t *testing.T, role auth.Role, userID string) string {
	t.Helper()
	tok, err := auth.NewVerifier(testSecret).Issue(auth.Identity{UserID: userID, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ord.HTTPError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error json: %v body=%s", err, w.Body.String())
	}
	return body.Error
}

const checkoutBody = `{
	"deliveryAddress": {"fullName":"Asha Rao","phone":"+919800000000","addressLine1":"12 MG Road","city":"Pune","postalCode":"411001"},
	"paymentMethod": "cod"
}`

//
// ---------- TESTS ----------
//

func TestCreateOrder_HappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customer := uuid.NewString()
	f.checkout.created = &ord.Order{ID: 7, OrderNumber: "ORD-20260101-ABCDEF12"}

	w := f.do(t, http.MethodPost, "/orders", tokenFor(t, auth.RoleCustomer, customer), checkoutBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp ord.CreateOrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.OrderID != 7 || resp.OrderNumber != "ORD-20260101-ABCDEF12" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if f.checkout.who.UserID != customer || f.checkout.who.Role != auth.RoleCustomer {
		t.Fatalf("identity not passed through: %+v", f.checkout.who)
	}
}

func TestCreateOrder_MissingToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders", "", checkoutBody)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s (expected 401)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "missing_token" {
		t.Fatalf("code=%s", code)
	}
}

func TestCreateOrder_WrongRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders", tokenFor(t, auth.RoleSeller, "seller-1"), checkoutBody)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s (expected 403)", w.Code, w.Body.String())
	}
}

func TestCreateOrder_ValidationFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders", tokenFor(t, auth.RoleCustomer, "c1"), `{"paymentMethod":"card"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (expected 400)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "validation_failed" {
		t.Fatalf("code=%s", code)
	}
}

func TestCreateOrder_OutOfStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.checkout.err = apperr.Conflict("out_of_stock", "not enough stock")
	w := f.do(t, http.MethodPost, "/orders", tokenFor(t, auth.RoleCustomer, "c1"), checkoutBody)
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s (expected 409)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "out_of_stock" {
		t.Fatalf("code=%s", code)
	}
}

func TestBuyNow_Created(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.checkout.created = &ord.Order{ID: 9, OrderNumber: "ORD-20260101-00000009"}
	body := `{
		"deliveryAddress": {"fullName":"Asha Rao","phone":"+919800000000","addressLine1":"12 MG Road","city":"Pune","postalCode":"411001"},
		"paymentMethod": "cod", "productId": "p1", "quantity": 2
	}`
	w := f.do(t, http.MethodPost, "/orders/buy-now", tokenFor(t, auth.RoleCustomer, "c1"), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/orders/abc", tokenFor(t, auth.RoleCustomer, "c1"), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (expected 400)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "invalid_id" {
		t.Fatalf("code=%s", code)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/orders/404", tokenFor(t, auth.RoleCustomer, "c1"), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s (expected 404)", w.Code, w.Body.String())
	}
}

func TestListOrders_Pagination(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.orders.byID[1] = &ord.Order{ID: 1, CustomerID: "c1"}
	f.orders.byID[2] = &ord.Order{ID: 2, CustomerID: "c2"}

	w := f.do(t, http.MethodGet, "/orders?limit=500&offset=3", tokenFor(t, auth.RoleCustomer, "c1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.orders.limit != 100 || f.orders.offset != 3 {
		t.Fatalf("limit=%d offset=%d, expected clamp to 100 and offset 3", f.orders.limit, f.orders.offset)
	}
	var resp ord.ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != 1 {
		t.Fatalf("items=%+v", resp.Items)
	}

	w = f.do(t, http.MethodGet, "/orders?offset=-1", tokenFor(t, auth.RoleCustomer, "c1"), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (expected 400)", w.Code, w.Body.String())
	}
}

func TestListOrders_EmptyIsArray(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/orders", tokenFor(t, auth.RoleSeller, "s1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"items":[]`)) {
		t.Fatalf("expected empty items array, body=%s", w.Body.String())
	}
}

func TestUpdateOrderStatus_PassesTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.orders.byID[5] = &ord.Order{ID: 5, Status: lifecycle.StatusPlaced}
	w := f.do(t, http.MethodPatch, "/orders/5/status", tokenFor(t, auth.RoleSeller, "s1"), `{"status":"confirmed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.orders.statusTarget != "confirmed" {
		t.Fatalf("target=%q", f.orders.statusTarget)
	}

	f.orders.err = apperr.Conflict("invalid_transition", "placed cannot move to delivered")
	w = f.do(t, http.MethodPatch, "/orders/5/status", tokenFor(t, auth.RoleAdmin, "a1"), `{"status":"ready"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s (expected 409)", w.Code, w.Body.String())
	}
}

func TestUpdateOrderStatus_CustomerForbidden(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPatch, "/orders/5/status", tokenFor(t, auth.RoleCustomer, "c1"), `{"status":"confirmed"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s (expected 403)", w.Code, w.Body.String())
	}
}

func TestCancelOrder_BodyOptional(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.orders.byID[3] = &ord.Order{ID: 3, CustomerID: "c1", Status: lifecycle.StatusPlaced}

	w := f.do(t, http.MethodPost, "/orders/3/cancel", tokenFor(t, auth.RoleCustomer, "c1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.orders.cancelReason != "" {
		t.Fatalf("reason=%q", f.orders.cancelReason)
	}

	w = f.do(t, http.MethodPost, "/orders/3/cancel", tokenFor(t, auth.RoleCustomer, "c1"), `{"reason":"changed my mind"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.orders.cancelReason != "changed my mind" {
		t.Fatalf("reason=%q", f.orders.cancelReason)
	}
}

func TestAccept_OK(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/delivery/accept", tokenFor(t, auth.RoleDelivery, "agent-7"), `{"orderId":42,"deliveryBoyId":"agent-7"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.dispatch.accepted != 42 {
		t.Fatalf("accepted=%d", f.dispatch.accepted)
	}
}

func TestAccept_ForAnotherAgent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/delivery/accept", tokenFor(t, auth.RoleDelivery, "agent-7"), `{"orderId":42,"deliveryBoyId":"agent-8"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s (expected 403)", w.Code, w.Body.String())
	}
	if f.dispatch.accepted != 0 {
		t.Fatalf("accept should not have reached dispatch")
	}
}

func TestAccept_LostRace(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.dispatch.acceptErr = apperr.Conflict("already_assigned", "order was accepted by another delivery agent")
	w := f.do(t, http.MethodPost, "/delivery/accept", tokenFor(t, auth.RoleDelivery, "agent-7"), `{"orderId":42}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s (expected 409)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "already_assigned" {
		t.Fatalf("code=%s", code)
	}
}

func TestCompleteDelivery_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tok := tokenFor(t, auth.RoleDelivery, "agent-7")

	w := f.do(t, http.MethodPost, "/delivery/complete-delivery", tok, `{"orderId":42,"otp":"12a4"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (expected 400)", w.Code, w.Body.String())
	}

	f.dispatch.completeErr = apperr.Integrity("invalid_otp", "delivery code does not match")
	w = f.do(t, http.MethodPost, "/delivery/complete-delivery", tok, `{"orderId":42,"otp":"1234"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s (expected 401)", w.Code, w.Body.String())
	}

	f.dispatch.completeErr = apperr.New(apperr.KindRateLimited, "too_many_attempts", "try again later")
	w = f.do(t, http.MethodPost, "/delivery/complete-delivery", tok, `{"orderId":42,"otp":"1234"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s (expected 429)", w.Code, w.Body.String())
	}

	f.dispatch.completeErr = nil
	w = f.do(t, http.MethodPost, "/delivery/complete-delivery", tok, `{"orderId":42,"otp":"1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestDeliveryQueue_AdminPassesAgent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/delivery/orders?deliveryBoyId=agent-9", tokenFor(t, auth.RoleAdmin, "a1"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.dispatch.agentQuery != "agent-9" {
		t.Fatalf("agent=%q", f.dispatch.agentQuery)
	}
}

func TestAvailability_RequiresField(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tok := tokenFor(t, auth.RoleDelivery, "agent-7")

	w := f.do(t, http.MethodPost, "/delivery/availability", tok, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (expected 400)", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/delivery/availability", tok, `{"available":false}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s (expected 204)", w.Code, w.Body.String())
	}
	if f.dispatch.available == nil || *f.dispatch.available {
		t.Fatalf("availability not passed through")
	}
}

func TestLocation_NoContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/delivery/location", tokenFor(t, auth.RoleDelivery, "agent-7"), `{"orderId":42,"lat":18.52,"lng":73.85}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s (expected 204)", w.Code, w.Body.String())
	}
}

func TestAdminAssign_RoleChecked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := `{"orderId":42,"deliveryBoyId":"agent-9"}`

	w := f.do(t, http.MethodPatch, "/admin/orders/assign", tokenFor(t, auth.RoleDelivery, "agent-7"), body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s (expected 403)", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPatch, "/admin/orders/assign", tokenFor(t, auth.RoleAdmin, "a1"), body)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.dispatch.assigned != "agent-9" {
		t.Fatalf("assigned=%q", f.dispatch.assigned)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	f.healthy = false
	w = f.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s (expected 503)", w.Code, w.Body.String())
	}
}

func TestRoutesMountedAtRoot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tok := tokenFor(t, auth.RoleCustomer, "c1")

	w := f.do(t, http.MethodGet, "/orders", tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodGet, "/api/orders", tok, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s (expected 404)", w.Code, w.Body.String())
	}
}
