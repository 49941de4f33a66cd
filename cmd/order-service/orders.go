package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/httpx"
	ord "github.com/MikeMC777/entregas-ecom/internal/order"
)

type checkoutService interface {
	FromCart(ctx context.Context, who auth.Identity, req ord.CreateOrderRequest) (*ord.Order, error)
	BuyNow(ctx context.Context, who auth.Identity, req ord.BuyNowRequest) (*ord.Order, error)
}

type orderService interface {
	List(ctx context.Context, who auth.Identity, limit, offset int) ([]ord.Order, error)
	Get(ctx context.Context, who auth.Identity, id int64) (*ord.Order, error)
	UpdateStatus(ctx context.Context, who auth.Identity, id int64, target string) (*ord.Order, error)
	Cancel(ctx context.Context, who auth.Identity, id int64, reason string) (*ord.Order, error)
}

// createOrderHandler godoc
// @Summary      Place an order from the cart
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      ord.CreateOrderRequest  true  "delivery details"
// @Success      201   {object}  ord.CreateOrderResponse
// @Failure      400   {object}  ord.HTTPError
// @Failure      409   {object}  ord.HTTPError
// @Router       /orders [post]
func createOrderHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.CreateOrderRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "orders.create", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.FromCart(c.Request.Context(), who, req)
		if err != nil {
			httpx.Fail(c, "orders.create", err)
			return
		}
		c.JSON(http.StatusCreated, ord.CreateOrderResponse{OrderID: o.ID, OrderNumber: o.OrderNumber})
	}
}

// buyNowHandler godoc
// @Summary      Order a single product
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      ord.BuyNowRequest  true  "product, quantity and delivery details"
// @Success      201   {object}  ord.CreateOrderResponse
// @Failure      400   {object}  ord.HTTPError
// @Failure      409   {object}  ord.HTTPError
// @Router       /orders/buy-now [post]
func buyNowHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.BuyNowRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "orders.buy_now", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.BuyNow(c.Request.Context(), who, req)
		if err != nil {
			httpx.Fail(c, "orders.buy_now", err)
			return
		}
		c.JSON(http.StatusCreated, ord.CreateOrderResponse{OrderID: o.ID, OrderNumber: o.OrderNumber})
	}
}

// listOrdersHandler godoc
// @Summary      List the caller's orders
// @Description  Customers see their own orders, sellers orders containing their items, agents orders assigned to them, admins everything.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "page size (max 100)"
// @Param        offset  query     int  false  "offset"
// @Success      200     {object}  ord.ListResponse
// @Router       /orders [get]
func listOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, err := pagination(c)
		if err != nil {
			httpx.Fail(c, "orders.list", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		items, err := svc.List(c.Request.Context(), who, limit, offset)
		if err != nil {
			httpx.Fail(c, "orders.list", err)
			return
		}
		if items == nil {
			items = []ord.Order{}
		}
		c.JSON(http.StatusOK, ord.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// getOrderHandler godoc
// @Summary      Order detail
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "order id"
// @Success      200  {object}  ord.Order
// @Failure      404  {object}  ord.HTTPError
// @Router       /orders/{id} [get]
func getOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := orderID(c)
		if err != nil {
			httpx.Fail(c, "orders.get", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.Get(c.Request.Context(), who, id)
		if err != nil {
			httpx.Fail(c, "orders.get", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateOrderStatusHandler godoc
// @Summary      Move an order to its next status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                      true  "order id"
// @Param        body  body      ord.UpdateStatusRequest  true  "target status"
// @Success      200   {object}  ord.Order
// @Failure      403   {object}  ord.HTTPError
// @Failure      409   {object}  ord.HTTPError
// @Router       /orders/{id}/status [patch]
func updateOrderStatusHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := orderID(c)
		if err != nil {
			httpx.Fail(c, "orders.status", err)
			return
		}
		var req ord.UpdateStatusRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "orders.status", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.UpdateStatus(c.Request.Context(), who, id, req.Status)
		if err != nil {
			httpx.Fail(c, "orders.status", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// cancelOrderHandler godoc
// @Summary      Cancel an order and restock its items
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true   "order id"
// @Param        body  body      ord.CancelRequest  false  "reason"
// @Success      200   {object}  ord.Order
// @Failure      409   {object}  ord.HTTPError
// @Router       /orders/{id}/cancel [post]
func cancelOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := orderID(c)
		if err != nil {
			httpx.Fail(c, "orders.cancel", err)
			return
		}
		var req ord.CancelRequest
		if c.Request.ContentLength > 0 {
			if err := httpx.BindAndValidate(c, &req); err != nil {
				httpx.Fail(c, "orders.cancel", err)
				return
			}
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.Cancel(c.Request.Context(), who, id, req.Reason)
		if err != nil {
			httpx.Fail(c, "orders.cancel", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func orderID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid_id", "order id must be a positive integer")
	}
	return id, nil
}

func pagination(c *gin.Context) (int, int, error) {
	limit, offset := 20, 0
	if s := c.Query("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l < 1 {
			return 0, 0, apperr.Validation("invalid_limit", "limit must be a positive integer")
		}
		limit = l
	}
	if limit > 100 {
		limit = 100
	}
	if s := c.Query("offset"); s != "" {
		o, err := strconv.Atoi(s)
		if err != nil || o < 0 {
			return 0, 0, apperr.Validation("invalid_offset", "offset must be zero or more")
		}
		offset = o
	}
	return limit, offset, nil
}
