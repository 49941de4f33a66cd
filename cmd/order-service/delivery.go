package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/dispatch"
	"github.com/MikeMC777/entregas-ecom/internal/httpx"
	ord "github.com/MikeMC777/entregas-ecom/internal/order"
)

type dispatchService interface {
	Queue(ctx context.Context, who auth.Identity, agentID string, limit, offset int) ([]ord.Order, error)
	Accept(ctx context.Context, who auth.Identity, orderID int64) (*ord.Order, error)
	AdminAssign(ctx context.Context, who auth.Identity, orderID int64, agentID string) (*ord.Order, error)
	UpdateStatus(ctx context.Context, who auth.Identity, orderID int64, target string) (*ord.Order, error)
	CompleteDelivery(ctx context.Context, who auth.Identity, orderID int64, otp string) (*ord.Order, error)
	PingLocation(ctx context.Context, who auth.Identity, orderID int64, lat, lng float64) error
	SetAvailability(ctx context.Context, who auth.Identity, available bool) error
}

// deliveryQueueHandler godoc
// @Summary      Orders an agent can work on
// @Description  Unassigned pending orders plus those assigned to the agent. Admins may pass deliveryBoyId.
// @Tags         delivery
// @Produce      json
// @Security     BearerAuth
// @Param        deliveryBoyId  query     string  false  "agent id"
// @Param        limit          query     int     false  "page size (max 100)"
// @Param        offset         query     int     false  "offset"
// @Success      200            {object}  ord.ListResponse
// @Router       /delivery/orders [get]
func deliveryQueueHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, err := pagination(c)
		if err != nil {
			httpx.Fail(c, "delivery.orders", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		items, err := svc.Queue(c.Request.Context(), who, c.Query("deliveryBoyId"), limit, offset)
		if err != nil {
			httpx.Fail(c, "delivery.orders", err)
			return
		}
		if items == nil {
			items = []ord.Order{}
		}
		c.JSON(http.StatusOK, ord.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// acceptDeliveryHandler godoc
// @Summary      Accept an unassigned order
// @Tags         delivery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dispatch.AcceptRequest  true  "order to accept"
// @Success      200   {object}  ord.Order
// @Failure      404   {object}  ord.HTTPError
// @Failure      409   {object}  ord.HTTPError  "already_assigned: another agent won"
// @Router       /delivery/accept [post]
func acceptDeliveryHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.AcceptRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "delivery.accept", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		if req.DeliveryBoyID != "" && req.DeliveryBoyID != who.UserID {
			httpx.Fail(c, "delivery.accept", apperr.Forbidden("forbidden", "agents accept orders for themselves only"))
			return
		}
		o, err := svc.Accept(c.Request.Context(), who, req.OrderID)
		if err != nil {
			httpx.Fail(c, "delivery.accept", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateDeliveryStatusHandler godoc
// @Summary      Advance a delivery (picked_up, out_for_delivery)
// @Tags         delivery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dispatch.DeliveryStatusRequest  true  "order and target status"
// @Success      200   {object}  ord.Order
// @Failure      400   {object}  ord.HTTPError  "otp_required for delivered"
// @Failure      409   {object}  ord.HTTPError
// @Router       /delivery/update-status [post]
func updateDeliveryStatusHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.DeliveryStatusRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "delivery.status", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.UpdateStatus(c.Request.Context(), who, req.OrderID, req.Status)
		if err != nil {
			httpx.Fail(c, "delivery.status", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// completeDeliveryHandler godoc
// @Summary      Complete a delivery with the customer's code
// @Tags         delivery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dispatch.CompleteRequest  true  "order and code"
// @Success      200   {object}  ord.Order
// @Failure      401   {object}  ord.HTTPError  "invalid_otp"
// @Failure      404   {object}  ord.HTTPError
// @Failure      409   {object}  ord.HTTPError  "already_delivered"
// @Failure      429   {object}  ord.HTTPError  "too_many_attempts"
// @Router       /delivery/complete-delivery [post]
func completeDeliveryHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.CompleteRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "delivery.complete", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.CompleteDelivery(c.Request.Context(), who, req.OrderID, req.OTP)
		if err != nil {
			httpx.Fail(c, "delivery.complete", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// locationHandler godoc
// @Summary      Report the agent's position
// @Tags         delivery
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  dispatch.LocationRequest  true  "position"
// @Success      204
// @Router       /delivery/location [post]
func locationHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.LocationRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "delivery.location", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		if err := svc.PingLocation(c.Request.Context(), who, req.OrderID, req.Lat, req.Lng); err != nil {
			httpx.Fail(c, "delivery.location", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// availabilityHandler godoc
// @Summary      Go on or off duty
// @Tags         delivery
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  dispatch.AvailabilityRequest  true  "availability"
// @Success      204
// @Router       /delivery/availability [post]
func availabilityHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.AvailabilityRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "delivery.availability", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		if err := svc.SetAvailability(c.Request.Context(), who, *req.Available); err != nil {
			httpx.Fail(c, "delivery.availability", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// assignDeliveryHandler godoc
// @Summary      Assign an order to an agent
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dispatch.AssignRequest  true  "order and agent"
// @Success      200   {object}  ord.Order
// @Failure      404   {object}  ord.HTTPError
// @Failure      409   {object}  ord.HTTPError
// @Router       /admin/orders/assign [patch]
func assignDeliveryHandler(svc dispatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.AssignRequest
		if err := httpx.BindAndValidate(c, &req); err != nil {
			httpx.Fail(c, "admin.assign", err)
			return
		}
		who, _ := httpx.IdentityFrom(c)
		o, err := svc.AdminAssign(c.Request.Context(), who, req.OrderID, req.DeliveryBoyID)
		if err != nil {
			httpx.Fail(c, "admin.assign", err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
