package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/httpx"
)

type deps struct {
	verifier httpx.TokenVerifier
	checkout checkoutService
	orders   orderService
	dispatch dispatchService
	socket   gin.HandlerFunc
	healthy  func() bool
}

func newRouter(d deps) *gin.Engine {
	r := gin.New()
	r.Use(httpx.RequestID(), httpx.Logger(), httpx.Recover())

	r.GET("/healthz", func(c *gin.Context) {
		if d.healthy != nil && !d.healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if d.socket != nil {
		r.GET("/ws", d.socket)
	}

	api := r.Group("", httpx.Auth(d.verifier))

	orders := api.Group("/orders")
	orders.POST("", httpx.Require(auth.ActionCheckout), createOrderHandler(d.checkout))
	orders.POST("/buy-now", httpx.Require(auth.ActionCheckout), buyNowHandler(d.checkout))
	orders.GET("", httpx.Require(auth.ActionListOrders), listOrdersHandler(d.orders))
	orders.GET("/:id", httpx.Require(auth.ActionViewOrder), getOrderHandler(d.orders))
	orders.PATCH("/:id/status", httpx.Require(auth.ActionSetStatus), updateOrderStatusHandler(d.orders))
	orders.POST("/:id/cancel", httpx.Require(auth.ActionCancel), cancelOrderHandler(d.orders))

	delivery := api.Group("/delivery")
	delivery.GET("/orders", httpx.Require(auth.ActionDeliveryQueue), deliveryQueueHandler(d.dispatch))
	delivery.POST("/accept", httpx.Require(auth.ActionAcceptDelivery), acceptDeliveryHandler(d.dispatch))
	delivery.POST("/update-status", httpx.Require(auth.ActionAdvanceDelivery), updateDeliveryStatusHandler(d.dispatch))
	delivery.POST("/complete-delivery", httpx.Require(auth.ActionCompleteDelivery), completeDeliveryHandler(d.dispatch))
	delivery.POST("/location", httpx.Require(auth.ActionReportLocation), locationHandler(d.dispatch))
	delivery.POST("/availability", httpx.Require(auth.ActionSetAvailability), availabilityHandler(d.dispatch))

	api.PATCH("/admin/orders/assign", httpx.Require(auth.ActionAssignDelivery), assignDeliveryHandler(d.dispatch))

	return r
}
