package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/vendalive/fulfillment/internal/middleware/auth"
)

type Deps struct {
	OrderHandler   *OrderHandler
	PackingHandler *PackingHandler
	JWTSecret      []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1", auth.RequireActor(d.JWTSecret))

	v1.POST("/events/:id/orders", d.OrderHandler.CreateOrder)
	v1.POST("/events/:id/bags/assign", d.PackingHandler.AssignBags)
	v1.GET("/events/:id/bags", d.PackingHandler.ListBags)

	orders := v1.Group("/orders")
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.GET("/:id/history", d.OrderHandler.GetHistory)
	orders.GET("/:id/urgency", d.OrderHandler.GetUrgency)
	orders.POST("/:id/items", d.OrderHandler.AddItem)
	orders.PATCH("/:id/delivery", d.OrderHandler.SetDelivery)
	orders.PATCH("/:id/discount", d.OrderHandler.ApplyDiscount)
	orders.POST("/:id/advance", d.OrderHandler.Advance)
	orders.POST("/:id/revert", d.OrderHandler.Revert)
	orders.POST("/:id/payment/automatic", d.OrderHandler.ConfirmAutomatic)
	orders.POST("/:id/payment/manual", d.OrderHandler.ConfirmManual)
	orders.POST("/:id/charge", d.OrderHandler.RecordCharge)
	orders.POST("/:id/label", d.OrderHandler.RecordLabel)
	orders.POST("/:id/packed", d.PackingHandler.MarkBagPacked)

	items := v1.Group("/items")
	items.POST("/:id/packed", d.PackingHandler.MarkItemPacked)
	items.POST("/:id/cancel", d.PackingHandler.CancelItem)
	items.POST("/:id/reduce", d.PackingHandler.ReduceQuantity)
	items.POST("/:id/confirm-removed", d.PackingHandler.ConfirmRemoved)
	items.POST("/:id/reallocate", d.PackingHandler.RequestReallocation)

	v1.POST("/gifts/:id/packed", d.PackingHandler.MarkGiftPacked)
	v1.POST("/attention/:id/resolve", d.PackingHandler.ResolveReallocation)

	admin := v1.Group("/admin", auth.RequireAdmin)
	admin.POST("/orders/:id/payment/approve", d.OrderHandler.ApprovePayment)
	admin.POST("/orders/:id/payment/reject", d.OrderHandler.RejectPayment)
	admin.POST("/orders/:id/pending-data", d.OrderHandler.MarkPendingData)
}
