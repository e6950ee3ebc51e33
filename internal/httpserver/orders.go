package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vendalive/fulfillment/internal/middleware/auth"
	"github.com/vendalive/fulfillment/internal/service/fulfillment"
	"github.com/vendalive/fulfillment/internal/transport"
)

type OrderHandler struct {
	Service *fulfillment.Service
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.CreateOrder(c.Request().Context(), eventID, req.CustomerID, req.DeliveryMethod, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) AddItem(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.AddItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.AddItem(c.Request().Context(), orderID, fulfillment.AddItemInput{
		ProductID:       req.ProductID,
		Size:            req.Size,
		Color:           req.Color,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		GiftDescription: req.GiftDescription,
	}, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) SetDelivery(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.SetDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.SetDelivery(c.Request().Context(), orderID, req.DeliveryMethod, req.Shipping, req.DeliveryPeriod, req.DeliveryNotes, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ApplyDiscount(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.DiscountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.ApplyDiscount(c.Request().Context(), orderID, req.Discount, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.Service.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetHistory(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.Service.ListHistory(c.Request().Context(), orderID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *OrderHandler) GetUrgency(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	report, err := h.Service.Urgency(c.Request().Context(), orderID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *OrderHandler) Advance(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.Service.Advance(c.Request().Context(), orderID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Revert(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.RevertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.Revert(c.Request().Context(), orderID, req.TargetStatus, req.Reason, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ConfirmAutomatic(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.AutomaticPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.ConfirmAutomatic(c.Request().Context(), orderID, req.Method, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ConfirmManual(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.ManualPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.ConfirmManual(c.Request().Context(), orderID, req.Method, req.ProofURL, req.Notes, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ApprovePayment(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.Service.Approve(c.Request().Context(), orderID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RejectPayment(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.RejectPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.Reject(c.Request().Context(), orderID, req.Reason, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) MarkPendingData(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.PendingDataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.MarkPendingData(c.Request().Context(), orderID, req.Reason, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RecordCharge(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.ChargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.RecordCharge(c.Request().Context(), orderID, req.Channel, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RecordLabel(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.LabelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Service.RecordLabel(c.Request().Context(), orderID, req.LabelURL, req.TrackingCode, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}
