package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vendalive/fulfillment/internal/middleware/auth"
	"github.com/vendalive/fulfillment/internal/service/fulfillment"
	"github.com/vendalive/fulfillment/internal/transport"
)

type PackingHandler struct {
	Service *fulfillment.Service
}

func (h *PackingHandler) AssignBags(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	assigned, err := h.Service.AssignBagNumbers(c.Request().Context(), eventID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.AssignBagsResponse{EventID: eventID, Assigned: assigned})
}

func (h *PackingHandler) ListBags(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	bags, err := h.Service.ListBags(c.Request().Context(), eventID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bags)
}

func (h *PackingHandler) MarkItemPacked(c echo.Context) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	bagStatus, err := h.Service.MarkItemPacked(c.Request().Context(), itemID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"bag_status": bagStatus})
}

func (h *PackingHandler) MarkGiftPacked(c echo.Context) error {
	giftID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	bagStatus, err := h.Service.MarkGiftPacked(c.Request().Context(), giftID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"bag_status": bagStatus})
}

func (h *PackingHandler) MarkBagPacked(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	bagStatus, err := h.Service.MarkBagPacked(c.Request().Context(), orderID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.BagStatusResponse{OrderID: orderID, BagStatus: bagStatus})
}

func (h *PackingHandler) CancelItem(c echo.Context) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req, err := h.Service.CancelItem(c.Request().Context(), itemID, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	if req == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *PackingHandler) ReduceQuantity(c echo.Context) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body transport.ReduceQuantityRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req, err := h.Service.ReduceQuantity(c.Request().Context(), itemID, body.NewQuantity, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	if req == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *PackingHandler) ConfirmRemoved(c echo.Context) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body transport.ConfirmRemovedRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	bagStatus, err := h.Service.ConfirmRemoved(c.Request().Context(), itemID, body.Count, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"bag_status": bagStatus})
}

func (h *PackingHandler) RequestReallocation(c echo.Context) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body transport.ReallocateRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req, err := h.Service.RequestReallocation(c.Request().Context(), itemID, body.Quantity, body.DestinationOrderID, body.DestinationHandle, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *PackingHandler) ResolveReallocation(c echo.Context) error {
	reqID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body transport.ResolveReallocationRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req, err := h.Service.ResolveReallocation(c.Request().Context(), reqID, body.RemovedConfirmed, body.PlacedConfirmed, auth.Actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}
