package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vendalive/fulfillment/internal/service/fulfillment"
)

// httpError maps the service failure taxonomy onto status codes. The
// message carries the specific precondition that failed.
func httpError(err error) error {
	switch {
	case errors.Is(err, fulfillment.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, fulfillment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, fulfillment.ErrAuthorization):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, fulfillment.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, fulfillment.ErrPrecondition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func paramID(c echo.Context, name string) (uint, error) {
	var id uint
	if err := echo.PathParamsBinder(c).Uint(name, &id).BindError(); err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
