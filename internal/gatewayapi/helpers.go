package gatewayapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/wagate/internal/wamanager"
)

type apiResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

type apiError struct {
	Code   string      `json:"code"`
	Msg    string      `json:"msg"`
	Detail interface{} `json:"detail,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, apiResponse{Code: "OK", Msg: "success", Data: data})
}

func fail(c echo.Context, status int, code, msg string, detail interface{}) error {
	return c.JSON(status, apiError{Code: code, Msg: msg, Detail: detail})
}

// failErr maps session manager errors onto the gateway's HTTP
// contract. Anything unrecognized is an internal error.
func failErr(c echo.Context, err error) error {
	var de *wamanager.DeliveryError
	switch {
	case errors.Is(err, wamanager.ErrNotFound):
		return fail(c, http.StatusNotFound, "INSTANCE_NOT_FOUND", "Instance not found", nil)
	case errors.Is(err, wamanager.ErrAlreadyExists):
		return fail(c, http.StatusConflict, "ALREADY_EXISTS", "Session already registered", nil)
	case errors.Is(err, wamanager.ErrNotConnected):
		return fail(c, http.StatusPreconditionFailed, "NOT_CONNECTED", "Instance is not connected", nil)
	case errors.As(err, &de):
		return fail(c, http.StatusBadGateway, "DELIVERY_FAILED", "Protocol operation failed", de.Error())
	default:
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error", err.Error())
	}
}

// warningPayload folds an optional teardown warning into a response
// body. Teardown problems are reported, never treated as failures.
func warningPayload(data map[string]interface{}, w *wamanager.TeardownWarning) map[string]interface{} {
	if data == nil {
		data = map[string]interface{}{}
	}
	if w != nil {
		data["warning"] = w.Error()
	}
	return data
}
