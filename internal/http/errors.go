package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// writeError maps service errors onto the JSON error contract.
func writeError(c echo.Context, err error) error {
	if ve, ok := isp.IsValidation(err); ok {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
	}

	switch {
	case errors.Is(err, isp.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, isp.ErrPlanInUse):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":     "service plan has customers and cannot be deleted",
			"retryable": false,
		})
	case errors.Is(err, isp.ErrCustomerHasBillingRecords):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":     "customer has billing records and cannot be deleted",
			"retryable": false,
		})
	case errors.Is(err, isp.ErrInvoiceNumberConflict):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":     "invoice number conflict, retry the request",
			"retryable": true,
		})
	}

	log.Errorf("%s %s failed: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// paging reads limit/offset; out-of-range values fall back to defaults.
func paging(c echo.Context) (limit, offset int) {
	limit = 10
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func queryID(c echo.Context, name string) int64 {
	n, err := strconv.ParseInt(c.QueryParam(name), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
