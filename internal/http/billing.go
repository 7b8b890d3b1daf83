package http

import (
	"net/http"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/labstack/echo/v4"
)

func listBillingHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := paging(c)

		var st model.BillingStatus
		if raw := c.QueryParam("status"); raw != "" {
			if tmp, ok := model.ParseBillingStatus(raw); ok {
				st = tmp
			}
		}

		res, err := svc.ListBillingRecords(c.Request().Context(), repository.BillingFilter{
			Status:     st,
			CustomerID: queryID(c, "customer_id"),
			Page:       repository.Page{Limit: limit, Offset: offset},
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func getBillingHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		v, err := svc.GetBillingRecord(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func createBillingHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req isp.BillingInput
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		v, err := svc.CreateBillingRecord(c.Request().Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, v)
	}
}

func updateBillingHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		var req isp.BillingInput
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		v, err := svc.UpdateBillingRecord(c.Request().Context(), id, req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func markPaidHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		v, err := svc.MarkPaid(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func deleteBillingHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		if err := svc.DeleteBillingRecord(c.Request().Context(), id); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
