package http

import (
	"net/http"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/labstack/echo/v4"
)

func listCustomersHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := paging(c)

		var st model.CustomerStatus
		if raw := c.QueryParam("status"); raw != "" {
			if tmp, ok := model.ParseCustomerStatus(raw); ok {
				st = tmp
			}
		}

		res, err := svc.ListCustomers(c.Request().Context(), repository.CustomerFilter{
			Status: st,
			PlanID: queryID(c, "service_plan_id"),
			Page:   repository.Page{Limit: limit, Offset: offset},
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func getCustomerHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		v, err := svc.GetCustomer(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func createCustomerHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req isp.CustomerInput
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		v, err := svc.CreateCustomer(c.Request().Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, v)
	}
}

func updateCustomerHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		var req isp.CustomerInput
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		v, err := svc.UpdateCustomer(c.Request().Context(), id, req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func deleteCustomerHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		if err := svc.DeleteCustomer(c.Request().Context(), id); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
