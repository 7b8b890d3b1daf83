package http

import (
	"net/http"
	"strconv"

	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/labstack/echo/v4"
)

func listPlansHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := paging(c)
		active, _ := strconv.ParseBool(c.QueryParam("active"))

		res, err := svc.ListPlans(c.Request().Context(), repository.PlanFilter{
			ActiveOnly: active,
			Page:       repository.Page{Limit: limit, Offset: offset},
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func getPlanHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		p, err := svc.GetPlan(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, p)
	}
}

func createPlanHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req isp.PlanInput
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		p, err := svc.CreatePlan(c.Request().Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func updatePlanHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		var req isp.PlanInput
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		p, err := svc.UpdatePlan(c.Request().Context(), id, req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, p)
	}
}

func deletePlanHandler(svc *isp.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return badRequest(c)
		}
		if err := svc.DeletePlan(c.Request().Context(), id); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
