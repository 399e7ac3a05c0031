package http

import (
	"net/http"

	"golang-quant/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupOptimizations(base *echo.Group) {
	group := base.Group("/optimizations")
	{
		group.POST("", h.submitOptimization)
		group.GET("/:strategy/status", h.optimizationStatus)
		group.GET("/:strategy/result", h.optimizationResult)
	}
}

func (h *HttpAPIHandler) submitOptimization(c echo.Context) error {
	req := new(dto.OptimizeRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	submitted, err := h.service.OptimizationService.Submit(c.Request().Context(), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.NewAcceptedResponse("optimization started", submitted))
}

func (h *HttpAPIHandler) optimizationStatus(c echo.Context) error {
	status := h.service.OptimizationService.Status(c.Param("strategy"))
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(string(status.State), status))
}

func (h *HttpAPIHandler) optimizationResult(c echo.Context) error {
	strategyID := c.Param("strategy")

	result, err := h.service.OptimizationService.Result(c.Request().Context(), strategyID)
	if err != nil {
		code := statusCode(err)
		if code == http.StatusAccepted {
			status := h.service.OptimizationService.Status(strategyID)
			return c.JSON(code, dto.NewAcceptedResponse("optimization in progress", status))
		}
		return h.errorResponse(c, err)
	}

	if result.Status == dto.OptimizationNoValidParameters {
		return c.JSON(http.StatusUnprocessableEntity,
			dto.NewBaseResponse(http.StatusUnprocessableEntity, "no valid parameters found", result))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", result))
}
