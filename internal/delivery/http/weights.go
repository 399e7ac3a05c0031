package http

import (
	"net/http"

	"golang-quant/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupWeights(base *echo.Group) {
	group := base.Group("/weights")
	{
		group.POST("", h.submitWeights)
		group.GET("/status", h.weightsStatus)
		group.GET("/latest", h.latestWeights)
	}
	base.GET("/signals/:asset", h.assetSignal)
}

func (h *HttpAPIHandler) submitWeights(c echo.Context) error {
	req := new(dto.WeightsRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	submitted, err := h.service.WeightingService.Submit(c.Request().Context(), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.NewAcceptedResponse("weighting started", submitted))
}

func (h *HttpAPIHandler) weightsStatus(c echo.Context) error {
	status := h.service.WeightingService.Status()
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(string(status.State), status))
}

func (h *HttpAPIHandler) latestWeights(c echo.Context) error {
	result, err := h.service.WeightingService.Latest(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", result))
}

func (h *HttpAPIHandler) assetSignal(c echo.Context) error {
	signal, err := h.service.WeightingService.AggregateSignal(c.Request().Context(), c.Param("asset"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(signal.Action.String(), signal))
}
