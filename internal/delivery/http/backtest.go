package http

import (
	"net/http"

	"golang-quant/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	backtestGroup := base.Group("/backtest")
	backtestGroup.POST("", h.runBacktest)
}

func (h *HttpAPIHandler) runBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.BacktestRequest)
	if resp := h.bindAndValidate(c, req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	result, err := h.service.BacktestService.RunBacktest(ctx, *req)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("backtest completed", result))
}
