package http

import (
	"net/http"

	"golang-quant/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTasks(base *echo.Group) {
	base.GET("/tasks/:id", h.pollTask)
}

func (h *HttpAPIHandler) pollTask(c echo.Context) error {
	status, ok := h.service.TaskRunner.Poll(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "task not found"))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(string(status.State), status))
}
