package http

import (
	"context"
	"errors"
	"net/http"

	"golang-quant/internal/dto"
	"golang-quant/internal/repository"
	"golang-quant/internal/service"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
	registry  *strategy.Registry
	metrics   *metrics.Registry
	log       *logger.Logger
}

func NewHttpAPIHandler(
	ctx context.Context,
	echo *echo.Echo,
	validator *goValidator.Validate,
	service *service.Service,
	registry *strategy.Registry,
	m *metrics.Registry,
	log *logger.Logger,
) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		validator: validator,
		service:   service,
		registry:  registry,
		metrics:   m,
		log:       log,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))

	base := h.echo.Group("/api/v1")
	h.SetupStrategies(base)
	h.SetupBacktest(base)
	h.SetupOptimizations(base)
	h.SetupWeights(base)
	h.SetupTasks(base)
}

// bindAndValidate decodes the body into req and runs its validate tags.
func (h *HttpAPIHandler) bindAndValidate(c echo.Context, req interface{}) *dto.BaseResponse {
	if err := c.Bind(req); err != nil {
		return dto.NewBadRequestResponse("invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return dto.NewBadRequestResponse(err.Error())
	}
	return nil
}

// statusCode maps an error category to its HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrInProgress):
		return http.StatusAccepted
	case errors.Is(err, apperror.ErrData),
		errors.Is(err, apperror.ErrStrategy),
		errors.Is(err, apperror.ErrTooManyCombinations):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNoValidParameters):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrPersistence),
		errors.Is(err, repository.ErrMarketDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	code := statusCode(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "Request failed",
			logger.StringField("path", c.Path()),
			logger.ErrorField(err),
		)
		message = "internal server error"
	}
	return c.JSON(code, dto.NewErrorResponse(code, message))
}
