package api

import (
	"CustodianSync/internal/correlation"
	models "CustodianSync/internal/domain/models"
	xhttp "CustodianSync/pkg/http"
	xlogger "CustodianSync/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CorrelationHandler exposes metric correlation analysis over HTTP.
type CorrelationHandler struct {
	logger *xlogger.Logger
	svc    *correlation.Service
}

func NewCorrelationHandler(logger *xlogger.Logger, svc *correlation.Service) *CorrelationHandler {
	return &CorrelationHandler{logger: logger, svc: svc}
}

func (h *CorrelationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/correlation")
	g.POST("/analyze", h.Analyze)
	g.GET("/profiles/:id", h.AnalyzeBuffered)
	g.GET("/patterns", h.Patterns)
}

// Analyze runs an analysis over metric series supplied in the request.
func (h *CorrelationHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeProfileRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	profile := &models.PerformanceProfile{
		ProfileID: req.ProfileID,
		Metrics:   make(map[models.MetricType][]float64, len(req.Metrics)),
	}
	for name, series := range req.Metrics {
		profile.Metrics[models.MetricType(name)] = series
	}

	result, err := h.svc.AnalyzeProfile(c.Request().Context(), profile)
	if err != nil {
		h.logger.Error("analyze profile error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

// AnalyzeBuffered runs an analysis over the samples streamed in for a
// profile so far.
func (h *CorrelationHandler) AnalyzeBuffered(c echo.Context) error {
	profile := h.svc.Profile(c.Param("id"))
	if profile == nil {
		return xhttp.NotFoundResponse(c, "profile has no buffered samples")
	}

	result, err := h.svc.AnalyzeProfile(c.Request().Context(), profile)
	if err != nil {
		h.logger.Error("analyze buffered profile error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

func (h *CorrelationHandler) Patterns(c echo.Context) error {
	return xhttp.SuccessResponse(c, correlation.Patterns())
}
