package api

import (
	"errors"

	models "CustodianSync/internal/domain/models"
	"CustodianSync/internal/registry"
	xhttp "CustodianSync/pkg/http"
	xlogger "CustodianSync/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ConnectionsHandler exposes the connection registry over HTTP.
type ConnectionsHandler struct {
	logger   *xlogger.Logger
	registry *registry.Registry
}

func NewConnectionsHandler(logger *xlogger.Logger, reg *registry.Registry) *ConnectionsHandler {
	return &ConnectionsHandler{logger: logger, registry: reg}
}

func (h *ConnectionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/connections")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/test", h.Test)
	g.DELETE("/:id", h.Deactivate)
}

// createConnectionResponse includes the staged test outcomes so callers
// see which stage failed.
type createConnectionResponse struct {
	Connection  *models.CustodianConnection   `json:"connection,omitempty"`
	TestResults []models.ConnectionTestResult `json:"test_results,omitempty"`
}

func (h *ConnectionsHandler) Create(c echo.Context) error {
	req := &models.CreateConnectionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	conn, results, err := h.registry.CreateConnection(c.Request().Context(), req)
	if err != nil {
		var cfgErr *models.ConfigurationError
		if errors.As(err, &cfgErr) {
			return xhttp.BadRequestResponse(c, cfgErr)
		}
		h.logger.Error("create connection error", xlogger.Error(err))
		if len(results) > 0 {
			return xhttp.BadRequestResponse(c, createConnectionResponse{TestResults: results})
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, createConnectionResponse{Connection: conn, TestResults: results})
}

func (h *ConnectionsHandler) List(c echo.Context) error {
	tenantID := c.QueryParam("tenant_id")
	if tenantID == "" {
		return xhttp.BadRequestResponse(c, "tenant_id is required")
	}

	conns, err := h.registry.ListConnections(c.Request().Context(), tenantID)
	if err != nil {
		h.logger.Error("list connections error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, conns, int64(len(conns)))
}

func (h *ConnectionsHandler) Get(c echo.Context) error {
	conn, err := h.registry.GetConnection(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "connection not found")
		}
		h.logger.Error("get connection error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, conn)
}

func (h *ConnectionsHandler) Test(c echo.Context) error {
	results, err := h.registry.TestConnection(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "connection not found")
		}
		h.logger.Error("test connection error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, results)
}

func (h *ConnectionsHandler) Deactivate(c echo.Context) error {
	if err := h.registry.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "connection not found")
		}
		h.logger.Error("deactivate connection error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}
