package api

import (
	"errors"
	"time"

	models "CustodianSync/internal/domain/models"
	"CustodianSync/internal/usecase"
	xhttp "CustodianSync/pkg/http"
	xlogger "CustodianSync/pkg/logger"
	"CustodianSync/pkg/queue"

	"github.com/labstack/echo/v4"
)

// ReconciliationHandler exposes feed runs, reconciliation, orders and
// documents over HTTP.
type ReconciliationHandler struct {
	logger *xlogger.Logger
	svc    *usecase.FeedService
	queue  queue.QueueService
}

func NewReconciliationHandler(logger *xlogger.Logger, svc *usecase.FeedService, q queue.QueueService) *ReconciliationHandler {
	return &ReconciliationHandler{logger: logger, svc: svc, queue: q}
}

func (h *ReconciliationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/reconciliation/run", h.Run)
	g.POST("/reconciliation/enqueue", h.Enqueue)
	g.GET("/reconciliation/:run_id", h.Summary)
	g.POST("/orders", h.SubmitOrders)
	g.GET("/documents", h.Documents)
}

func (h *ReconciliationHandler) Run(c echo.Context) error {
	req := &models.ReconciliationRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	summary, err := h.svc.RunReconciliation(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "connection not found")
		}
		h.logger.Error("reconciliation run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, summary)
}

// Enqueue accepts a run request and hands it to queue workers. The
// summary lands in storage and on the event bus when the run finishes.
func (h *ReconciliationHandler) Enqueue(c echo.Context) error {
	req := &models.ReconciliationRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.queue.PublishMessage(c.Request().Context(), usecase.MsgTypeReconciliationRun, req); err != nil {
		h.logger.Error("enqueue reconciliation error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"status":        "queued",
		"connection_id": req.ConnectionID,
	})
}

func (h *ReconciliationHandler) Summary(c echo.Context) error {
	summary, err := h.svc.Summary(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "run not found")
		}
		h.logger.Error("reconciliation summary error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *ReconciliationHandler) SubmitOrders(c echo.Context) error {
	req := &models.SubmitOrdersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.svc.SubmitOrders(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "connection not found")
		}
		h.logger.Error("submit orders error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

func (h *ReconciliationHandler) Documents(c echo.Context) error {
	connectionID := c.QueryParam("connection_id")
	if connectionID == "" {
		return xhttp.BadRequestResponse(c, "connection_id is required")
	}
	from, err := time.Parse("2006-01-02", c.QueryParam("date_from"))
	if err != nil {
		return xhttp.BadRequestResponse(c, "date_from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("date_to"))
	if err != nil {
		return xhttp.BadRequestResponse(c, "date_to must be YYYY-MM-DD")
	}

	docs, err := h.svc.RetrieveDocuments(c.Request().Context(), connectionID, from, to)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "connection not found")
		}
		h.logger.Error("documents error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, docs, int64(len(docs)))
}
