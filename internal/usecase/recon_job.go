package usecase

import (
	"context"

	"CustodianSync/internal/domain/models"
	xlogger "CustodianSync/pkg/logger"
	"CustodianSync/pkg/queue"
)

// MsgTypeReconciliationRun is the queue message type for async runs.
const MsgTypeReconciliationRun = "reconciliation.run"

// ReconciliationJob executes queued reconciliation runs. Runs enqueued
// over HTTP are picked up here by queue workers, so slow custodian
// feeds never block the request path.
type ReconciliationJob struct {
	svc    *FeedService
	logger *xlogger.Logger
}

func NewReconciliationJob(svc *FeedService, logger *xlogger.Logger) *ReconciliationJob {
	return &ReconciliationJob{svc: svc, logger: logger}
}

func (j *ReconciliationJob) Name() string { return "reconciliation_run" }

func (j *ReconciliationJob) Type() string { return MsgTypeReconciliationRun }

func (j *ReconciliationJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.ReconciliationRunRequest](payload)
	if err != nil {
		return err
	}

	summary, err := j.svc.RunReconciliation(ctx, req)
	if err != nil {
		j.logger.Error("queued reconciliation failed",
			xlogger.String("connection_id", req.ConnectionID),
			xlogger.Error(err))
		return err
	}

	j.logger.Info("queued reconciliation completed",
		xlogger.String("run_id", summary.RunID),
		xlogger.String("connection_id", req.ConnectionID),
		xlogger.Any("accuracy_pct", summary.AccuracyPct))
	return nil
}

var _ queue.Job = (*ReconciliationJob)(nil)
