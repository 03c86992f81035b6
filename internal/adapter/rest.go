package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CustodianSync/internal/domain/models"
	xhttp "CustodianSync/pkg/http"
	xlogger "CustodianSync/pkg/logger"
)

// RestAdapter talks to REST-only custodians (Schwab-style): paginated
// data endpoints, per-order submission, document listing.
type RestAdapter struct {
	opts *Options
}

// NewRestAdapter creates a REST custodian adapter.
func NewRestAdapter(opts *Options) *RestAdapter {
	return &RestAdapter{opts: opts.withDefaults()}
}

// ValidateConfig fails before any I/O if required auth, endpoint or
// mapping settings are missing.
func (a *RestAdapter) ValidateConfig(conn *models.CustodianConnection) error {
	auth := conn.Config.Authentication
	if auth.ClientID == "" {
		return models.NewConfigurationError("authentication.client_id", "required for REST connections")
	}
	if auth.ClientSecret == "" {
		return models.NewConfigurationError("authentication.client_secret", "required for REST connections")
	}
	if conn.Config.Endpoints.BaseURL == "" {
		return models.NewConfigurationError("endpoints.base_url", "required for REST connections")
	}
	if len(conn.Config.DataMapping) == 0 {
		return models.NewConfigurationError("data_mapping", "at least one field mapping is required")
	}
	return nil
}

func (a *RestAdapter) client(conn *models.CustodianConnection) *xhttp.Client {
	rt := NewRetryTransport(nil, conn.ID, a.opts.Tokens, a.opts.Retry, func(op string) {
		if a.opts.Metrics != nil {
			a.opts.Metrics.RecordRetry(op)
		}
	})
	return xhttp.NewClient(xhttp.WithTimeout(a.opts.RestTimeout), xhttp.WithTransport(rt))
}

func (a *RestAdapter) endpointFor(conn *models.CustodianConnection, feedType models.FeedType) (string, error) {
	ep := conn.Config.Endpoints
	var path string
	switch feedType {
	case models.FeedPositions:
		path = ep.Positions
	case models.FeedTransactions:
		path = ep.Transactions
	case models.FeedCashBalances:
		path = ep.CashBalances
	default:
		return "", &models.RetrievalError{FeedType: feedType, ConnectionType: conn.ConnectionType, Reason: "unsupported feed type"}
	}
	if path == "" {
		return "", &models.RetrievalError{FeedType: feedType, ConnectionType: conn.ConnectionType, Reason: "no endpoint configured"}
	}
	return ep.BaseURL + path, nil
}

// waitForBudget blocks until the connection's declared request budget
// allows another call.
func (a *RestAdapter) waitForBudget(ctx context.Context, conn *models.CustodianConnection) error {
	if a.opts.Limiter == nil || conn.RateLimits.RequestsPerMinute <= 0 {
		return nil
	}
	capacity := float64(conn.RateLimits.BurstLimit)
	if capacity <= 0 {
		capacity = 1
	}
	refill := float64(conn.RateLimits.RequestsPerMinute) / 60.0
	for !a.opts.Limiter.Allow(conn.ID, capacity, refill) {
		if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

type restPage struct {
	Records []map[string]interface{} `json:"records"`
	HasMore bool                     `json:"has_more"`
}

// RetrieveData pulls all pages for a feed, pausing between pages to
// respect the custodian's rate limits.
func (a *RestAdapter) RetrieveData(ctx context.Context, conn *models.CustodianConnection, req *models.DataFeedRequest) (*models.RawFeed, error) {
	url, err := a.endpointFor(conn, req.FeedType)
	if err != nil {
		return nil, err
	}

	client := a.client(conn)
	feed := &models.RawFeed{
		FeedType:    req.FeedType,
		Source:      "REST",
		RetrievedAt: time.Now().UTC(),
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := a.waitForBudget(ctx, conn); err != nil {
			return nil, err
		}

		params := map[string][]string{
			"page":      {strconv.Itoa(page)},
			"page_size": {strconv.Itoa(a.opts.PageSize)},
			"date_from": {req.DateFrom.Format("2006-01-02")},
			"date_to":   {req.DateTo.Format("2006-01-02")},
		}
		if req.AccountNumber != "" {
			params["account"] = []string{req.AccountNumber}
		}

		var pg restPage
		err := client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         url,
			QueryParams: params,
		}, &pg)
		if err != nil {
			return nil, &models.ConnectivityError{Op: fmt.Sprintf("retrieve %s page %d", req.FeedType, page), Err: err}
		}

		feed.Records = append(feed.Records, pg.Records...)
		if !pg.HasMore || len(pg.Records) == 0 {
			break
		}

		// Inter-page pause keeps bursty pagination inside the provider's budget.
		if err := sleepCtx(ctx, a.opts.PageDelay); err != nil {
			return nil, err
		}
	}

	feed.RecordCount = len(feed.Records)
	a.opts.Logger.Debug("rest feed retrieved",
		xlogger.String("feed_type", string(req.FeedType)),
		xlogger.Int("records", feed.RecordCount))
	return feed, nil
}

// SubmitOrders submits strictly one order at a time with an inter-order
// delay. A failed order is recorded as a rejection; the batch continues.
func (a *RestAdapter) SubmitOrders(ctx context.Context, conn *models.CustodianConnection, batch *models.OrderBatchRequest) (*models.OrderSubmissionResult, error) {
	ep := conn.Config.Endpoints
	if ep.Orders == "" {
		return nil, models.NewConfigurationError("endpoints.orders", "order submission not configured")
	}

	client := a.client(conn)
	result := &models.OrderSubmissionResult{SubmittedAt: time.Now().UTC()}

	for i, order := range batch.Orders {
		if err := ctx.Err(); err != nil {
			result.Status = result.AggregateStatus()
			return result, err
		}

		err := client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    ep.BaseURL + ep.Orders,
			Body:   order,
		}, nil)
		if err != nil {
			result.RejectedCount++
			result.Rejections = append(result.Rejections, models.OrderRejection{
				OrderID: order.OrderID,
				Reason:  err.Error(),
			})
			a.opts.Logger.Warn("order rejected",
				xlogger.String("order_id", order.OrderID),
				xlogger.Error(err))
		} else {
			result.SubmittedCount++
		}

		if i < len(batch.Orders)-1 {
			if err := sleepCtx(ctx, a.opts.OrderDelay); err != nil {
				result.Status = result.AggregateStatus()
				return result, err
			}
		}
	}

	result.Status = result.AggregateStatus()
	return result, nil
}

// RetrieveDocuments lists custodian documents in a date range.
func (a *RestAdapter) RetrieveDocuments(ctx context.Context, conn *models.CustodianConnection, from, to time.Time) ([]models.Document, error) {
	ep := conn.Config.Endpoints
	if ep.Documents == "" {
		return nil, models.NewConfigurationError("endpoints.documents", "document retrieval not configured")
	}

	var out struct {
		Documents []models.Document `json:"documents"`
	}
	err := a.client(conn).SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    ep.BaseURL + ep.Documents,
		QueryParams: map[string][]string{
			"date_from": {from.Format("2006-01-02")},
			"date_to":   {to.Format("2006-01-02")},
		},
	}, &out)
	if err != nil {
		return nil, &models.ConnectivityError{Op: "retrieve documents", Err: err}
	}
	return out.Documents, nil
}

// HealthCheck probes the custodian API.
func (a *RestAdapter) HealthCheck(ctx context.Context, conn *models.CustodianConnection) (bool, error) {
	err := a.client(conn).SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    conn.Config.Endpoints.BaseURL + "/health",
	}, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// TestConnection runs the staged battery: auth, connectivity, sample
// retrieval and, when the feature is declared, an order dry run.
func (a *RestAdapter) TestConnection(ctx context.Context, conn *models.CustodianConnection) ([]models.ConnectionTestResult, error) {
	if err := a.ValidateConfig(conn); err != nil {
		return nil, err
	}

	results := make([]models.ConnectionTestResult, 0, 4)

	results = append(results, a.stage("authentication", func() error {
		_, err := a.opts.Tokens.Token(ctx, conn.ID)
		return err
	}))

	results = append(results, a.stage("connectivity", func() error {
		ok, err := a.HealthCheck(ctx, conn)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("health check reported unhealthy")
		}
		return nil
	}))

	results = append(results, a.stage("sample_retrieval", func() error {
		probe := *a.opts
		probe.PageSize = 1
		sample := RestAdapter{opts: &probe}
		_, err := sample.RetrieveData(ctx, conn, &models.DataFeedRequest{
			FeedType: models.FeedPositions,
			DateFrom: time.Now().AddDate(0, 0, -1),
			DateTo:   time.Now(),
		})
		return err
	}))

	if hasFeature(conn, "ORDERS") {
		results = append(results, a.stage("order_dry_run", func() error {
			return a.client(conn).SendAndParse(ctx, &xhttp.RequestOptions{
				Method:      xhttp.MethodPost,
				URL:         conn.Config.Endpoints.BaseURL + conn.Config.Endpoints.Orders,
				QueryParams: map[string][]string{"dry_run": {"true"}},
				Body:        models.Order{OrderID: "DRYRUN", Symbol: "TEST", Side: models.OrderBuy, Quantity: 0, OrderType: "MARKET"},
			}, nil)
		}))
	}

	return results, nil
}

func (a *RestAdapter) stage(name string, fn func() error) models.ConnectionTestResult {
	start := time.Now()
	err := fn()
	res := models.ConnectionTestResult{
		TestType:       name,
		Success:        err == nil,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.ErrorMessage = err.Error()
	} else {
		res.Details = "ok"
	}
	return res
}

func hasFeature(conn *models.CustodianConnection, feature string) bool {
	for _, f := range conn.SupportedFeatures {
		if f == feature {
			return true
		}
	}
	return false
}
