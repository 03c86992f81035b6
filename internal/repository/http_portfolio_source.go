package repository

import (
	"context"
	"fmt"
	"time"

	"CustodianSync/internal/domain/models"
	domrepo "CustodianSync/internal/domain/repository"
	xhttp "CustodianSync/pkg/http"
)

// HTTPPortfolioSource reads internal portfolio state from the portfolio
// service. It is the authoritative side of every reconciliation run.
type HTTPPortfolioSource struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPPortfolioSource creates a portfolio service client.
func NewHTTPPortfolioSource(baseURL string, timeout time.Duration) domrepo.PortfolioSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPortfolioSource{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (s *HTTPPortfolioSource) Positions(ctx context.Context, portfolioID string) ([]models.PositionRecord, error) {
	var out struct {
		Positions []models.PositionRecord `json:"positions"`
	}
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/portfolios/%s/positions", s.baseURL, portfolioID),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("portfolio positions: %w", err)
	}
	return out.Positions, nil
}

func (s *HTTPPortfolioSource) Transactions(ctx context.Context, portfolioID string, from, to time.Time) ([]models.TransactionRecord, error) {
	var out struct {
		Transactions []models.TransactionRecord `json:"transactions"`
	}
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/portfolios/%s/transactions", s.baseURL, portfolioID),
		QueryParams: map[string][]string{
			"date_from": {from.Format("2006-01-02")},
			"date_to":   {to.Format("2006-01-02")},
		},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("portfolio transactions: %w", err)
	}
	return out.Transactions, nil
}

func (s *HTTPPortfolioSource) CashBalances(ctx context.Context, portfolioID string) ([]models.CashBalanceRecord, error) {
	var out struct {
		Balances []models.CashBalanceRecord `json:"balances"`
	}
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/portfolios/%s/cash-balances", s.baseURL, portfolioID),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("portfolio cash balances: %w", err)
	}
	return out.Balances, nil
}
