package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
)

func restConn(baseURL string) *models.CustodianConnection {
	return &models.CustodianConnection{
		ID:             "conn-rest",
		CustodianType:  models.CustodianSchwab,
		ConnectionType: models.ConnectionREST,
		IsActive:       true,
		Config: models.ConnectionConfig{
			Authentication: models.AuthConfig{ClientID: "cid", ClientSecret: "secret"},
			Endpoints: models.EndpointConfig{
				BaseURL:   baseURL,
				Positions: "/v1/positions",
				Orders:    "/v1/orders",
			},
			DataMapping: map[string]string{"account_number": "account_number"},
		},
	}
}

func TestRestRetrieveDataPaginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		out := restPage{
			Records: []map[string]interface{}{{"account_number": "ACC" + page}},
			HasMore: page != "3",
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	a := NewRestAdapter(&Options{
		Logger:    testLogger(t),
		Tokens:    &staticTokens{token: "tok"},
		PageSize:  1,
		PageDelay: time.Millisecond,
	})

	feed, err := a.RetrieveData(context.Background(), restConn(srv.URL), &models.DataFeedRequest{
		FeedType: models.FeedPositions,
		DateFrom: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if feed.Source != "REST" {
		t.Fatalf("source = %q", feed.Source)
	}
	if feed.RecordCount != 3 {
		t.Fatalf("record count = %d, want 3", feed.RecordCount)
	}
	if len(pages) != 3 || pages[0] != "1" || pages[2] != "3" {
		t.Fatalf("pages = %v", pages)
	}
}

func TestRestRetrieveDataUnsupportedFeed(t *testing.T) {
	a := NewRestAdapter(&Options{Logger: testLogger(t), Tokens: &staticTokens{token: "tok"}})
	_, err := a.RetrieveData(context.Background(), restConn("http://unused"), &models.DataFeedRequest{
		FeedType: models.FeedSettlements,
	})
	if err == nil {
		t.Fatalf("expected error for unsupported feed type")
	}
}

func TestRestValidateConfig(t *testing.T) {
	a := NewRestAdapter(&Options{Logger: testLogger(t)})

	conn := restConn("http://api.test")
	if err := a.ValidateConfig(conn); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	conn.Config.Authentication.ClientSecret = ""
	err := a.ValidateConfig(conn)
	if err == nil {
		t.Fatalf("missing client_secret accepted")
	}
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type %T", err)
	}

	conn = restConn("http://api.test")
	conn.Config.DataMapping = nil
	if err := a.ValidateConfig(conn); err == nil {
		t.Fatalf("missing data mapping accepted")
	}
}

func TestRestSubmitOrdersContinuesPastRejection(t *testing.T) {
	var got int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got++
		if got == 2 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"error":"insufficient funds"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewRestAdapter(&Options{
		Logger:     testLogger(t),
		Tokens:     &staticTokens{token: "tok"},
		OrderDelay: time.Millisecond,
	})

	result, err := a.SubmitOrders(context.Background(), restConn(srv.URL), &models.OrderBatchRequest{
		Orders: []models.Order{
			{OrderID: "O1", Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10, OrderType: "MARKET"},
			{OrderID: "O2", Symbol: "MSFT", Side: models.OrderBuy, Quantity: 99999, OrderType: "MARKET"},
			{OrderID: "O3", Symbol: "VTI", Side: models.OrderSell, Quantity: 5, OrderType: "MARKET"},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.SubmittedCount != 2 || result.RejectedCount != 1 {
		t.Fatalf("submitted=%d rejected=%d", result.SubmittedCount, result.RejectedCount)
	}
	if len(result.Rejections) != 1 || result.Rejections[0].OrderID != "O2" {
		t.Fatalf("rejections = %+v", result.Rejections)
	}
	if result.Status != models.SubmissionPartialSuccess {
		t.Fatalf("status = %s", result.Status)
	}
}
