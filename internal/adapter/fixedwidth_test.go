package adapter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
)

func positionLine(account, symbol, cusip string, qty, price, mv float64) string {
	return fmt.Sprintf("%-10s%-10s%-9s%13.4f%13.4f%13.4f", account, symbol, cusip, qty, price, mv)
}

func TestParseFixedWidthLinePositions(t *testing.T) {
	line := positionLine("ACC0000001", "AAPL", "037833100", 100.5, 150.25, 15100.125)

	rec, err := ParseFixedWidthLine(models.FeedPositions, line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec["account_number"] != "ACC0000001" {
		t.Fatalf("account_number = %v", rec["account_number"])
	}
	if rec["symbol"] != "AAPL" {
		t.Fatalf("symbol = %v", rec["symbol"])
	}
	if rec["cusip"] != "037833100" {
		t.Fatalf("cusip = %v", rec["cusip"])
	}
	if rec["quantity"].(float64) != 100.5 {
		t.Fatalf("quantity = %v", rec["quantity"])
	}
	if rec["market_value"].(float64) != 15100.125 {
		t.Fatalf("market_value = %v", rec["market_value"])
	}
}

func TestParseFixedWidthLineTransactionsDate(t *testing.T) {
	line := fmt.Sprintf("%-10s%-15s%-10s%-5s%13.2f%13.2f%s",
		"ACC0000001", "TXN00000000001", "MSFT", "BUY", 10.0, 410.55, "20240315")

	rec, err := ParseFixedWidthLine(models.FeedTransactions, line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d, ok := rec["trade_date"].(time.Time)
	if !ok {
		t.Fatalf("trade_date type %T", rec["trade_date"])
	}
	if d.Year() != 2024 || d.Month() != time.March || d.Day() != 15 {
		t.Fatalf("trade_date = %v", d)
	}
}

func TestParseFixedWidthLineSkipsHeaderAndBlank(t *testing.T) {
	for _, line := range []string{"", "   ", "HDR20240315POSITIONS"} {
		rec, err := ParseFixedWidthLine(models.FeedPositions, line)
		if err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		if rec != nil {
			t.Fatalf("line %q: expected nil record, got %v", line, rec)
		}
	}
}

func TestParseFixedWidthLineTooShort(t *testing.T) {
	if _, err := ParseFixedWidthLine(models.FeedPositions, "ACC1"); err == nil {
		t.Fatalf("expected error for short line")
	}
}

func TestParseFixedWidthFileDropsBadLines(t *testing.T) {
	good := positionLine("ACC0000001", "AAPL", "037833100", 100, 150, 15000)
	bad := strings.Replace(good, "150.0000", "garbage!", 1)
	body := strings.Join([]string{
		"HDR20240315POSITIONS",
		good,
		bad,
		positionLine("ACC0000002", "MSFT", "594918104", 5, 410, 2050),
		"",
	}, "\n")

	records, dropped := ParseFixedWidthFile(models.FeedPositions, []byte(body))
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
}

func TestParseFixedWidthFileCRLF(t *testing.T) {
	body := positionLine("ACC0000001", "AAPL", "037833100", 1, 2, 2) + "\r\n"
	records, dropped := ParseFixedWidthFile(models.FeedPositions, []byte(body))
	if dropped != 0 || len(records) != 1 {
		t.Fatalf("records=%d dropped=%d", len(records), dropped)
	}
}

func TestMatchesFeedFile(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		want bool
	}{
		{"POS_20240315_daily.txt", true},
		{"POS_20240301_daily.txt", true},
		{"POS_20240331_daily.txt", true},
		{"POS_20240401_daily.txt", false},
		{"POS_20240229_daily.txt", false},
		{"TXN_20240315_daily.txt", false},
		{"POS_20240315_daily.csv", false},
		{"POS_notadate_daily.txt", false},
		{"POS_202403.txt", false},
	}
	for _, c := range cases {
		if got := MatchesFeedFile(models.FeedPositions, c.name, from, to); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestMatchesFeedFileOpenRange(t *testing.T) {
	if !MatchesFeedFile(models.FeedTransactions, "TXN_20240315_x.txt", time.Time{}, time.Time{}) {
		t.Fatalf("open range should match any dated file")
	}
}
