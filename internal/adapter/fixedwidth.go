package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"CustodianSync/internal/domain/models"
)

// fieldSpec maps one fixed-width field to its byte offsets.
type fieldSpec struct {
	name    string
	start   int
	end     int
	kind    byte // 's' string, 'f' float, 'd' date YYYYMMDD
}

// Layouts follow the Pershing-style file format: positions, transactions
// and cash balances each carry fields at fixed byte offsets.
var fixedWidthLayouts = map[models.FeedType][]fieldSpec{
	models.FeedPositions: {
		{"account_number", 0, 10, 's'},
		{"symbol", 10, 20, 's'},
		{"cusip", 20, 29, 's'},
		{"quantity", 29, 42, 'f'},
		{"price", 42, 55, 'f'},
		{"market_value", 55, 68, 'f'},
	},
	models.FeedTransactions: {
		{"account_number", 0, 10, 's'},
		{"transaction_id", 10, 25, 's'},
		{"symbol", 25, 35, 's'},
		{"type", 35, 40, 's'},
		{"quantity", 40, 53, 'f'},
		{"price", 53, 66, 'f'},
		{"trade_date", 66, 74, 'd'},
	},
	models.FeedCashBalances: {
		{"account_number", 0, 10, 's'},
		{"currency", 10, 13, 's'},
		{"balance", 13, 26, 'f'},
	},
	models.FeedSettlements: {
		{"account_number", 0, 10, 's'},
		{"transaction_id", 10, 25, 's'},
		{"amount", 25, 38, 'f'},
		{"settle_date", 38, 46, 'd'},
	},
}

const headerPrefix = "HDR"

// ParseFixedWidthLine parses a single line into a record per the feed
// type layout. Returns nil for header and blank lines.
func ParseFixedWidthLine(feedType models.FeedType, line string) (map[string]interface{}, error) {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, headerPrefix) {
		return nil, nil
	}
	layout, ok := fixedWidthLayouts[feedType]
	if !ok {
		return nil, fmt.Errorf("no fixed-width layout for feed type %s", feedType)
	}

	record := make(map[string]interface{}, len(layout))
	for _, f := range layout {
		if len(line) < f.end {
			return nil, fmt.Errorf("line too short for field %s: need %d bytes, have %d", f.name, f.end, len(line))
		}
		raw := strings.TrimSpace(line[f.start:f.end])
		switch f.kind {
		case 'f':
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", f.name, raw, err)
			}
			record[f.name] = v
		case 'd':
			v, err := time.Parse("20060102", raw)
			if err != nil {
				return nil, fmt.Errorf("parse %s %q: %w", f.name, raw, err)
			}
			record[f.name] = v
		default:
			record[f.name] = raw
		}
	}
	return record, nil
}

// ParseFixedWidthFile parses every line of a file body. A line that fails
// to parse is counted and dropped, never fatal to the batch.
func ParseFixedWidthFile(feedType models.FeedType, body []byte) (records []map[string]interface{}, dropped int) {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		rec, err := ParseFixedWidthLine(feedType, line)
		if err != nil {
			dropped++
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, dropped
}

// feedFilePrefixes maps feed types to their SFTP file naming convention:
// POS_{YYYYMMDD}_*.txt, TXN_{YYYYMMDD}_*.txt, etc.
var feedFilePrefixes = map[models.FeedType]string{
	models.FeedPositions:    "POS",
	models.FeedTransactions: "TXN",
	models.FeedCashBalances: "CASH",
	models.FeedSettlements:  "SETTL",
}

// MatchesFeedFile reports whether a remote file name matches the
// feed-type + date-range naming pattern.
func MatchesFeedFile(feedType models.FeedType, name string, from, to time.Time) bool {
	prefix, ok := feedFilePrefixes[feedType]
	if !ok {
		return false
	}
	if !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, ".txt") {
		return false
	}
	rest := strings.TrimPrefix(name, prefix+"_")
	if len(rest) < 8 {
		return false
	}
	fileDate, err := time.Parse("20060102", rest[:8])
	if err != nil {
		return false
	}
	if !from.IsZero() && fileDate.Before(truncateDay(from)) {
		return false
	}
	if !to.IsZero() && fileDate.After(truncateDay(to)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
