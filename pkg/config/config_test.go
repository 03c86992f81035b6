package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
kafka:
  brokers: ["localhost:9092"]
  event_topic: custsync.events
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Custodian.PageSize != 1000 {
		t.Fatalf("page size = %d", c.Custodian.PageSize)
	}
	if c.Custodian.DefaultRetryAfter != 300*time.Second {
		t.Fatalf("default retry after = %v", c.Custodian.DefaultRetryAfter)
	}
	if c.Queue.Workers != 4 || c.Queue.RetryLimit != 3 {
		t.Fatalf("queue defaults = %+v", c.Queue)
	}
	if c.Recon.Tolerances.MarketValueBps != 10 || c.Recon.Tolerances.PriceBps != 5 {
		t.Fatalf("tolerance defaults = %+v", c.Recon.Tolerances)
	}
	if c.Correlation.MinSampleSize != 10 || c.Correlation.CacheTTL != 24*time.Hour {
		t.Fatalf("correlation defaults = %+v", c.Correlation)
	}
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no environment", "kafka:\n  brokers: [\"b:9092\"]\n  event_topic: t\n"},
		{"no brokers", "environment: test\nkafka:\n  event_topic: t\n"},
		{"no event topic", "environment: test\nkafka:\n  brokers: [\"b:9092\"]\n"},
	}
	for _, c := range cases {
		if _, err := Load(writeConfig(t, c.body)); err == nil {
			t.Fatalf("%s: accepted", c.name)
		}
	}
}

func TestLoadExplicitValuesKept(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML+`
custodian:
  page_size: 250
recon:
  tolerances:
    market_value_bps: 25
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Custodian.PageSize != 250 {
		t.Fatalf("page size = %d", c.Custodian.PageSize)
	}
	if c.Recon.Tolerances.MarketValueBps != 25 {
		t.Fatalf("market value bps = %v", c.Recon.Tolerances.MarketValueBps)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Redis.Password != "hunter2" {
		t.Fatalf("redis password not overridden")
	}
}
