package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestCollector_RecordRequestCountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("list_users", 200, 10*time.Millisecond)
	c.RecordRequest("list_users", 200, 20*time.Millisecond)
	c.RecordRequest("list_users", 0, time.Millisecond)

	ok := findMetric(t, reg, "perch_api_requests_total", map[string]string{"op": "list_users", "status": "200"})
	if got := ok.GetCounter().GetValue(); got != 2 {
		t.Fatalf("requests{200} = %v, want 2", got)
	}
	failed := findMetric(t, reg, "perch_api_requests_total", map[string]string{"op": "list_users", "status": "0"})
	if got := failed.GetCounter().GetValue(); got != 1 {
		t.Fatalf("requests{0} = %v, want 1", got)
	}
	latency := findMetric(t, reg, "perch_api_request_duration_seconds", map[string]string{"op": "list_users"})
	if got := latency.GetHistogram().GetSampleCount(); got != 3 {
		t.Fatalf("latency samples = %d, want 3", got)
	}
}

func TestCollector_RecordFetchSplitsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetch("feed", nil)
	c.RecordFetch("feed", errors.New("boom"))
	c.RecordFetch("feed", errors.New("boom"))

	if got := findMetric(t, reg, "perch_cache_fetches_total", map[string]string{"resource": "feed", "result": "ok"}).GetCounter().GetValue(); got != 1 {
		t.Fatalf("fetches{ok} = %v, want 1", got)
	}
	if got := findMetric(t, reg, "perch_cache_fetches_total", map[string]string{"resource": "feed", "result": "error"}).GetCounter().GetValue(); got != 2 {
		t.Fatalf("fetches{error} = %v, want 2", got)
	}
}

func TestCollector_PollAndActionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollTick("ok")
	c.RecordAction("follow", "info")

	if got := findMetric(t, reg, "perch_notification_poll_ticks_total", map[string]string{"outcome": "ok"}).GetCounter().GetValue(); got != 1 {
		t.Fatalf("poll ticks = %v, want 1", got)
	}
	if got := findMetric(t, reg, "perch_actions_total", map[string]string{"action": "follow", "outcome": "info"}).GetCounter().GetValue(); got != 1 {
		t.Fatalf("actions = %v, want 1", got)
	}
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAction("create_post", "success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "perch_actions_total") {
		t.Fatalf("scrape output missing perch_actions_total:\n%s", body)
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatalf("OrNop(nil) did not return Nop")
	}
	c := NewCollector(prometheus.NewRegistry())
	if OrNop(c) != Recorder(c) {
		t.Fatalf("OrNop(c) did not return c")
	}
}
