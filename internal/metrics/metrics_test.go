package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequestIncrementsCounter(t *testing.T) {
	RecordRequest("GET", "/api/search", 200, 42)

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/search", "2xx"))
	if got < 1 {
		t.Fatalf("expected at least 1 recorded request, got %v", got)
	}
}

func TestRecordPipelineOperationObserves(t *testing.T) {
	before := testutil.CollectAndCount(pipelineOperationDurationMs)
	RecordPipelineOperation("embedding", true, 120)
	after := testutil.CollectAndCount(pipelineOperationDurationMs)
	if after <= before {
		t.Fatalf("expected histogram series count to grow, before=%d after=%d", before, after)
	}
}

func TestRecordWebhookEventIncrementsCounter(t *testing.T) {
	RecordWebhookEvent("crawl.started", "accepted")
	got := testutil.ToFloat64(webhookEventsTotal.WithLabelValues("crawl.started", "accepted"))
	if got < 1 {
		t.Fatalf("expected at least 1 recorded event, got %v", got)
	}
}

func TestRecordRetentionDeletedIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("content"))
	RecordRetentionDeleted("content", 0)
	after := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("content"))
	if after != before {
		t.Fatalf("expected zero-count call to be a no-op, before=%v after=%v", before, after)
	}

	RecordRetentionDeleted("content", 3)
	afterPositive := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("content"))
	if afterPositive != before+3 {
		t.Fatalf("expected counter to increase by 3, got %v -> %v", before, afterPositive)
	}
}
