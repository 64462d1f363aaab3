package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHTTPRequestCountsServerErrors(t *testing.T) {
	const route = "/api/v1/proof/{proofId}"
	before := testutil.ToFloat64(apiServerErrors.WithLabelValues(route, http.MethodGet))
	ObserveHTTPRequest(route, http.MethodGet, http.StatusBadGateway, 20*time.Millisecond)
	ObserveHTTPRequest(route, http.MethodGet, http.StatusOK, 10*time.Millisecond)

	if got := testutil.ToFloat64(apiServerErrors.WithLabelValues(route, http.MethodGet)); got != before+1 {
		t.Fatalf("expected one more server error, got %v (before %v)", got, before)
	}
	if got := testutil.ToFloat64(apiRequests.WithLabelValues(route, http.MethodGet, "200")); got < 1 {
		t.Fatalf("expected 200 request to be counted")
	}
}

func TestRecordRateLimited(t *testing.T) {
	before := testutil.ToFloat64(apiRateLimited.WithLabelValues("/api/v1/reason"))
	RecordRateLimited("/api/v1/reason")
	if got := testutil.ToFloat64(apiRateLimited.WithLabelValues("/api/v1/reason")); got != before+1 {
		t.Fatalf("rate limited request not counted")
	}
}

func TestLifecycleCounters(t *testing.T) {
	beforeFail := testutil.ToFloat64(snapshotWrites.WithLabelValues("error"))
	RecordSnapshotWrite(errors.New("disk full"))
	if got := testutil.ToFloat64(snapshotWrites.WithLabelValues("error")); got != beforeFail+1 {
		t.Fatalf("snapshot failure not counted")
	}

	beforeEmpty := testutil.ToFloat64(extractionDegraded.WithLabelValues("empty_content"))
	RecordExtractionDegraded([]string{"empty_content", "no_markers"})
	if got := testutil.ToFloat64(extractionDegraded.WithLabelValues("empty_content")); got != beforeEmpty+1 {
		t.Fatalf("degraded extraction not counted")
	}

	beforeIssue := testutil.ToFloat64(issuanceAttempts.WithLabelValues("ok"))
	RecordIssuanceAttempt(nil)
	if got := testutil.ToFloat64(issuanceAttempts.WithLabelValues("ok")); got != beforeIssue+1 {
		t.Fatalf("issuance attempt not counted")
	}
}

func TestHandlerExposesProofflowMetrics(t *testing.T) {
	RecordSubmission()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "proofflow_proofs_submitted_total") {
		t.Fatalf("submitted counter missing from exposition")
	}
}
