package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveSubmission("location", OutcomeAccepted)
	r.ObserveSubmission("location", OutcomeAccepted)
	r.ObserveSubmission("goals", OutcomeRejected)
	r.ObserveGatewayCall("analysis", OutcomeFailure)

	if got := testutil.ToFloat64(r.submissions.WithLabelValues("location", OutcomeAccepted)); got != 2 {
		t.Errorf("expected 2 accepted location submissions, got %v", got)
	}
	if got := testutil.ToFloat64(r.gatewayCalls.WithLabelValues("analysis", OutcomeFailure)); got != 1 {
		t.Errorf("expected 1 failed gateway call, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveSubmission("location", OutcomeAccepted)
	r.ObserveGatewayCall("legal", OutcomeSuccess)
	r.ObserveLookup("geocode", time.Second)
	r.ObserveLegalQuestion(OutcomeSuccess)
	if r.Registry() != nil {
		t.Error("expected nil registry for nil recorder")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveLegalQuestion(OutcomeSuccess)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "terrapipe_legal_questions_total") {
		t.Errorf("expected legal question counter in output, got:\n%s", body)
	}
}
