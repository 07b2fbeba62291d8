package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInstrumentHandler_RecordsStatusClass(t *testing.T) {
	m := New()
	handler := m.InstrumentHandler("/orders/{id}/void", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodPost, "/orders/nope/void", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	expo := httptest.NewRecorder()
	m.Handler().ServeHTTP(expo, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := expo.Body.String()

	if !strings.Contains(body, `boardlink_http_requests_total{method="POST",path="/orders/{id}/void",status="404"}`) {
		t.Fatalf("request counter missing: %.400s", body)
	}
	if !strings.Contains(body, `status_class="4xx"`) {
		t.Fatalf("duration histogram missing status class: %.400s", body)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		204: "2xx",
		404: "4xx",
		503: "5xx",
		0:   "unknown",
		600: "unknown",
	}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
