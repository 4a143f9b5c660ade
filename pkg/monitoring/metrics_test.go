package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMCPRequest(t *testing.T) {
	MCPRequestsTotal.Reset()

	RecordMCPRequest("get_osm_node", 100*time.Millisecond, true)
	RecordMCPRequest("get_osm_node", 200*time.Millisecond, false)
	RecordMCPRequest("get_osm_node", 300*time.Millisecond, false)

	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("get_osm_node", "success")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("get_osm_node", "error")); got != 2 {
		t.Errorf("Expected 2 failed requests, got %v", got)
	}
}

func TestRecordExternalServiceRequest(t *testing.T) {
	ExternalServiceRequestsTotal.Reset()

	RecordExternalServiceRequest("osm_api", "fetch_node", 80*time.Millisecond, true)
	RecordExternalServiceRequest("osm_api", "fetch_node", 5*time.Second, false)

	for _, status := range []string{"success", "error"} {
		if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("osm_api", "fetch_node", status)); got != 1 {
			t.Errorf("Expected 1 %s request, got %v", status, got)
		}
	}
}

func TestOSMHooks(t *testing.T) {
	NodeFetchTotal.Reset()
	NodeParseFailures.Reset()
	RateLimitWaits.Reset()
	ErrorsTotal.Reset()

	hooks := OSMHooks()
	hooks.OnNodeResult("success")
	hooks.OnNodeResult("fallback")
	hooks.OnNodeResult("fallback")
	hooks.OnParseFailure("malformed")
	hooks.OnRateLimit("osm_api", 250*time.Millisecond)
	hooks.OnError("osm_api", "request_error")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"success", testutil.ToFloat64(NodeFetchTotal.WithLabelValues("success")), 1},
		{"fallback", testutil.ToFloat64(NodeFetchTotal.WithLabelValues("fallback")), 2},
		{"malformed", testutil.ToFloat64(NodeParseFailures.WithLabelValues("malformed")), 1},
		{"rate limit", testutil.ToFloat64(RateLimitWaits.WithLabelValues("osm_api")), 1},
		{"errors", testutil.ToFloat64(ErrorsTotal.WithLabelValues("osm_api", "request_error")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}

	if hooks.OnRequest != nil {
		t.Error("OnRequest should stay unset; completed requests are counted in OnResponse")
	}
}
