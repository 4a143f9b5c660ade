package osm

import (
	"net/http"
	"sync"
	"time"

	"github.com/NERVsystems/osmnode/pkg/tracing"
)

// MonitoringHooks defines hooks for monitoring OSM API requests and node lookups
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when the client had to wait for its limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)

	// OnNodeResult is called once per FetchNode with success, fallback or not_found
	OnNodeResult func(outcome string)

	// OnParseFailure is called when a document yields no node, with the cause
	OnParseFailure func(cause string)
}

var (
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

func notifyRequest(service, operation string) {
	if h := getMonitoringHooks(); h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func notifyResponse(service, operation string, d time.Duration, success bool) {
	if h := getMonitoringHooks(); h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, d, success)
	}
}

func notifyRateLimit(service string, wait time.Duration) {
	if h := getMonitoringHooks(); h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, wait)
	}
}

func notifyError(service, errorType string) {
	if h := getMonitoringHooks(); h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}

func notifyNodeResult(outcome string) {
	if h := getMonitoringHooks(); h != nil && h.OnNodeResult != nil {
		h.OnNodeResult(outcome)
	}
}

func notifyParseFailure(cause Cause) {
	if h := getMonitoringHooks(); h != nil && h.OnParseFailure != nil {
		h.OnParseFailure(cause.String())
	}
}

// getServiceFromRequest labels a request by the host it targets
func getServiceFromRequest(req *http.Request, apiHost string) string {
	if req.URL.Host == apiHost {
		return tracing.ServiceOSMAPI
	}
	return "unknown"
}
