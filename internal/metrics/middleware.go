package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// roundTripperFunc adapts a function to http.RoundTripper
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// InstrumentTransport wraps an http.RoundTripper with API request metrics.
// Transport failures are recorded with status "error".
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	counted := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()

		resp, err := next.RoundTrip(r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := "error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}

		APIRequestDuration.WithLabelValues(method, path).Observe(duration)
		APIRequestsTotal.WithLabelValues(method, path, status).Inc()

		return resp, err
	})

	return promhttp.InstrumentRoundTripperInFlight(APIRequestsInFlight, counted)
}

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// normalizePath normalizes API paths for metric labels to avoid cardinality explosion.
// File IDs are replaced with a placeholder. The API base path prefix is dropped.
func normalizePath(path string) string {
	i := strings.Index(path, "/files/")
	if i < 0 {
		return "/other"
	}
	path = path[i:]

	switch {
	case path == "/files/":
		return "/files/"
	case path == "/files/search/":
		return "/files/search/"
	case path == "/files/storage_stats/":
		return "/files/storage_stats/"

	// File detail and delete
	case strings.HasSuffix(path, "/") && strings.Count(path, "/") == 3:
		return "/files/:id/"

	default:
		return "/other"
	}
}
