package remote

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"gihan9a/filerelay/internal/utils"
)

var githubRouteMatchers = map[string]*regexp.Regexp{
	// https://docs.github.com/en/rest/repos/contents#get-repository-content
	// https://docs.github.com/en/rest/repos/contents#create-or-update-file-contents
	"/repos/{owner}/{repo}/contents/{path}": regexp.MustCompile(`\/repos\/[^/]+\/[^/]+\/contents\/\S+$`),
}

// InstrumentedTransport wraps next so that every GitHub API call is timed
// into a histogram labelled by method, route and status code
func InstrumentedTransport(logger log.Logger, reg prometheus.Registerer, next http.RoundTripper) http.RoundTripper {
	apiDuration := utils.RegisterOrGet(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filerelay",
			Name:      "github_request_duration_seconds",
			Help:      "Duration of GitHub API requests in seconds",
			Buckets:   prometheus.ExponentialBucketsRange(0.05, 10, 8),
		},
		[]string{"method", "route", "status_code"},
	))

	return utils.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		route := matchGitHubAPIRoute(req.URL.Path)
		statusCode := ""
		start := time.Now()

		res, err := next.RoundTrip(req)
		if err == nil {
			statusCode = fmt.Sprintf("%d", res.StatusCode)
		}

		if route == "unknown_route" {
			level.Warn(logger).Log("path", req.URL.Path, "msg", "unknown GitHub API route")
		}
		apiDuration.WithLabelValues(req.Method, route, statusCode).Observe(time.Since(start).Seconds())

		return res, err
	})
}

func matchGitHubAPIRoute(path string) string {
	for route, regex := range githubRouteMatchers {
		if regex.MatchString(path) {
			return route
		}
	}

	return "unknown_route"
}
