package gogoblin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// metricsTransport records upstream HTTP response codes, labelled by host.
type metricsTransport struct {
	Base    http.RoundTripper
	Counter *prometheus.CounterVec
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp != nil {
		incrementResponseCount(t.Counter, resp.StatusCode, req.URL.Hostname())
	}
	return resp, nil
}

// recordResponseCodes counts every response the API writes.
func recordResponseCodes(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)

		status := c.Response().Status
		var httpErr *echo.HTTPError
		if err != nil && !c.Response().Committed && errors.As(err, &httpErr) {
			status = httpErr.Code
		}
		incrementResponseCount(appResponseCounts, status)
		return err
	}
}
