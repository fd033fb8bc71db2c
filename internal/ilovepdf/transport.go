package ilovepdf

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// proxyEnvironmentVariables in order of preference.
var proxyEnvironmentVariables = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// rateLimitedClient waits on a limiter before every request. The wait is
// bounded by the request context, so a cancelled upload never blocks here.
type rateLimitedClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

func (c *rateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func newRateLimitedClient(timeout time.Duration, perSecond float64, logger *logrus.Logger) *rateLimitedClient {
	limit := rate.Limit(perSecond)
	if perSecond < 0 {
		limit = rate.Inf
	}
	return &rateLimitedClient{
		client:  newHTTPClient(timeout, logger),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// newHTTPClient creates an HTTP client that routes through a proxy when one
// is configured in the environment.
func newHTTPClient(timeout time.Duration, logger *logrus.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL := getProxyURL(); proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
			logger.WithField("proxy_host", parsed.Host).Debug("iLovePDF client configured with proxy")
		} else {
			logger.WithError(err).Warn("Failed to parse proxy URL, using direct connection")
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func getProxyURL() string {
	for _, envVar := range proxyEnvironmentVariables {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return ""
}
