package probe

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
)

// Client is the HTTP probe capability. Get returns the response body of a
// single bounded-timeout GET request. Failures come back as typed probe
// errors (timeout, network, protocol), never as a panic or a fatal error:
// a probe that does not respond is an expected outcome.
//
// Implementations must be safe for concurrent use.
type Client interface {
	Get(url string, timeout time.Duration, expectJSON bool, logOnFailure bool) (string, error)
}

const maxBodySize = 1 << 20 // status payloads are small, cap reads at 1 MiB

type httpClient struct {
	logger logging.Logger
}

// NewClient creates an HTTP probe client
func NewClient(logger logging.Logger) Client {
	return &httpClient{
		logger: logger,
	}
}

func (c *httpClient) Get(rawURL string, timeout time.Duration, expectJSON bool, logOnFailure bool) (string, error) {
	body, err := c.get(rawURL, timeout, expectJSON)
	if err != nil && logOnFailure {
		c.logger.Warnf("Probe failed, url: %s, error: %v", rawURL, err)
	}
	return body, err
}

func (c *httpClient) get(rawURL string, timeout time.Duration, expectJSON bool) (string, error) {
	client := &http.Client{
		Timeout: timeout,
	}

	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return "", errors.NewProbeProtocolError("failed to create request", err).WithContext("url", rawURL)
	}
	if expectJSON {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.NewProbeProtocolError(
			fmt.Sprintf("unexpected status %d %s", resp.StatusCode, resp.Status), nil).WithContext("url", rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", classifyTransportError(rawURL, err)
	}

	return string(data), nil
}

func classifyTransportError(rawURL string, err error) error {
	if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
		return errors.NewProbeTimeoutError("request timed out", err).WithContext("url", rawURL)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return errors.NewProbeTimeoutError("request timed out", err).WithContext("url", rawURL)
	}
	return errors.NewProbeNetworkError("request failed", err).WithContext("url", rawURL)
}
