// Package adhoc holds the resty clients for the external inference
// providers. Each client is built once at startup and shared read-only by
// all requests.
package adhoc

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MihirRajeshPanchal/BlitzAI/monitor"
)

const (
	RoboflowEndpoint     = "https://detect.roboflow.com"
	RoboflowOutlineURL   = "https://outline.roboflow.com"
	GeminiEndpoint       = "https://generativelanguage.googleapis.com"
	OpenAIEndpoint       = "https://api.openai.com"
	errorBodyLimit       = 256
	defaultWhisperModel  = "whisper-1"
	defaultGeminiText    = "gemini-pro"
	defaultGeminiVision  = "gemini-pro-vision"
	providerRoboflow     = "roboflow"
	providerGemini       = "gemini"
	providerOpenAI       = "openai"
	outcomeOK            = "ok"
	outcomeError         = "error"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeJSON      = "application/json"
	transcriptionsPath   = "/v1/audio/transcriptions"
	generateContentPath  = "/v1beta/models/%s:generateContent"
	roboflowModelPathFmt = "/%s/%d"
)

// newClient returns a resty client. A zero timeout leaves calls unbounded;
// the request context is then the only way to abort them.
func newClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// statusError describes a non-2xx provider response.
func statusError(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit] + "..."
	}
	return fmt.Errorf("provider returned %s: %s", resp.Status(), body)
}

func observe(provider string, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	monitor.ProviderCalls.WithLabelValues(provider, outcome).Inc()
}
