package adhoc

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

type WhisperConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// WhisperClient uploads staged audio files to the OpenAI transcription API.
type WhisperClient struct {
	client *resty.Client
	cfg    WhisperConfig
}

func NewWhisperClient(cfg WhisperConfig) *WhisperClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = OpenAIEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	return &WhisperClient{client: newClient(cfg.Timeout), cfg: cfg}
}

func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	const op = "whisper.Transcribe"
	if audioPath == "" {
		return "", iface.Errorf(iface.ValidationError, op, "no audio file")
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetFile("file", audioPath).
		SetFormData(map[string]string{
			"model":           c.cfg.Model,
			"response_format": "text",
		}).
		Post(joinURL(c.cfg.Endpoint, transcriptionsPath))
	if err == nil && resp.IsError() {
		err = statusError(resp)
	}
	observe(providerOpenAI, err)
	if err != nil {
		return "", iface.Wrap(iface.InferenceError, op, err)
	}
	return strings.TrimSpace(resp.String()), nil
}
