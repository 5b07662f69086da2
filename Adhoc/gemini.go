package adhoc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type GeminiConfig struct {
	APIKey      string
	Endpoint    string
	TextModel   string
	VisionModel string
	Timeout     time.Duration
}

// GeminiClient answers text prompts and image-grounded prompts.
type GeminiClient struct {
	client *resty.Client
	cfg    GeminiConfig
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = GeminiEndpoint
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultGeminiText
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = defaultGeminiVision
	}
	return &GeminiClient{client: newClient(cfg.Timeout), cfg: cfg}
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string, image *iface.UploadedMedia) (string, error) {
	const op = "gemini.Generate"
	model := c.cfg.TextModel
	parts := []geminiPart{{Text: prompt}}
	if image != nil {
		if len(image.Data) == 0 {
			return "", iface.Errorf(iface.ValidationError, op, "empty image")
		}
		model = c.cfg.VisionModel
		mime := image.ContentType
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(image.Data)
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(image.Data),
		}})
	}

	var out geminiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentTypeJSON).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(geminiRequest{Contents: []geminiContent{{Parts: parts}}}).
		SetResult(&out).
		Post(joinURL(c.cfg.Endpoint, fmt.Sprintf(generateContentPath, model)))
	text, err := geminiText(resp, err, &out)
	observe(providerGemini, err)
	if err != nil {
		return "", iface.Wrap(iface.InferenceError, op, err)
	}
	return text, nil
}

func geminiText(resp *resty.Response, err error, out *geminiResponse) (string, error) {
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(resp)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
