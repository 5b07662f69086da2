package adhoc

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
	"github.com/MihirRajeshPanchal/BlitzAI/logger"
)

type roboflowPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type roboflowPrediction struct {
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence"`
	Points     []roboflowPoint `json:"points"`
}

type roboflowResponse struct {
	Predictions []roboflowPrediction `json:"predictions"`
}

// RoboflowClient calls Roboflow hosted models. The model to use comes with
// every call, so one client serves every task.
type RoboflowClient struct {
	client *resty.Client
	apiKey string
}

func NewRoboflowClient(apiKey string, timeout time.Duration) *RoboflowClient {
	return &RoboflowClient{client: newClient(timeout), apiKey: apiKey}
}

// Timeout reports the per-call deadline, zero when calls are unbounded.
func (c *RoboflowClient) Timeout() time.Duration {
	return c.client.GetClient().Timeout
}

func (c *RoboflowClient) Detect(ctx context.Context, media iface.UploadedMedia, params iface.DetectParams) (iface.DetectionSet, error) {
	const op = "roboflow.Detect"
	if params.Confidence <= 0 || params.Confidence > 100 {
		return nil, iface.Errorf(iface.ValidationError, op, "confidence %.2f outside (0,100]", params.Confidence)
	}
	if params.Model.Project == "" || params.Model.Version <= 0 {
		return nil, iface.Errorf(iface.ValidationError, op, "model project/version not configured")
	}
	endpoint := params.Model.Endpoint
	if endpoint == "" {
		endpoint = RoboflowEndpoint
	}
	url := joinURL(endpoint, fmt.Sprintf(roboflowModelPathFmt, params.Model.Project, params.Model.Version))

	var out roboflowResponse
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentTypeForm).
		SetQueryParam("api_key", c.apiKey).
		SetQueryParam("confidence", formatPercent(params.Confidence)).
		SetBody(base64.StdEncoding.EncodeToString(media.Data)).
		SetResult(&out)
	if params.Overlap > 0 {
		req.SetQueryParam("overlap", formatPercent(params.Overlap))
	}

	start := time.Now()
	dets, err := c.collect(req.Post(url))
	observe(providerRoboflow, err)
	if err != nil {
		return nil, iface.Wrap(iface.InferenceError, op, err)
	}
	logger.Log().Debug("roboflow detect",
		zap.String("project", params.Model.Project),
		zap.Int("version", params.Model.Version),
		zap.Int("detections", len(dets)),
		zap.Duration("elapsed", time.Since(start)))
	return dets, nil
}

func (c *RoboflowClient) collect(resp *resty.Response, err error) (iface.DetectionSet, error) {
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}
	out, ok := resp.Result().(*roboflowResponse)
	if !ok || out == nil || out.Predictions == nil {
		return nil, fmt.Errorf("unexpected response body: %.64q", resp.String())
	}
	dets := make(iface.DetectionSet, 0, len(out.Predictions))
	for i, p := range out.Predictions {
		if p.Class == "" || !finite(p.X, p.Y, p.Width, p.Height, p.Confidence) || p.Width < 0 || p.Height < 0 {
			return nil, fmt.Errorf("prediction %d is malformed", i)
		}
		d := iface.Detection{
			Class:      p.Class,
			Confidence: math.Min(math.Max(p.Confidence, 0), 1),
			Box:        iface.Box{CenterX: p.X, CenterY: p.Y, Width: p.Width, Height: p.Height},
		}
		for _, pt := range p.Points {
			d.Points = append(d.Points, iface.Position{X: pt.X, Y: pt.Y})
		}
		dets = append(dets, d)
	}
	return dets, nil
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
