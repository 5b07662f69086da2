// Package pipeline turns an upload into an annotated image: it stages the
// upload, decodes it, asks the detector for predictions, draws them and
// encodes the result. Every staged resource is released before Run returns.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MihirRajeshPanchal/BlitzAI/config"
	"github.com/MihirRajeshPanchal/BlitzAI/engine"
	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
	"github.com/MihirRajeshPanchal/BlitzAI/logger"
	"github.com/MihirRajeshPanchal/BlitzAI/monitor"
	"github.com/MihirRajeshPanchal/BlitzAI/tempres"
)

// Task is the resolved configuration for one TaskKind.
type Task struct {
	Params iface.DetectParams
	Mode   engine.Mode
	Format engine.Format
	Styles *engine.StyleSet
	// Filename may contain config.StemPlaceholder.
	Filename string
}

// OutputName resolves the download name for an upload.
func (t Task) OutputName(m *iface.UploadedMedia) string {
	name := t.Filename
	if name == "" {
		name = config.StemPlaceholder + "_annotated" + t.Format.Ext()
	}
	stem := m.Stem()
	if stem == "" {
		stem = "upload"
	}
	return strings.ReplaceAll(name, config.StemPlaceholder, stem)
}

// TasksFromConfig resolves every configured task.
func TasksFromConfig(tasks map[string]config.TaskConfig) (map[iface.TaskKind]Task, error) {
	out := make(map[iface.TaskKind]Task, len(tasks))
	for name, tc := range tasks {
		kind := iface.TaskKind(name)
		mode, err := engine.ParseMode(tc.Mode)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		format, err := engine.ParseFormat(tc.Format)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		styles, err := tc.Styles(kind)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		out[kind] = Task{
			Params:   tc.Params(),
			Mode:     mode,
			Format:   format,
			Styles:   styles,
			Filename: tc.Filename,
		}
	}
	return out, nil
}

// Controller is shared by all requests; it holds no per-request state.
type Controller struct {
	detector   iface.Detector
	tasks      map[iface.TaskKind]Task
	scratchDir string
}

func NewController(detector iface.Detector, tasks map[iface.TaskKind]Task, scratchDir string) *Controller {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Controller{detector: detector, tasks: tasks, scratchDir: scratchDir}
}

// Tasks lists the configured task kinds in name order.
func (c *Controller) Tasks() []iface.TaskKind {
	kinds := make([]iface.TaskKind, 0, len(c.tasks))
	for k := range c.tasks {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (c *Controller) Run(ctx context.Context, upload *iface.UploadedMedia, kind iface.TaskKind) (art *iface.Artifact, err error) {
	const op = "pipeline.Run"
	started := time.Now()
	log := logger.With(zap.String("task", string(kind)))
	defer func() {
		monitor.PipelineRuns.WithLabelValues(string(kind), monitor.Outcome(iface.KindOf(err).String(), err)).Inc()
		if err != nil {
			log.Warn("pipeline failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
			return
		}
		log.Info("pipeline done",
			zap.String("filename", art.Filename),
			zap.Int("bytes", len(art.Bytes)),
			zap.Duration("elapsed", time.Since(started)))
	}()

	task, ok := c.tasks[kind]
	switch {
	case !ok:
		return nil, iface.Errorf(iface.ValidationError, op, "unknown task %q", kind)
	case upload == nil:
		return nil, iface.Errorf(iface.ValidationError, op, "no image provided")
	case upload.Filename == "":
		return nil, iface.Errorf(iface.ValidationError, op, "no selected file")
	case len(upload.Data) == 0:
		return nil, iface.Errorf(iface.ValidationError, op, "empty upload")
	}

	scope := tempres.NewScope(c.scratchDir)
	log = log.With(zap.String("run", scope.ID()))
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			log.Error("release temp resources", zap.Error(cerr))
		}
	}()

	stage := time.Now()
	staged, err := scope.Stage("upload-*"+safeExt(upload.Filename), upload.Data)
	if err != nil {
		return nil, err
	}
	img, err := engine.ReadFile(staged.Path())
	if err != nil {
		return nil, err
	}
	defer img.Close()
	monitor.ObserveStage(string(kind), "decode", stage)

	if err := ctx.Err(); err != nil {
		return nil, iface.Wrap(iface.InferenceError, op, err)
	}

	stage = time.Now()
	dets, err := c.detector.Detect(ctx, *upload, task.Params)
	if err != nil {
		return nil, err
	}
	monitor.ObserveStage(string(kind), "detect", stage)
	log.Debug("detections", zap.Int("count", len(dets)))

	stage = time.Now()
	annotated, err := engine.Annotate(img, dets, task.Styles, task.Mode)
	if err != nil {
		return nil, err
	}
	defer annotated.Close()
	monitor.ObserveStage(string(kind), "annotate", stage)

	stage = time.Now()
	out, err := engine.Encode(annotated, task.Format)
	if err != nil {
		return nil, err
	}
	monitor.ObserveStage(string(kind), "encode", stage)

	return &iface.Artifact{
		Bytes:       out,
		ContentType: task.Format.ContentType(),
		Filename:    task.OutputName(upload),
	}, nil
}

// safeExt keeps a short alphanumeric extension so decoders can sniff by name.
func safeExt(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || len(filename)-i > 6 {
		return ""
	}
	ext := filename[i:]
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
