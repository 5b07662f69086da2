// Package gateway is the HTTP front door. Detection routes go through the
// pipeline; the remaining routes forward a single call to a provider.
package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
	"github.com/MihirRajeshPanchal/BlitzAI/logger"
)

// Runner executes a detection task on an upload.
type Runner interface {
	Run(ctx context.Context, upload *iface.UploadedMedia, task iface.TaskKind) (*iface.Artifact, error)
}

type Options struct {
	Runner      Runner
	Generator   iface.Generator
	Transcriber iface.Transcriber
	// ScratchDir receives staged audio; empty means the OS temp dir.
	ScratchDir string
	// MaxUploadBytes caps request bodies; zero disables the cap.
	MaxUploadBytes int64
}

type server struct {
	opts Options
}

// New builds the gin engine with every route registered.
func New(opts Options) *gin.Engine {
	s := &server{opts: opts}
	r := gin.New()
	r.Use(requestID(), accessLog(), recovery(), cors())
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
		r.Use(limitBody(opts.MaxUploadBytes))
	}

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/hello", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "Hello World"})
	})

	r.POST("/yolosegment", s.detect(iface.TaskSegmentation))
	r.POST("/emotiondetection", s.detect(iface.TaskEmotion))

	r.POST("/ocr", s.describe("ocr", ocrPrompt))
	r.POST("/imagecaptioning", s.describe("imagecaptioning", captionPrompt))
	r.POST("/chatbot", s.chatbot)
	r.POST("/receiptgeneration", s.receipt)
	r.POST("/getTranscipt", s.transcript)
	return r
}

func (s *server) detect(task iface.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := readUpload(c, "image")
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		art, err := s.opts.Runner.Run(c.Request.Context(), upload, task)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
		c.Data(http.StatusOK, art.ContentType, art.Bytes)
	}
}

// readUpload loads the multipart file in field. A missing field is a
// ValidationError; an empty filename is left for the pipeline to reject.
func readUpload(c *gin.Context, field string) (*iface.UploadedMedia, error) {
	const op = "gateway.readUpload"
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, iface.Errorf(iface.ValidationError, op, "no %s provided", field)
	}
	data, err := readFileHeader(fh)
	if err != nil {
		return nil, iface.Wrap(iface.ValidationError, op, err)
	}
	return &iface.UploadedMedia{
		Data:        data,
		ContentType: fh.Header.Get("Content-Type"),
		Filename:    fh.Filename,
	}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// fail writes the error envelope and logs the failure with its kind.
func fail(c *gin.Context, status int, err error) {
	logger.With(zap.String("request_id", c.GetString(requestIDKey))).Warn("request failed",
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Stringer("kind", iface.KindOf(err)),
		zap.Error(err))
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
