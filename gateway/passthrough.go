package gateway

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
	"github.com/MihirRajeshPanchal/BlitzAI/monitor"
	"github.com/MihirRajeshPanchal/BlitzAI/receipt"
	"github.com/MihirRajeshPanchal/BlitzAI/tempres"
)

const (
	ocrPrompt     = "Extract all the text from the image"
	captionPrompt = "Give a short description of what is happening in the image"
)

var (
	chatbotStrip = regexp.MustCompile(`[^a-zA-Z0-9. ]`)
	audioExts    = []string{".mp3", ".wav", ".flac"}
)

func count(route string, err error) {
	monitor.PassthroughRuns.WithLabelValues(route, monitor.Outcome(iface.KindOf(err).String(), err)).Inc()
}

// describe asks the vision model about the uploaded image.
func (s *server) describe(route, prompt string) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := readUpload(c, "image")
		if err == nil {
			var text string
			text, err = s.opts.Generator.Generate(c.Request.Context(), prompt, upload)
			if err == nil {
				count(route, nil)
				c.JSON(http.StatusOK, gin.H{"result": text})
				return
			}
		}
		count(route, err)
		fail(c, http.StatusInternalServerError, err)
	}
}

func (s *server) chatbot(c *gin.Context) {
	const route = "chatbot"
	text, ok := c.GetPostForm("text")
	if !ok {
		err := iface.Errorf(iface.ValidationError, "gateway.chatbot", "no text provided")
		count(route, err)
		fail(c, http.StatusInternalServerError, err)
		return
	}
	out, err := s.opts.Generator.Generate(c.Request.Context(), text, nil)
	count(route, err)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": chatbotStrip.ReplaceAllString(out, "")})
}

func (s *server) receipt(c *gin.Context) {
	const route = "receiptgeneration"
	var req struct {
		Values receipt.Values `json:"values"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		err = iface.Wrap(iface.ValidationError, "gateway.receipt", err)
		count(route, err)
		fail(c, http.StatusInternalServerError, err)
		return
	}
	pdf, err := receipt.Render(req.Values)
	count(route, err)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename="+receipt.Filename)
	c.Data(http.StatusOK, receipt.ContentType, pdf)
}

// transcript stages the audio on disk for the provider and removes it
// once the call returns.
func (s *server) transcript(c *gin.Context) {
	const route = "getTranscipt"
	fh, err := c.FormFile("audio")
	if err != nil {
		err = iface.Errorf(iface.ValidationError, "gateway.transcript", "no audio provided")
		count(route, err)
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ext := audioExt(fh.Filename)
	if ext == "" {
		count(route, iface.Errorf(iface.ValidationError, "gateway.transcript", "bad extension"))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid audio file format"})
		return
	}
	text, err := s.transcribe(c, fh, ext)
	count(route, err)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": text})
}

func (s *server) transcribe(c *gin.Context, fh *multipart.FileHeader, ext string) (string, error) {
	data, err := readFileHeader(fh)
	if err != nil {
		return "", iface.Wrap(iface.ValidationError, "gateway.transcript", err)
	}
	scope := tempres.NewScope(s.opts.ScratchDir)
	defer scope.Close()
	stem := strings.TrimSuffix(filepath.Base(fh.Filename), ext)
	res, err := scope.Stage(sanitizeStem(stem)+"-*"+ext, data)
	if err != nil {
		return "", err
	}
	return s.opts.Transcriber.Transcribe(c.Request.Context(), res.Path())
}

func audioExt(filename string) string {
	for _, ext := range audioExts {
		if strings.HasSuffix(filename, ext) {
			return ext
		}
	}
	return ""
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

func sanitizeStem(stem string) string {
	stem = unsafeName.ReplaceAllString(stem, "_")
	if len(stem) > 64 {
		stem = stem[:64]
	}
	return stem
}
