package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	adhoc "github.com/MihirRajeshPanchal/BlitzAI/Adhoc"
	"github.com/MihirRajeshPanchal/BlitzAI/engine"
	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

const (
	EnvRoboflowKey = "ROBOFLOW_KEY"
	EnvGeminiKey   = "GEMINI_KEY"
	EnvOpenAIKey   = "OPENAI_KEY"
	EnvHTTPPort    = "BLITZ_HTTP_PORT"

	// StemPlaceholder in a task filename is replaced by the upload's stem.
	StemPlaceholder = "{stem}"
)

type Config struct {
	HTTPPort  int `yaml:"HTTPPort"`
	RPCPort   int `yaml:"RPCPort"`
	AdhocPort int `yaml:"AdhocPort"`
	// WorkersNum bounds concurrent pipeline runs started over gRPC.
	WorkersNum int `yaml:"workersNum"`
	// AllowRemoteShutdown enables the gRPC Shutdown call.
	AllowRemoteShutdown bool `yaml:"allowRemoteShutdown"`

	LogMode  string `yaml:"logMode"`
	LogLevel string `yaml:"logLevel"`

	// ScratchDir holds staged uploads; empty means the OS temp dir.
	ScratchDir string `yaml:"scratchDir"`
	// ProviderTimeout bounds each outbound call; zero leaves calls unbounded.
	ProviderTimeout time.Duration `yaml:"providerTimeout"`
	MaxUploadMB     int           `yaml:"maxUploadMB"`

	Roboflow RoboflowConfig        `yaml:"roboflow"`
	Gemini   GeminiConfig          `yaml:"gemini"`
	OpenAI   OpenAIConfig          `yaml:"openai"`
	Tasks    map[string]TaskConfig `yaml:"tasks"`

	Keys Keys `yaml:"-"`
}

// Keys are read from the environment (and .env) only, never from YAML.
type Keys struct {
	Roboflow string
	Gemini   string
	OpenAI   string
}

type RoboflowConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type GeminiConfig struct {
	Endpoint    string `yaml:"endpoint"`
	TextModel   string `yaml:"textModel"`
	VisionModel string `yaml:"visionModel"`
}

type OpenAIConfig struct {
	Endpoint     string `yaml:"endpoint"`
	WhisperModel string `yaml:"whisperModel"`
}

type TaskConfig struct {
	Project    string  `yaml:"project"`
	Version    int     `yaml:"version"`
	Endpoint   string  `yaml:"endpoint"`
	Confidence float64 `yaml:"confidence"`
	Overlap    float64 `yaml:"overlap"`
	Mode       string  `yaml:"mode"`
	Format     string  `yaml:"format"`
	Filename   string  `yaml:"filename"`
	// Palette maps class names to "#RRGGBB"; empty keeps the built-in palette.
	Palette  map[string]string `yaml:"palette"`
	Fallback string            `yaml:"fallback"`
}

func Default() *Config {
	return &Config{
		HTTPPort:    5000,
		RPCPort:     50051,
		AdhocPort:   9100,
		WorkersNum:  runtime.NumCPU(),
		LogMode:     "production",
		LogLevel:    "info",
		MaxUploadMB: 32,
		Roboflow:    RoboflowConfig{Endpoint: adhoc.RoboflowEndpoint},
		Gemini:      GeminiConfig{Endpoint: adhoc.GeminiEndpoint},
		OpenAI:      OpenAIConfig{Endpoint: adhoc.OpenAIEndpoint},
		Tasks:       DefaultTasks(),
	}
}

func DefaultTasks() map[string]TaskConfig {
	return map[string]TaskConfig{
		string(iface.TaskSegmentation): {
			Project:    "coco-dataset-vdnr1",
			Version:    11,
			Endpoint:   adhoc.RoboflowOutlineURL,
			Confidence: 40,
			Mode:       engine.ModeMaskLabel.String(),
			Format:     string(engine.FormatPNG),
			Filename:   StemPlaceholder + "_annotated.png",
		},
		string(iface.TaskEmotion): {
			Project:    "emotion1-cso6k",
			Version:    1,
			Confidence: 40,
			Overlap:    30,
			Mode:       engine.ModeBoxLabel.String(),
			Format:     string(engine.FormatJPEG),
			Filename:   "emotion_detection_prediction.jpg",
		},
	}
}

// Load reads path over the defaults, then .env and the environment. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Keys = Keys{
		Roboflow: os.Getenv(EnvRoboflowKey),
		Gemini:   os.Getenv(EnvGeminiKey),
		OpenAI:   os.Getenv(EnvOpenAIKey),
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHTTPPort, err)
		}
		c.HTTPPort = port
	}
	return nil
}

// fillDefaults completes partially specified sections. A task named in the
// file replaces the default entry wholesale, so its empty fields are
// restored from the default of the same name.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Roboflow.Endpoint == "" {
		c.Roboflow.Endpoint = def.Roboflow.Endpoint
	}
	if c.Gemini.Endpoint == "" {
		c.Gemini.Endpoint = def.Gemini.Endpoint
	}
	if c.OpenAI.Endpoint == "" {
		c.OpenAI.Endpoint = def.OpenAI.Endpoint
	}
	if c.WorkersNum <= 0 {
		c.WorkersNum = 1
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = def.MaxUploadMB
	}
	if c.Tasks == nil {
		c.Tasks = map[string]TaskConfig{}
	}
	for name, d := range def.Tasks {
		t, ok := c.Tasks[name]
		if !ok {
			c.Tasks[name] = d
			continue
		}
		if t.Project == "" {
			t.Project = d.Project
		}
		if t.Version == 0 {
			t.Version = d.Version
		}
		if t.Endpoint == "" {
			t.Endpoint = d.Endpoint
		}
		if t.Confidence == 0 {
			t.Confidence = d.Confidence
		}
		if t.Overlap == 0 {
			t.Overlap = d.Overlap
		}
		if t.Mode == "" {
			t.Mode = d.Mode
		}
		if t.Format == "" {
			t.Format = d.Format
		}
		if t.Filename == "" {
			t.Filename = d.Filename
		}
		c.Tasks[name] = t
	}
	for name, t := range c.Tasks {
		if t.Endpoint == "" {
			t.Endpoint = c.Roboflow.Endpoint
			c.Tasks[name] = t
		}
	}
}

func (c *Config) Validate() error {
	for _, p := range []struct {
		name string
		v    int
	}{{"HTTPPort", c.HTTPPort}, {"RPCPort", c.RPCPort}, {"AdhocPort", c.AdhocPort}} {
		if p.v < 0 || p.v > 65535 {
			return fmt.Errorf("config: %s %d out of range", p.name, p.v)
		}
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("config: providerTimeout must not be negative")
	}
	for name, t := range c.Tasks {
		if t.Confidence <= 0 || t.Confidence > 100 {
			return fmt.Errorf("config: task %s confidence %.2f outside (0,100]", name, t.Confidence)
		}
		if t.Overlap < 0 || t.Overlap > 100 {
			return fmt.Errorf("config: task %s overlap %.2f outside [0,100]", name, t.Overlap)
		}
		if _, err := engine.ParseMode(t.Mode); err != nil {
			return fmt.Errorf("config: task %s: %w", name, err)
		}
		if _, err := engine.ParseFormat(t.Format); err != nil {
			return fmt.Errorf("config: task %s: %w", name, err)
		}
		if _, err := t.Styles(iface.TaskKind(name)); err != nil {
			return fmt.Errorf("config: task %s: %w", name, err)
		}
	}
	return nil
}

// Styles builds the task's StyleSet. Without a palette the built-in one for
// the task kind is used.
func (t TaskConfig) Styles(kind iface.TaskKind) (*engine.StyleSet, error) {
	if len(t.Palette) == 0 && t.Fallback == "" {
		switch kind {
		case iface.TaskEmotion:
			return engine.EmotionStyles(), nil
		case iface.TaskSegmentation:
			return engine.SegmentationStyles(), nil
		}
	}
	fallback := engine.Style{Color: engine.White}
	if t.Fallback != "" {
		c, err := engine.ParseColor(t.Fallback)
		if err != nil {
			return nil, err
		}
		fallback.Color = c
	}
	rules := make(map[string]engine.Style, len(t.Palette))
	for class, hex := range t.Palette {
		c, err := engine.ParseColor(hex)
		if err != nil {
			return nil, err
		}
		rules[class] = engine.Style{Color: c}
	}
	return engine.NewStyleSet(fallback, rules), nil
}

func (t TaskConfig) Params() iface.DetectParams {
	return iface.DetectParams{
		Model:      iface.ModelRef{Endpoint: t.Endpoint, Project: t.Project, Version: t.Version},
		Confidence: t.Confidence,
		Overlap:    t.Overlap,
	}
}
