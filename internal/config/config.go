package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths    Paths         `yaml:"paths"`
	Video    VideoConfig   `yaml:"video"`
	Captions CaptionConfig `yaml:"captions"`
	Scenes   SceneConfig   `yaml:"scenes"`
	Encoder  EncoderConfig `yaml:"encoder"`
	Silence  SilenceConfig `yaml:"silence"`
	Import   ImportConfig  `yaml:"import"`
	Store    StoreConfig   `yaml:"store"`
	Queue    QueueConfig   `yaml:"queue"`
	Server   ServerConfig  `yaml:"server"`
}

// Paths are all derived from OutputDir unless set explicitly.
type Paths struct {
	OutputDir     string `yaml:"output_dir"`
	FramesDir     string `yaml:"frames_dir"`
	UploadsDir    string `yaml:"uploads_dir"`
	ConcatList    string `yaml:"concat_list"`
	Metadata      string `yaml:"metadata"`
	Captions      string `yaml:"captions"`
	AudioInfo     string `yaml:"audio_info"`
	TrimmedAudio  string `yaml:"trimmed_audio"`
	Script        string `yaml:"script"`
	Prompts       string `yaml:"prompts"`
	DefaultOutput string `yaml:"default_output"`
}

type VideoConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type CaptionConfig struct {
	MaxCharsPerBlock int     `yaml:"max_chars_per_block"`
	StepSeconds      float64 `yaml:"step_seconds"`
	// ExactTarget re-derives the step from the actual block count in
	// target-duration mode so the total matches the requested runtime.
	ExactTarget bool `yaml:"exact_target"`
}

type SceneConfig struct {
	DefaultDuration float64 `yaml:"default_duration"`
}

type EncoderConfig struct {
	FFmpeg      string `yaml:"ffmpeg"`
	FFprobe     string `yaml:"ffprobe"`
	VideoCodec  string `yaml:"video_codec"` // "auto" probes for hardware encoders
	Preset      string `yaml:"preset"`
	PixelFormat string `yaml:"pixel_format"`
	AudioCodec  string `yaml:"audio_codec"`
	Quality     int    `yaml:"quality"`
	Threads     int    `yaml:"threads"`
	Progress    bool   `yaml:"progress"`
}

type SilenceConfig struct {
	ThresholdDB float64 `yaml:"threshold_db"`
	MinSilence  float64 `yaml:"min_silence"`
}

type ImportConfig struct {
	DownloadDirs    []string      `yaml:"download_dirs"`
	MaxAge          time.Duration `yaml:"max_age"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
	ImagesPerPrompt int           `yaml:"images_per_prompt"`
	DPI             int           `yaml:"dpi"`
}

type StoreConfig struct {
	Backend         string `yaml:"backend"` // file | mongo
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	ProjectID       string `yaml:"project_id"`
}

type QueueConfig struct {
	Backend    string        `yaml:"backend"` // memory | amqp
	AMQPURL    string        `yaml:"amqp_url"`
	Name       string        `yaml:"name"`
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins lists the browser origins that may call the API.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the stock configuration rooted at outputDir.
func Default(outputDir string) *Config {
	cfg := defaults(outputDir)
	cfg.fillPaths()
	return cfg
}

// defaults leaves the derived paths empty so a YAML output_dir moves them.
func defaults(outputDir string) *Config {
	cfg := &Config{
		Paths: Paths{OutputDir: outputDir},
		Video: VideoConfig{Width: 1920, Height: 1080, FPS: 30},
		Captions: CaptionConfig{
			MaxCharsPerBlock: 400,
			StepSeconds:      40,
		},
		Scenes: SceneConfig{DefaultDuration: 4},
		Encoder: EncoderConfig{
			FFmpeg:      "ffmpeg",
			FFprobe:     "ffprobe",
			VideoCodec:  "libx264",
			Preset:      "medium",
			PixelFormat: "yuv420p",
			AudioCodec:  "aac",
		},
		Silence: SilenceConfig{ThresholdDB: -44, MinSilence: 0.6},
		Import: ImportConfig{
			MaxAge:          30 * time.Minute,
			PollInterval:    2 * time.Second,
			WaitTimeout:     90 * time.Second,
			ImagesPerPrompt: 2,
			DPI:             150,
		},
		Store: StoreConfig{
			Backend:         "file",
			MongoDatabase:   "topic2video",
			MongoCollection: "scene_documents",
			ProjectID:       "default",
		},
		Queue: QueueConfig{
			Backend:    "memory",
			Name:       "image.generation.request",
			AckTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
	}
	cfg.Import.DownloadDirs = defaultDownloadDirs()
	return cfg
}

// Load reads .env (if any), then the YAML file at path over the defaults.
// An empty path yields the defaults rooted at ./output.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env, using process environment")
	}

	outputDir := os.Getenv("TOPIC2VIDEO_OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "output"
	}
	cfg := defaults(outputDir)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the given env files (default .env). A missing file is
// not an error.
func loadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TOPIC2VIDEO_OUTPUT_DIR"); v != "" {
		c.Paths.OutputDir = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.Encoder.FFmpeg = v
	}
	if v := os.Getenv("FFPROBE_PATH"); v != "" {
		c.Encoder.FFprobe = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Store.MongoURI = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.Queue.AMQPURL = v
	}
	if v := os.Getenv("TOPIC2VIDEO_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("WHISK_DOWNLOAD_DIR"); v != "" {
		c.Import.DownloadDirs = append([]string{v}, c.Import.DownloadDirs...)
	}
}

func (c *Config) fillPaths() {
	p := &c.Paths
	if p.OutputDir == "" {
		p.OutputDir = "output"
	}
	set := func(dst *string, name string) {
		if *dst == "" {
			*dst = filepath.Join(p.OutputDir, name)
		}
	}
	set(&p.FramesDir, "frames")
	set(&p.UploadsDir, "uploads")
	set(&p.ConcatList, "concat.txt")
	set(&p.Metadata, "scenes.generated.json")
	set(&p.Captions, "legendas.srt")
	set(&p.AudioInfo, "audio-info.json")
	set(&p.TrimmedAudio, "audio_sem_silencio.mp3")
	set(&p.Script, "roteiro.txt")
	set(&p.Prompts, "prompts.json")
	set(&p.DefaultOutput, "final.mp4")
}

func (c *Config) Validate() error {
	var problems []error
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		problems = append(problems, fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height))
	}
	if c.Video.FPS <= 0 {
		problems = append(problems, fmt.Errorf("fps must be positive, got %d", c.Video.FPS))
	}
	if c.Captions.MaxCharsPerBlock <= 0 {
		problems = append(problems, fmt.Errorf("captions.max_chars_per_block must be positive, got %d", c.Captions.MaxCharsPerBlock))
	}
	if c.Captions.StepSeconds <= 0 {
		problems = append(problems, fmt.Errorf("captions.step_seconds must be positive, got %g", c.Captions.StepSeconds))
	}
	if c.Scenes.DefaultDuration <= 0 {
		problems = append(problems, fmt.Errorf("scenes.default_duration must be positive, got %g", c.Scenes.DefaultDuration))
	}
	if c.Import.PollInterval <= 0 {
		problems = append(problems, errors.New("import.poll_interval must be positive"))
	}
	switch c.Store.Backend {
	case "file", "mongo":
	default:
		problems = append(problems, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	switch c.Queue.Backend {
	case "memory", "amqp":
	default:
		problems = append(problems, fmt.Errorf("unknown queue backend %q", c.Queue.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}

func defaultDownloadDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, "Downloads", "whisk"),
		filepath.Join(home, "Downloads"),
		filepath.Join(home, "Desktop"),
	}
}
