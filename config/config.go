// Package config loads service settings from defaults, an optional YAML file,
// a .env file and COACH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "COACH"

type Service struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Models struct {
	Body         Service       `mapstructure:"body"`
	Sentiment    Service       `mapstructure:"sentiment"`
	ASR          Service       `mapstructure:"asr"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type Server struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Camera struct {
	Driver        string `mapstructure:"driver"` // ffmpeg, replay or none
	Command       string `mapstructure:"command"`
	InputFormat   string `mapstructure:"input_format"`
	Device        string `mapstructure:"device"`
	Width         int    `mapstructure:"width"`
	Height        int    `mapstructure:"height"`
	FPS           int    `mapstructure:"fps"`
	Mirror        bool   `mapstructure:"mirror"`
	ReplayDir     string `mapstructure:"replay_dir"`
	MaxFrameBytes int    `mapstructure:"max_frame_bytes"`
}

type Session struct {
	BodyWindow         int           `mapstructure:"body_window"`
	VoiceWindow        int           `mapstructure:"voice_window"`
	FrameWindow        int           `mapstructure:"frame_window"`
	FrameTimeout       time.Duration `mapstructure:"frame_timeout"`
	TextTimeout        time.Duration `mapstructure:"text_timeout"`
	MaxCaptureFailures int           `mapstructure:"max_capture_failures"`
	LiveInterval       time.Duration `mapstructure:"live_interval"`
}

type Reports struct {
	Dir         string        `mapstructure:"dir"`
	DatabaseURL string        `mapstructure:"database_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type Root struct {
	Server  Server  `mapstructure:"server"`
	Log     Log     `mapstructure:"log"`
	Models  Models  `mapstructure:"models"`
	Camera  Camera  `mapstructure:"camera"`
	Session Session `mapstructure:"session"`
	Reports Reports `mapstructure:"reports"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("models.body.url", "")
	v.SetDefault("models.body.timeout", "2s")
	v.SetDefault("models.sentiment.url", "")
	v.SetDefault("models.sentiment.timeout", "5s")
	v.SetDefault("models.asr.url", "")
	v.SetDefault("models.asr.timeout", "60s")
	v.SetDefault("models.probe_timeout", "10s")

	v.SetDefault("camera.driver", "ffmpeg")
	v.SetDefault("camera.command", "ffmpeg")
	v.SetDefault("camera.input_format", "v4l2")
	v.SetDefault("camera.device", "/dev/video0")
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.fps", 15)
	v.SetDefault("camera.mirror", true)
	v.SetDefault("camera.replay_dir", "")
	v.SetDefault("camera.max_frame_bytes", 8<<20)

	v.SetDefault("session.body_window", 100)
	v.SetDefault("session.voice_window", 50)
	v.SetDefault("session.frame_window", 30)
	v.SetDefault("session.frame_timeout", "2s")
	v.SetDefault("session.text_timeout", "5s")
	v.SetDefault("session.max_capture_failures", 30)
	v.SetDefault("session.live_interval", "1s")

	v.SetDefault("reports.dir", "")
	v.SetDefault("reports.database_url", "")
	v.SetDefault("reports.timeout", "5s")
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"log-level": "log.level",
}

// Load builds the effective configuration. path may be empty, in which case
// ./config.yaml and config/<CONFIG_ENV>/config.yaml are tried. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Root, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path == "" {
		path = guessConfigFile(".")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	root, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return root, v, nil
}

func guessConfigFile(base string) string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config", env, "config.yaml"),
	}
	for _, p := range guess {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func decode(v *viper.Viper) (*Root, error) {
	var root Root
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := root.Validate(); err != nil {
		return nil, err
	}
	return &root, nil
}

func (r *Root) Validate() error {
	if _, err := logrus.ParseLevel(r.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch r.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", r.Log.Format)
	}
	switch r.Camera.Driver {
	case "ffmpeg", "none":
	case "replay":
		if r.Camera.ReplayDir == "" {
			return errors.New("camera.replay_dir is required for the replay driver")
		}
	default:
		return fmt.Errorf("camera.driver: unknown driver %q", r.Camera.Driver)
	}
	if r.Session.BodyWindow < 1 || r.Session.VoiceWindow < 1 || r.Session.FrameWindow < 1 {
		return errors.New("session windows must be at least 1")
	}
	return nil
}

// Watch re-decodes the file on every change and hands valid results to apply.
// It does nothing when no config file was read.
func Watch(v *viper.Viper, log logrus.FieldLogger, apply func(*Root)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		root, err := decode(v)
		if err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("ignoring invalid config change")
			return
		}
		log.WithField("file", e.Name).Info("config reloaded")
		apply(root)
	})
	v.WatchConfig()
}

// Dump writes the effective settings as YAML.
func Dump(w io.Writer, v *viper.Viper) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v.AllSettings()); err != nil {
		return err
	}
	return enc.Close()
}
