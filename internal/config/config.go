package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	Port               string
	CORSAllowedOrigins []string

	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierTimeout time.Duration

	PipelineTimeout time.Duration

	AuthJWTSecret string
	AuthIssuer    string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	ConfigFile string

	Download DownloadConfig
	Segment  SegmentConfig
}

// DownloadConfig names the downloader binaries tried in order.
type DownloadConfig struct {
	Primary        string  `yaml:"primary"`
	Secondary      string  `yaml:"secondary"`
	SectionSeconds float64 `yaml:"section_seconds"`
}

// SegmentConfig controls the window handed to the classifier.
type SegmentConfig struct {
	StartTime float64 `yaml:"start_time"`
	Duration  float64 `yaml:"duration"`
	FFmpeg    string  `yaml:"ffmpeg"`
	FFprobe   string  `yaml:"ffprobe"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		Port:                     os.Getenv("PORT"),
		CORSAllowedOrigins:       ParseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		ClassifierURL:            os.Getenv("CLASSIFIER_URL"),
		ClassifierAPIKey:         os.Getenv("CLASSIFIER_API_KEY"),
		AuthJWTSecret:            os.Getenv("AUTH_JWT_SECRET"),
		AuthIssuer:               os.Getenv("AUTH_ISSUER"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		ConfigFile:               os.Getenv("CONFIG_FILE"),
	}

	var err error
	if cfg.ClassifierTimeout, err = parseDuration("CLASSIFIER_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.PipelineTimeout, err = parseDuration("PIPELINE_TIMEOUT"); err != nil {
		return nil, err
	}

	if cfg.ConfigFile == "" {
		cfg.ConfigFile = "config.yaml"
	}

	// Load from YAML file if available
	if err := cfg.LoadFromYAML(cfg.ConfigFile); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "voxsense-api"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "5005"
	}
	if cfg.ClassifierTimeout == 0 {
		cfg.ClassifierTimeout = 60 * time.Second
	}
	if cfg.PipelineTimeout == 0 {
		cfg.PipelineTimeout = 2 * time.Minute
	}

	cfg.SetDownloadDefaults()
	cfg.SetSegmentDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Download DownloadConfig `yaml:"download"`
		Segment  SegmentConfig  `yaml:"segment"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlConfig.Download.Primary != "" {
		c.Download.Primary = yamlConfig.Download.Primary
	}
	if yamlConfig.Download.Secondary != "" {
		c.Download.Secondary = yamlConfig.Download.Secondary
	}
	if yamlConfig.Download.SectionSeconds > 0 {
		c.Download.SectionSeconds = yamlConfig.Download.SectionSeconds
	}

	if yamlConfig.Segment.StartTime > 0 {
		c.Segment.StartTime = yamlConfig.Segment.StartTime
	}
	if yamlConfig.Segment.Duration > 0 {
		c.Segment.Duration = yamlConfig.Segment.Duration
	}
	if yamlConfig.Segment.FFmpeg != "" {
		c.Segment.FFmpeg = yamlConfig.Segment.FFmpeg
	}
	if yamlConfig.Segment.FFprobe != "" {
		c.Segment.FFprobe = yamlConfig.Segment.FFprobe
	}

	return nil
}

func (c *Config) SetDownloadDefaults() {
	if c.Download.Primary == "" {
		c.Download.Primary = "yt-dlp"
	}
	if c.Download.Secondary == "" {
		c.Download.Secondary = "youtube-dl"
	}
	if c.Download.SectionSeconds == 0 {
		c.Download.SectionSeconds = 10
	}
}

func (c *Config) SetSegmentDefaults() {
	if c.Segment.Duration == 0 {
		c.Segment.Duration = 10
	}
	if c.Segment.FFmpeg == "" {
		c.Segment.FFmpeg = "ffmpeg"
	}
	if c.Segment.FFprobe == "" {
		c.Segment.FFprobe = "ffprobe"
	}
}

// OTLPHeaders parses OTEL_EXPORTER_OTLP_HEADERS ("k1=v1,k2=v2").
func (c *Config) OTLPHeaders() map[string]string {
	if strings.TrimSpace(c.OtelExporterOTLPHeaders) == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.OtelExporterOTLPHeaders, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

// AuthEnabled reports whether /analyze requires a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != ""
}

// ParseOrigins splits a comma-separated origin list, defaulting to "*".
func ParseOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func parseDuration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (c *Config) validate() error {
	if c.Segment.StartTime < 0 {
		return fmt.Errorf("segment.start_time must not be negative")
	}
	if c.Segment.Duration <= 0 {
		return fmt.Errorf("segment.duration must be positive")
	}
	if c.Download.Primary == c.Download.Secondary {
		return fmt.Errorf("download.primary and download.secondary must differ")
	}
	if c.AuthIssuer != "" && c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_ISSUER is set")
	}
	return nil
}
