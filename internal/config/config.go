// Package config loads docflip settings from defaults, an optional YAML
// file, .env files and DOCFLIP_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	yaml "gopkg.in/yaml.v3"

	"github.com/nicholasgasior/docflip-go"
)

// Config is the complete runtime configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Conversion ConversionConfig `yaml:"conversion"`
	Tools      ToolsConfig      `yaml:"tools"`
	OCR        OCRConfig        `yaml:"ocr"`
	Log        LogConfig        `yaml:"log"`
}

// StorageConfig controls where uploads and artifacts live.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// ServerConfig controls the HTTP front end.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	MaxUploadBytes int64    `yaml:"maxUploadBytes"`
	CORSOrigins    []string `yaml:"corsOrigins"`
}

// ConversionConfig controls the fallback chains.
type ConversionConfig struct {
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
	Placeholder    string        `yaml:"placeholder"`
	// Extraction and Synthesis restrict and reorder the built-in backends.
	// Empty keeps the default order.
	Extraction []string `yaml:"extraction"`
	Synthesis  []string `yaml:"synthesis"`
}

// ToolsConfig names external binaries. Empty means look up PATH.
type ToolsConfig struct {
	Soffice   string `yaml:"soffice"`
	Pdftotext string `yaml:"pdftotext"`
}

// OCRConfig configures the Tesseract backend.
type OCRConfig struct {
	Languages []string `yaml:"languages"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Root: "uploads"},
		Server: ServerConfig{
			Addr:           ":5000",
			MaxUploadBytes: 32 << 20,
			CORSOrigins:    []string{"*"},
		},
		Conversion: ConversionConfig{
			AttemptTimeout: 2 * time.Minute,
			Placeholder:    docflip.DefaultPlaceholder,
		},
		OCR: OCRConfig{Languages: []string{"eng"}},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// Load builds the configuration. path may be empty; envFiles default to
// ".env" and missing files are ignored. Variables already present in the
// environment win over .env entries.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays DOCFLIP_* variables. PORT replaces only the port of
// Server.Addr, the way hosting platforms expect.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}

	str("DOCFLIP_STORAGE_ROOT", &c.Storage.Root)
	str("DOCFLIP_ADDR", &c.Server.Addr)
	list("DOCFLIP_CORS_ORIGINS", &c.Server.CORSOrigins)
	str("DOCFLIP_PLACEHOLDER", &c.Conversion.Placeholder)
	list("DOCFLIP_EXTRACTION_BACKENDS", &c.Conversion.Extraction)
	list("DOCFLIP_SYNTHESIS_BACKENDS", &c.Conversion.Synthesis)
	str("DOCFLIP_SOFFICE", &c.Tools.Soffice)
	str("DOCFLIP_PDFTOTEXT", &c.Tools.Pdftotext)
	list("DOCFLIP_OCR_LANGUAGES", &c.OCR.Languages)
	str("DOCFLIP_LOG_LEVEL", &c.Log.Level)
	str("DOCFLIP_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("DOCFLIP_MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("DOCFLIP_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Server.MaxUploadBytes = n
	}
	if v, ok := lookup("DOCFLIP_ATTEMPT_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DOCFLIP_ATTEMPT_TIMEOUT: %w", err)
		}
		c.Conversion.AttemptTimeout = d
	}
	if port, ok := lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		host, _, err := net.SplitHostPort(c.Server.Addr)
		if err != nil {
			host = ""
		}
		c.Server.Addr = net.JoinHostPort(host, strings.TrimSpace(port))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var languagePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Storage),
		validation.Field(&c.Server),
		validation.Field(&c.Conversion),
		validation.Field(&c.OCR),
		validation.Field(&c.Log),
	)
}

func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Root, validation.Required),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required, validation.By(hostPort)),
		validation.Field(&s.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
	)
}

func (c ConversionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AttemptTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Extraction, validation.By(noDuplicates),
			validation.Each(validation.In(names(docflip.Extraction)...))),
		validation.Field(&c.Synthesis, validation.By(noDuplicates),
			validation.Each(validation.In(names(docflip.Synthesis)...))),
	)
}

func (o OCRConfig) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Languages, validation.Each(validation.Match(languagePattern))),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "warning", "error")),
		validation.Field(&l.Format, validation.In("auto", "console", "json")),
	)
}

func hostPort(value interface{}) error {
	addr, _ := value.(string)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.New("must be host:port")
	}
	return nil
}

func noDuplicates(value interface{}) error {
	list, _ := value.([]string)
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if seen[s] {
			return fmt.Errorf("lists %q twice", s)
		}
		seen[s] = true
	}
	return nil
}

func names(d docflip.Direction) []interface{} {
	builtin := docflip.BuiltinBackends(d)
	out := make([]interface{}, len(builtin))
	for i, n := range builtin {
		out[i] = n
	}
	return out
}

// EngineOptions translates the conversion settings into engine options.
func (c *Config) EngineOptions(logger zerolog.Logger) []docflip.Option {
	opts := []docflip.Option{
		docflip.WithLogger(logger),
		docflip.WithAttemptTimeout(c.Conversion.AttemptTimeout),
		docflip.WithPlaceholder(c.Conversion.Placeholder),
		docflip.WithSofficePath(c.Tools.Soffice),
		docflip.WithPdftotextPath(c.Tools.Pdftotext),
		docflip.WithOCRLanguages(c.OCR.Languages...),
	}
	if len(c.Conversion.Extraction) > 0 {
		opts = append(opts, docflip.WithBackendOrder(docflip.Extraction, c.Conversion.Extraction...))
	}
	if len(c.Conversion.Synthesis) > 0 {
		opts = append(opts, docflip.WithBackendOrder(docflip.Synthesis, c.Conversion.Synthesis...))
	}
	return opts
}
