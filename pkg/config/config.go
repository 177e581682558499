// Package config loads songlake settings from an optional YAML or TOML file,
// environment overrides and an ini-style AWS credentials file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/io/jsonlio"
	"github.com/wdm0006/songlake/pkg/io/parquetio"
	"github.com/wdm0006/songlake/pkg/lake"
	"github.com/wdm0006/songlake/pkg/storage"
)

const DefaultCredentialsFile = "dl.cfg"

// Config holds everything one job run needs. Environment variables override
// file values; secrets are only read from the environment or the credentials
// file.
type Config struct {
	InputRoot  string `yaml:"input_root" toml:"input_root" env:"SONGLAKE_INPUT_ROOT" env-default:"s3a://udacity-dend/"`
	OutputRoot string `yaml:"output_root" toml:"output_root" env:"SONGLAKE_OUTPUT_ROOT" env-default:"output_data/"`
	SongGlob   string `yaml:"song_glob" toml:"song_glob" env:"SONGLAKE_SONG_GLOB" env-default:"song_data/*/*/*/*.json"`
	LogGlob    string `yaml:"log_glob" toml:"log_glob" env:"SONGLAKE_LOG_GLOB" env-default:"log-data/*/*/*.json"`

	// TimeZone is the IANA zone epoch-ms timestamps are interpreted in.
	TimeZone      string `yaml:"time_zone" toml:"time_zone" env:"SONGLAKE_TIME_ZONE" env-default:"UTC"`
	MalformedMode string `yaml:"malformed_mode" toml:"malformed_mode" env:"SONGLAKE_MALFORMED_MODE" env-default:"failfast"`
	Format        string `yaml:"format" toml:"format" env:"SONGLAKE_FORMAT" env-default:"parquet"`
	Compression   string `yaml:"compression" toml:"compression" env:"SONGLAKE_COMPRESSION" env-default:"snappy"`
	Workers       int    `yaml:"workers" toml:"workers" env:"SONGLAKE_WORKERS" env-default:"8"`
	ReportPath    string `yaml:"report_path" toml:"report_path" env:"SONGLAKE_REPORT_PATH"`
	// ReportTopK keeps the most frequent values of each string column in the
	// table profiles; 0 disables frequency counting.
	ReportTopK int `yaml:"report_top_k" toml:"report_top_k" env:"SONGLAKE_REPORT_TOP_K" env-default:"0"`

	AWS AWSConfig `yaml:"aws" toml:"aws"`
	Log LogConfig `yaml:"log" toml:"log"`
}

type AWSConfig struct {
	Region          string `yaml:"region" toml:"region" env:"AWS_REGION" env-default:"us-west-2"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint" env:"SONGLAKE_S3_ENDPOINT"`
	ForcePathStyle  bool   `yaml:"force_path_style" toml:"force_path_style" env:"SONGLAKE_S3_FORCE_PATH_STYLE"`
	MaxRetries      int    `yaml:"max_retries" toml:"max_retries" env:"SONGLAKE_S3_MAX_RETRIES" env-default:"3"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file" env:"SONGLAKE_CREDENTIALS_FILE" env-default:"dl.cfg"`

	AccessKeyID     string `yaml:"-" toml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" toml:"-" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"-" toml:"-" env:"AWS_SESSION_TOKEN"`
}

// S3Options converts the AWS section for storage.Open.
func (a AWSConfig) S3Options() storage.S3Options {
	return storage.S3Options{
		Region:          a.Region,
		Endpoint:        a.Endpoint,
		ForcePathStyle:  a.ForcePathStyle,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
		SessionToken:    a.SessionToken,
		MaxRetries:      a.MaxRetries,
	}
}

// Load reads path (may be empty), applies environment overrides and defaults,
// merges the credentials file and validates the result. A non-empty
// credentials argument names a credentials file that must exist.
func Load(path, credentials string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", apperrors.ErrInvalidConfig, err)
	}

	required := credentials != ""
	if required {
		cfg.AWS.CredentialsFile = credentials
	} else if cfg.AWS.CredentialsFile != DefaultCredentialsFile {
		required = cfg.AWS.CredentialsFile != ""
	}
	if cfg.AWS.CredentialsFile != "" {
		if err := cfg.AWS.loadCredentials(cfg.AWS.CredentialsFile, required); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	case ".toml":
		err = toml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("%w: unknown config extension %q", apperrors.ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidConfig, path, err)
	}
	return nil
}

// Validate checks every enumerated setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := storage.ParseURI(c.InputRoot); err != nil {
		errs = append(errs, fmt.Errorf("input_root: %w", err))
	}
	if _, err := storage.ParseURI(c.OutputRoot); err != nil {
		errs = append(errs, fmt.Errorf("output_root: %w", err))
	}
	if c.SongGlob == "" || c.LogGlob == "" {
		errs = append(errs, errors.New("song_glob and log_glob are required"))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("time_zone: %v", err))
	}
	if _, err := jsonlio.ParseMode(c.MalformedMode); err != nil {
		errs = append(errs, fmt.Errorf("malformed_mode: %v", err))
	}
	f, err := lake.ParseFormat(c.Format)
	if err != nil {
		errs = append(errs, fmt.Errorf("format: %v", err))
	} else if f == lake.FormatParquet {
		if _, err := parquetio.ParseCompression(c.Compression); err != nil {
			errs = append(errs, fmt.Errorf("compression: %v", err))
		}
	} else if comp := strings.ToLower(c.Compression); comp != "" && comp != "gzip" && comp != "none" && comp != "uncompressed" && comp != "snappy" {
		// jsonl parts are either gzipped or plain; snappy means plain
		errs = append(errs, fmt.Errorf("compression %q is not available for jsonl", comp))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.ReportTopK < 0 {
		errs = append(errs, fmt.Errorf("report_top_k must not be negative, got %d", c.ReportTopK))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
