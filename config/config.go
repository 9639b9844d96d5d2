package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mdrelay/downloader"
	"mdrelay/parser"
)

const (
	DefaultListenAddr = ":5000"
	DefaultDir        = "download"
	DefaultAPIBase    = "https://api.mangadex.org/v2"
	DefaultLanguage   = "gb"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:71.0) Gecko/20100101 Firefox/77.0"
)

// Duration is a time.Duration that reads and writes as "30s" in JSON
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var value interface{}
	if err := json.Unmarshal(b, &value); err != nil {
		return err
	}

	switch v := value.(type) {
	case float64:
		// bare numbers are seconds
		*d = Duration(time.Duration(v * float64(time.Second)))
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds every setting of the server
type Config struct {
	ListenAddr     string   `json:"listen_addr"`
	DownloadDir    string   `json:"download_dir"`
	APIBase        string   `json:"api_base"`
	Language       string   `json:"language"`
	UserAgent      string   `json:"user_agent"`
	RequestTimeout Duration `json:"request_timeout"`
	APICalls       int      `json:"api_calls"`
	APIPeriod      Duration `json:"api_period"`
	ImageCalls     int      `json:"image_calls"`
	ImagePeriod    Duration `json:"image_period"`
	BackoffBase    Duration `json:"backoff_base"`
	MaxAttempts    int      `json:"max_attempts"`
	PageRetryDelay Duration `json:"page_retry_delay"`
	MaxConcurrent  int      `json:"max_concurrent"`
	LogFile        string   `json:"log_file"`
	BookmarksFile  string   `json:"bookmarks_file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		DownloadDir:    DefaultDir,
		APIBase:        DefaultAPIBase,
		Language:       DefaultLanguage,
		UserAgent:      DefaultUserAgent,
		RequestTimeout: Duration(30 * time.Second),
		APICalls:       60,
		APIPeriod:      Duration(60 * time.Second),
		ImageCalls:     200,
		ImagePeriod:    Duration(60 * time.Second),
		BackoffBase:    Duration(time.Second),
		MaxAttempts:    3,
		PageRetryDelay: Duration(2 * time.Second),
		MaxConcurrent:  1,
	}
}

// Load reads the config file at path on top of the defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, cfg.Finalize()
	}

	expanded, err := parser.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("cannot expand config path: %w", err)
	}

	file, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] Config file %s not found, using defaults", expanded)
		return cfg, cfg.Finalize()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}
	defer file.Close()

	byteValues, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(byteValues, cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	log.Printf("[Config] Loaded %s", expanded)
	return cfg, cfg.Finalize()
}

// Finalize makes download_dir absolute and validates.
// Call it again after changing settings by hand.
func (c *Config) Finalize() error {
	dir, err := parser.ExpandPath(c.DownloadDir)
	if err != nil {
		return fmt.Errorf("cannot expand download_dir: %w", err)
	}
	if dir != "" {
		dir, err = filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("cannot resolve download_dir: %w", err)
		}
	}
	c.DownloadDir = dir

	return c.Validate()
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return errors.New("listen_addr is required")
	case c.DownloadDir == "":
		return errors.New("download_dir is required")
	case c.APIBase == "":
		return errors.New("api_base is required")
	case !strings.HasPrefix(c.APIBase, "http://") && !strings.HasPrefix(c.APIBase, "https://"):
		return fmt.Errorf("api_base must be an http(s) URL: %s", c.APIBase)
	case c.Language == "":
		return errors.New("language is required")
	case c.UserAgent == "":
		return errors.New("user_agent is required")
	case c.RequestTimeout <= 0:
		return errors.New("request_timeout must be positive")
	case c.APICalls < 0 || c.ImageCalls < 0:
		return errors.New("api_calls and image_calls cannot be negative")
	case c.APIPeriod <= 0 || c.ImagePeriod <= 0:
		return errors.New("api_period and image_period must be positive")
	case c.BackoffBase < 0 || c.PageRetryDelay < 0:
		return errors.New("backoff_base and page_retry_delay cannot be negative")
	case c.MaxAttempts < 1:
		return errors.New("max_attempts must be at least 1")
	case c.MaxConcurrent < 1:
		return errors.New("max_concurrent must be at least 1")
	}
	return nil
}

// ClientConfig returns the outbound client settings
func (c *Config) ClientConfig() downloader.ClientConfig {
	return downloader.ClientConfig{
		UserAgent:      c.UserAgent,
		RequestTimeout: c.RequestTimeout.Std(),
		APICalls:       c.APICalls,
		APIPeriod:      c.APIPeriod.Std(),
		ImageCalls:     c.ImageCalls,
		ImagePeriod:    c.ImagePeriod.Std(),
		BackoffBase:    c.BackoffBase.Std(),
		MaxAttempts:    c.MaxAttempts,
		MaxConcurrent:  c.MaxConcurrent,
	}
}
