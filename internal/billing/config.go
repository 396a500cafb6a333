package billing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is the dotenv-format file written by the setup wizard.
const ConfigFileName = ".billing-config"

// Config holds the CLI configuration
type Config struct {
	APIURL      string        // Backend base URL, e.g. http://localhost:8000/api
	Brand       string        // Branding shown in the TUI
	Currency    string        // Currency symbol used for display
	Timeout     time.Duration // Per-request timeout, 0 means none
	RateLimit   float64       // Requests per second
	RateBurst   int
	DownloadDir string // Where invoice PDFs are saved
	LogFile     string // Empty discards logs
	LogLevel    string
	MetricsAddr string // Empty disables the metrics listener
	Path        string // Config file that was read, if any
}

// configPaths lists the places a config file is looked up, in order.
func configPaths() []string {
	return []string{
		ConfigFileName,
		filepath.Join("..", ConfigFileName),
		filepath.Join(filepath.Dir(os.Args[0]), ConfigFileName),
		filepath.Join(filepath.Dir(os.Args[0]), "..", ConfigFileName),
	}
}

func findConfigFile() string {
	for _, p := range configPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadConfig reads defaults, the optional config file and the environment, in
// increasing order of precedence.
func LoadConfig() (*Config, error) {
	return loadConfigFrom(findConfigFile())
}

func loadConfigFrom(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("BILLING_API_URL", "http://localhost:8000/api")
	v.SetDefault("BILLING_BRAND", "Pharmacy Billing")
	v.SetDefault("BILLING_CURRENCY", "₹")
	v.SetDefault("BILLING_TIMEOUT", "0s")
	v.SetDefault("BILLING_RATE_LIMIT", 20)
	v.SetDefault("BILLING_RATE_BURST", 10)
	v.SetDefault("BILLING_DOWNLOAD_DIR", ".")
	v.SetDefault("BILLING_LOG_FILE", "")
	v.SetDefault("BILLING_LOG_LEVEL", "info")
	v.SetDefault("BILLING_METRICS_ADDR", "")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	}
	v.AutomaticEnv()

	config := &Config{
		APIURL:      strings.TrimRight(strings.Trim(v.GetString("BILLING_API_URL"), "\"'"), "/"),
		Brand:       v.GetString("BILLING_BRAND"),
		Currency:    v.GetString("BILLING_CURRENCY"),
		Timeout:     v.GetDuration("BILLING_TIMEOUT"),
		RateLimit:   v.GetFloat64("BILLING_RATE_LIMIT"),
		RateBurst:   v.GetInt("BILLING_RATE_BURST"),
		DownloadDir: v.GetString("BILLING_DOWNLOAD_DIR"),
		LogFile:     v.GetString("BILLING_LOG_FILE"),
		LogLevel:    v.GetString("BILLING_LOG_LEVEL"),
		MetricsAddr: v.GetString("BILLING_METRICS_ADDR"),
		Path:        path,
	}

	if config.APIURL == "" {
		return nil, fmt.Errorf("missing required config: BILLING_API_URL")
	}
	if !strings.HasPrefix(config.APIURL, "http://") && !strings.HasPrefix(config.APIURL, "https://") {
		return nil, fmt.Errorf("BILLING_API_URL must start with http:// or https://")
	}
	if config.RateBurst < 1 {
		config.RateBurst = 1
	}

	return config, nil
}

// SaveConfig writes the given keys to path in dotenv format.
func SaveConfig(path string, values map[string]string) error {
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return os.Chmod(path, 0600)
}
