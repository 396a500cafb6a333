package billing

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfigFrom("")
	if err != nil {
		t.Fatalf("loadConfigFrom: %v", err)
	}

	if config.APIURL != "http://localhost:8000/api" {
		t.Errorf("APIURL = %q", config.APIURL)
	}
	if config.Currency != "₹" {
		t.Errorf("Currency = %q", config.Currency)
	}
	if config.Timeout != 0 {
		t.Errorf("Timeout = %v, want none", config.Timeout)
	}
	if config.RateLimit != 20 || config.RateBurst != 10 {
		t.Errorf("rate = %v/%d", config.RateLimit, config.RateBurst)
	}
	if config.Path != "" {
		t.Errorf("Path = %q", config.Path)
	}
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := "BILLING_API_URL=\"http://pharmacy.local/api/\"\nBILLING_BRAND=Corner Chemist\nBILLING_TIMEOUT=5s\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BILLING_BRAND", "From Env")

	config, err := loadConfigFrom(path)
	if err != nil {
		t.Fatalf("loadConfigFrom: %v", err)
	}

	if config.APIURL != "http://pharmacy.local/api" {
		t.Errorf("APIURL = %q, want trailing slash trimmed", config.APIURL)
	}
	if config.Brand != "From Env" {
		t.Errorf("Brand = %q, environment should win over the file", config.Brand)
	}
	if config.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", config.Timeout)
	}
	if config.Path != path {
		t.Errorf("Path = %q", config.Path)
	}
}

func TestLoadConfigRejectsBadURL(t *testing.T) {
	t.Setenv("BILLING_API_URL", "localhost:8000")

	if _, err := loadConfigFrom(""); err == nil {
		t.Fatal("expected an error for a URL without scheme")
	}
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	err := SaveConfig(path, map[string]string{
		"BILLING_API_URL":  "http://10.0.0.5:8000/api",
		"BILLING_BRAND":    "Night Pharmacy",
		"BILLING_CURRENCY": "Rs.",
	})
	if err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	config, err := loadConfigFrom(path)
	if err != nil {
		t.Fatalf("loadConfigFrom: %v", err)
	}
	if config.APIURL != "http://10.0.0.5:8000/api" || config.Brand != "Night Pharmacy" || config.Currency != "Rs." {
		t.Errorf("read back %+v", config)
	}
}
