package billing

import (
	"strconv"
	"testing"

	"github.com/mikelcalvo/billing-cli/internal/billingtest"
)

// newTestClient starts a fake backend and returns a client pointed at it.
func newTestClient(t *testing.T) (*billingtest.Server, *Client) {
	t.Helper()
	backend, apiURL := startBackend(t)
	client := NewClient(&Config{
		APIURL:      apiURL,
		Brand:       "Test Pharmacy",
		Currency:    "₹",
		DownloadDir: t.TempDir(),
	})
	return backend, client
}

func startBackend(t *testing.T) (*billingtest.Server, string) {
	t.Helper()
	return billingtest.Start(t)
}

func itoa(n int) string { return strconv.Itoa(n) }
