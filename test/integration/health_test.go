package integration

import (
	"io"
	"net/http"
	"testing"
)

func TestHealthz(t *testing.T) {
	resp := getURL(t, testEnv.MockBackend.URL+"/healthz")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok\n" {
		t.Errorf("body = %q, want %q", body, "ok\n")
	}
}
