package mockbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOverlapScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		doc   string
		want  float64
	}{
		{"full match", "capital of germany", "The capital of Germany is Berlin", 1},
		{"partial match", "capital of germany", "capital of france", 2.0 / 3.0},
		{"no match", "capital", "berlin", 0},
		{"empty query", "", "anything", 0},
		{"repeated query words", "berlin berlin", "berlin", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverlapScore(tt.query, tt.doc); got != tt.want {
				t.Errorf("OverlapScore(%q, %q) = %v, want %v", tt.query, tt.doc, got, tt.want)
			}
		})
	}
}

func TestChatRequiresBearer(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(`{"model":"deepseek-v3"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCloudAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	tests := []struct {
		name     string
		auth     string
		action   string
		wantCode string
	}{
		{"unsigned", "", "RunRerank", "AuthFailure.SignatureFailure"},
		{"unknown action", "TC3-HMAC-SHA256 Credential=AKIDx", "GetEmbedding", "InvalidAction"},
		{"unknown model", "TC3-HMAC-SHA256 Credential=AKIDx", "RunRerank", "InvalidParameterValue.Model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/", strings.NewReader(`{"Query":"q","Docs":["d"],"Model":"other"}`))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			req.Header.Set("X-TC-Action", tt.action)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()

			var body struct {
				Response struct {
					Error struct {
						Code string `json:"Code"`
					} `json:"Error"`
				} `json:"Response"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if body.Response.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Response.Error.Code, tt.wantCode)
			}
		})
	}
}
