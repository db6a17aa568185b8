package connection

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"127.0.0.1:9102", "http://127.0.0.1:9102"},
		{"http://node-1:9102/", "http://node-1:9102"},
		{"https://node-1", "https://node-1"},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			if got := NewHTTPClient(tt.server, 0).BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.UserAgent(), "cidmesh-node/") {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		switch r.URL.Path {
		case "/v1/status":
			io.WriteString(w, `{"node_id":4}`)
		case "/readyz":
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"status":"starting"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)

	var status struct {
		NodeID int `json:"node_id"`
	}
	if err := c.GetJSON(context.Background(), "/v1/status", &status); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if status.NodeID != 4 {
		t.Errorf("node_id = %d, want 4", status.NodeID)
	}

	err := c.GetJSON(context.Background(), "/readyz", nil)
	if err == nil || !strings.Contains(err.Error(), "503: starting") {
		t.Errorf("GetJSON(/readyz) error = %v, want status 503 with message", err)
	}

	err = c.GetJSON(context.Background(), "/missing", nil)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("GetJSON(/missing) error = %v, want 404", err)
	}
}
