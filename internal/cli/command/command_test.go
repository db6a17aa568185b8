package command

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/cidmesh-go/internal/server/httpserver/handler"
)

// runApp runs the application with args and returns what it printed.
func runApp(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	app := App()
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.RunContext(ctx, append([]string{"cidmesh-node"}, args...))
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// newAdminServer serves canned admin API responses.
func newAdminServer(t *testing.T) *httptest.Server {
	t.Helper()
	seen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(handler.StatusResponse{
			NodeID:      3,
			Version:     "dev",
			PublicAddr:  "127.0.0.1:5684",
			ClusterAddr: "127.0.0.1:5784",
			Ready:       true,
			Nodes:       2,
			Counters:    handler.Counters{Forwarded: 7, Malformed: 1},
		})
	})
	mux.HandleFunc("GET /v1/nodes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(handler.NodesResponse{
			Self: 3,
			Nodes: []handler.NodeInfo{
				{ID: 1, Address: "10.0.0.1:5784", LastSeen: &seen},
				{ID: 2, Address: "10.0.0.2:5784"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestApp_Commands(t *testing.T) {
	app := App()

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	want := []string{"run", "status", "nodes", "config", "version"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "dev") {
		t.Errorf("version output = %q, want prefix dev", out)
	}

	out, err = runApp(t, context.Background(), "version", "-o", "json")
	if err != nil {
		t.Fatalf("version -o json error = %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if info["version"] != "dev" {
		t.Errorf("version = %q, want dev", info["version"])
	}
}

func TestStatusCommand(t *testing.T) {
	srv := newAdminServer(t)

	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{"table", "table", []string{"FIELD", "forwarded", "7", "127.0.0.1:5784"}},
		{"json", "json", []string{`"node_id": 3`, `"forwarded": 7`, `"ready": true`}},
		{"yaml", "yaml", []string{"node_id: 3", "malformed: 1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, context.Background(), "status", "--admin", srv.URL, "-o", tt.format)
			if err != nil {
				t.Fatalf("status error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestNodesCommand(t *testing.T) {
	srv := newAdminServer(t)

	out, err := runApp(t, context.Background(), "nodes", "--admin", srv.URL)
	if err != nil {
		t.Fatalf("nodes error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "2026-01-02T03:04:05Z") {
		t.Errorf("line %q missing last seen", lines[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("line %q should show - for a static node", lines[2])
	}
}

func TestStatusCommand_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := runApp(t, context.Background(), "status", "--admin", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("status error = %v, want status 500", err)
	}

	_, err = runApp(t, context.Background(), "status", "--admin", srv.URL, "-o", "xml")
	if err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestConfigCheck(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeConfig(t, "node:\n  id: 5\ndiscovery:\n  mode: seeds\n")
		out, err := runApp(t, context.Background(), "config", "check", "--config", path)
		if err != nil {
			t.Fatalf("config check error = %v", err)
		}
		if !strings.Contains(out, "node 5") {
			t.Errorf("output = %q, want node 5", out)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeConfig(t, "node:\n  id: 5\ndiscovery:\n  mode: carrier-pigeon\n")
		_, err := runApp(t, context.Background(), "config", "check", "--config", path)
		if err == nil || !strings.Contains(err.Error(), "discovery.mode") {
			t.Errorf("config check error = %v, want discovery.mode", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runApp(t, context.Background(), "config", "check", "--config", filepath.Join(t.TempDir(), "none.yaml"))
		if err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	path := writeConfig(t, `
node:
  id: 1
discovery:
  mode: memberlist
cluster:
  advertise: 10.0.0.1:5784
memberlist:
  secret: gossip-secret
`)
	out, err := runApp(t, context.Background(), "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "gossip-secret") {
		t.Errorf("secret leaked:\n%s", out)
	}
	for _, w := range []string{"mode: memberlist", "advertise: 10.0.0.1:5784", "secret: go*********et"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestFlagOverrides(t *testing.T) {
	cmd := RunCommand()
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	for _, f := range cmd.Flags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	err := set.Parse([]string{
		"--node-id", "4",
		"--cluster-addr", "127.0.0.1:6000",
		"--admin-addr", "",
		"--seed", "10.0.0.1:5784",
		"--seed", "10.0.0.2:5784",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := flagOverrides(cli.NewContext(App(), set, nil))
	want := map[string]any{
		"node.id":         4,
		"cluster.addr":    "127.0.0.1:6000",
		"admin.addr":      "",
		"discovery.seeds": []string{"10.0.0.1:5784", "10.0.0.2:5784"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flagOverrides() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCommand_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := runApp(t, ctx, "run",
			"--node-id", "1",
			"--public-addr", "127.0.0.1:0",
			"--cluster-addr", "127.0.0.1:0",
			"--admin-addr", "",
			"--discovery", "seeds",
			"--log-level", "error",
		)
		errCh <- err
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
	case <-time.After(ShutdownTimeout):
		t.Fatal("run did not stop")
	}
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	_, err := runApp(t, context.Background(), "run", "--node-id", "1", "--public-addr", "nope")
	if err == nil || !strings.Contains(err.Error(), "public.addr") {
		t.Errorf("run error = %v, want public.addr", err)
	}
}
