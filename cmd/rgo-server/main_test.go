//go:build linux

package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rogeraird/rgo/internal/channel"
	"github.com/rogeraird/rgo/internal/codec"
	"github.com/rogeraird/rgo/internal/config"
	"github.com/rogeraird/rgo/internal/models"
	"github.com/rogeraird/rgo/internal/persist"
)

type testServer struct {
	cfg  config.Config
	base string
}

// startServer runs the whole server on a loopback port with its pipe and
// persist file in a temp dir. The server is stopped on cleanup.
func startServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.ChannelPath = filepath.Join(dir, "rgo.pipe")
	cfg.SnapshotPath = filepath.Join(dir, "rgo-client")
	if mutate != nil {
		mutate(&cfg)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("run did not return after cancel")
		}
	})

	return &testServer{cfg: cfg, base: "http://" + ln.Addr().String()}
}

func (s *testServer) send(t *testing.T, cmd models.Command) {
	t.Helper()
	payload, err := codec.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := channel.Send(ctx, s.cfg.ChannelPath, payload); err != nil {
		t.Fatalf("Send(%v): %v", cmd, err)
	}
}

// location returns where GET /key redirects to.
func (s *testServer) location(t *testing.T, key string) string {
	t.Helper()
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(s.base + "/" + key)
	if err != nil {
		t.Fatalf("GET /%s: %v", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("GET /%s status = %d, want 302", key, resp.StatusCode)
	}
	return resp.Header.Get("Location")
}

func (s *testServer) list(t *testing.T) map[string]string {
	t.Helper()
	resp, err := http.Get(s.base + "/priv/list")
	if err != nil {
		t.Fatalf("GET /priv/list: %v", err)
	}
	defer resp.Body.Close()
	var links map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&links); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return links
}

func (s *testServer) metrics(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(s.base + "/priv/metrics")
	if err != nil {
		t.Fatalf("GET /priv/metrics: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(data)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAddRedirectRemoveOverPipe(t *testing.T) {
	srv := startServer(t, nil)

	if got := srv.location(t, "google"); got != "https://google.com" {
		t.Fatalf("seed redirect = %q", got)
	}

	srv.send(t, models.Add{Key: "a", Value: "http://example.com"})
	eventually(t, "link a", func() bool { return srv.location(t, "a") == "http://example.com" })

	srv.send(t, models.Remove{Key: "a"})
	eventually(t, "link a removed", func() bool { return srv.location(t, "a") == models.NotFoundPath })

	links := srv.list(t)
	if len(links) != 1 || links["google"] != "https://google.com" {
		t.Errorf("list = %v, want only the seed", links)
	}
}

func TestPersistThenRestore(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "links")

	first := startServer(t, func(c *config.Config) { c.SnapshotPath = snapshot })
	first.send(t, models.Add{Key: "gh", Value: "https://github.com"})
	eventually(t, "link gh", func() bool { return first.list(t)["gh"] != "" })
	first.send(t, models.Persist{})

	fs := persist.NewFileStore(snapshot)
	eventually(t, "persist file", func() bool {
		snap, err := fs.Load()
		return err == nil && snap["gh"] == "https://github.com"
	})

	second := startServer(t, func(c *config.Config) {
		c.SnapshotPath = snapshot
		c.Restore = true
	})
	if got := second.location(t, "gh"); got != "https://github.com" {
		t.Errorf("restored redirect = %q", got)
	}
}

func TestMalformedPayloadDoesNotStopServer(t *testing.T) {
	srv := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := channel.Send(ctx, srv.cfg.ChannelPath, []byte{0xc1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	eventually(t, "decode failure counted", func() bool {
		return strings.Contains(srv.metrics(t), "rgo_decode_failures_total 1")
	})

	srv.send(t, models.Add{Key: "b", Value: "http://b.example"})
	eventually(t, "link b", func() bool { return srv.location(t, "b") == "http://b.example" })
}

func TestRunFailsWhenPipePathIsTaken(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ChannelPath = dir // a directory, not a FIFO
	cfg.SnapshotPath = filepath.Join(dir, "snap")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := run(context.Background(), cfg, ln); err == nil {
		t.Fatal("run with a directory as pipe returned nil")
	}
}

func TestShutdownWithOpenSubscriber(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ChannelPath = filepath.Join(dir, "rgo.pipe")
	cfg.SnapshotPath = filepath.Join(dir, "rgo-client")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/priv/subscribe")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("subscribe status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(shutdownTimeout / 2):
		t.Fatal("shutdown waited on the open SSE stream")
	}
}
