//go:build linux

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rogeraird/rgo/internal/channel"
	"github.com/rogeraird/rgo/internal/codec"
	"github.com/rogeraird/rgo/internal/models"
)

func executeRootCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// receiveOne opens a FIFO in a temp dir and returns its path plus a channel
// yielding the first payload written to it.
func receiveOne(t *testing.T) (string, <-chan []byte) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rgo.pipe")
	if _, err := channel.Ensure(path); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	ch, err := channel.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	got := make(chan []byte, 1)
	go func() {
		for {
			payload, err := ch.Receive(ctx)
			if err != nil {
				close(got)
				return
			}
			if payload != nil {
				got <- payload
				return
			}
		}
	}()
	return path, got
}

func requireCommand(t *testing.T, got <-chan []byte, want models.Command) {
	t.Helper()
	payload, ok := <-got
	if !ok {
		t.Fatal("no payload received")
	}
	cmd, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd != want {
		t.Fatalf("received %v, want %v", cmd, want)
	}
}

func TestAddWritesCommandToPipe(t *testing.T) {
	path, got := receiveOne(t)

	stdout, _, err := executeRootCommand(t, "--pipe", path, "add", "--key", "a", "--value", "http://example.com")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "sent Add") {
		t.Errorf("stdout = %q", stdout)
	}
	requireCommand(t, got, models.Add{Key: "a", Value: "http://example.com"})
}

func TestRemoveWritesCommandToPipe(t *testing.T) {
	path, got := receiveOne(t)

	if _, _, err := executeRootCommand(t, "--pipe", path, "remove", "--key", "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	requireCommand(t, got, models.Remove{Key: "a"})
}

func TestPersistWritesCommandToPipe(t *testing.T) {
	path, got := receiveOne(t)

	if _, _, err := executeRootCommand(t, "--pipe", path, "persist"); err != nil {
		t.Fatalf("persist failed: %v", err)
	}
	requireCommand(t, got, models.Persist{})
}

func TestAddRequiresKeyAndValue(t *testing.T) {
	_, _, err := executeRootCommand(t, "add", "--key", "a")
	if err == nil {
		t.Fatal("expected error without --value")
	}
	if !strings.Contains(err.Error(), "required flag") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendWithoutServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgo.pipe")
	if _, err := channel.Ensure(path); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	_, _, err := executeRootCommand(t, "--pipe", path, "--timeout", "50ms", "persist")
	if !errors.Is(err, channel.ErrNoReader) {
		t.Fatalf("err = %v, want ErrNoReader", err)
	}
}

func TestListPrintsSortedLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/priv/list" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"google":"https://google.com","a":"http://example.com"}`))
	}))
	defer srv.Close()

	stdout, _, err := executeRootCommand(t, "--server", srv.URL+"/", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := "a\thttp://example.com\ngoogle\thttps://google.com\n"
	if stdout != want {
		t.Fatalf("stdout = %q, want %q", stdout, want)
	}
}

func TestListReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"INTERNAL"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := executeRootCommand(t, "--server", srv.URL, "list")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v, want a 500 error", err)
	}
}
