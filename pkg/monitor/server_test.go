package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dbehnke/p25bridge/pkg/config"
	"github.com/dbehnke/p25bridge/pkg/logger"
)

func TestServer_StartAndStatus(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(config.WebConfig{Enabled: true, Host: "127.0.0.1", Port: 0}, log)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == "" {
		t.Fatal("server never reported a bound address")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if _, ok := status["clients"]; !ok {
		t.Error("expected clients field in status response")
	}
	if _, ok := status["rx_state"]; ok {
		t.Error("expected no rx_state field without an attached engine")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("Start returned unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServer_DisabledDoesNotListen(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(config.WebConfig{Enabled: false}, log)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("expected nil error when disabled, got %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("expected no bound address when disabled, got %q", srv.Addr())
	}
}

func TestServer_Hub(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(config.WebConfig{Enabled: true, Host: "127.0.0.1", Port: 0}, log)
	if srv.Hub() == nil {
		t.Fatal("expected non-nil hub")
	}
}
