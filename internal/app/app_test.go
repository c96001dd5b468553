package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/provider"

	"github.com/gin-gonic/gin"
)

type fakeService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeService) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllServicesWhenOneFails(t *testing.T) {
	failing := &fakeService{name: "http", startErr: errors.New("bind failed")}
	blocking := &fakeService{name: "worker", block: true}
	closed := false
	runner := NewRunner(failing, blocking).withCloser(func() error {
		closed = true
		return nil
	})

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.wasStopped() || !blocking.wasStopped() {
		t.Fatalf("all services should be stopped")
	}
	if !closed {
		t.Fatalf("closer should run after services stop")
	}
}

func TestRunnerCancelReturnsNil(t *testing.T) {
	svc := &fakeService{name: "http", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := NewRunner(svc).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancel should end run cleanly, got %v", err)
	}
	if !svc.wasStopped() {
		t.Fatalf("service should be stopped")
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
	if err := RunWithOptions(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}

func TestBuildServicesByMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.Mode = "debug"
	container := &provider.Container{Config: cfg}

	services, err := buildServices(cfg, container, ModeAll)
	if err != nil {
		t.Fatalf("build all mode failed: %v", err)
	}
	if len(services) != 1 || services[0].Name() != "http" {
		t.Fatalf("queue disabled all mode should only run http, got %d services", len(services))
	}

	if _, err := buildServices(cfg, container, ModeWorker); err == nil {
		t.Fatalf("worker mode requires an enabled queue")
	}
}

func TestBuildRunnerRejectsUnknownMode(t *testing.T) {
	if _, err := BuildRunner(&config.Config{}, "batch"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("expected nil config error")
	}
}

func TestNormalizeOptionsDefaults(t *testing.T) {
	opts := normalizeOptions(Options{})
	if opts.Mode != ModeAll || opts.ShutdownTimeout != 10*time.Second || opts.Logger == nil {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode(" Worker "); err != nil || mode != ModeWorker {
		t.Fatalf("expected worker mode, got %q err=%v", mode, err)
	}
	if mode, err := ParseMode(""); err != nil || mode != ModeAll {
		t.Fatalf("empty mode should default to all, got %q err=%v", mode, err)
	}
	if _, err := ParseMode("cron"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}
