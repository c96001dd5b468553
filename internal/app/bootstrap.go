package app

import (
	"errors"
	"fmt"

	"github.com/dujiao-next/lunar-gateway/internal/cache"
	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/provider"
	"github.com/dujiao-next/lunar-gateway/internal/router"
	"github.com/dujiao-next/lunar-gateway/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !validMode(mode) {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	container := provider.NewContainer(cfg)
	services, err := buildServices(cfg, container, mode)
	if err != nil {
		return nil, err
	}
	return NewRunner(services...).withCloser(func() error {
		return closeContainer(container)
	}), nil
}

// buildServices 按启动模式组装 HTTP 与 Worker 服务
func buildServices(cfg *config.Config, container *provider.Container, mode string) ([]Service, error) {
	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server.Addr(), engine))
	}

	// 队列关闭时 all 模式只起 HTTP，支付事件在请求内同步处理
	if mode == ModeWorker || (mode == ModeAll && cfg.Queue.Enabled) {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(&cfg.Queue, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}
	return services, nil
}

func closeContainer(container *provider.Container) error {
	var errs []error
	if container != nil && container.QueueClient != nil {
		if err := container.QueueClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cache.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := models.CloseDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
