package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"repfinds.local/internal/platform/config"
)

// New 对外服务
func New(cfg config.Config, handler http.Handler) *http.Server {
	return NewWithAddr(cfg.Addr, cfg, handler)
}

// NewWithAddr 超时沿用 cfg，只换监听地址（管理端口用）
func NewWithAddr(addr string, cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Run 阻塞直到服务出错或 stopCtx 结束；结束时在 shutdownTimeout 内优雅关闭
func Run(stopCtx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
