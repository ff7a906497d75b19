package main

import (
	"context"

	"go.uber.org/zap"
)

type serverShutdowner interface {
	Shutdown(ctx context.Context) error
}

type exitHook interface {
	Shutdown(ctx context.Context) error
}

// gracefulStop 先停止接收请求并等待进行中的请求结束，再执行退出钩子，
// 这样排空期间落地的目录修改也会被最终保存。
func gracefulStop(ctx context.Context, srv serverShutdowner, hook exitHook, log *zap.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	// 退出钩子：保存目录、按守护标记决定是否结束子进程
	if err := hook.Shutdown(ctx); err != nil {
		log.Error("exit hook failed", zap.Error(err))
	}
}
