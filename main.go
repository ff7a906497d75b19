package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hunter/backend/api"
	"hunter/backend/config"
	"hunter/backend/logging"
	"hunter/backend/persist"
	"hunter/backend/repository/events"
	"hunter/backend/repository/memory"
	"hunter/backend/service"
	"hunter/backend/service/autostart"
	"hunter/backend/service/connectivity"
	"hunter/backend/service/proxy"
	"hunter/backend/service/shared"
	"hunter/backend/service/sysproxy"
	"hunter/backend/tasks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML app config (optional)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dev := flag.Bool("dev", false, "enable development mode with verbose logging")
	flag.Parse()

	cfg, err := config.LoadConfigOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dev {
		cfg.Server.Mode = config.ModeDebug
	}

	paths := cfg.ResolvePaths()
	startedAt := time.Now()

	logger, closeLog, err := logging.Init(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Dev:        cfg.Dev(),
		File:       paths.AppLog(),
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		Retain:     time.Duration(cfg.Log.RetainDays) * 24 * time.Hour,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		return 1
	}
	defer closeLog()
	log := logger.Named("main")

	if cfg.Dev() {
		gin.SetMode(gin.DebugMode)
		log.Info("运行在开发模式 - 显示所有日志")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. 事件总线与目录存储
	eventBus := events.NewBus()
	memStore := memory.NewStore(eventBus)

	// 2. 加载目录；格式错误时拒绝启动，避免覆盖用户文件
	snapshotter := persist.NewSnapshotter(paths.Catalog(), memStore)
	if err := snapshotter.Load(); err != nil {
		log.Error("load catalog failed", zap.String("path", paths.Catalog()), zap.Error(err))
		log.Error("拒绝启动以避免覆盖目录文件，请修正或移走该文件后重试")
		return 1
	}
	log.Info("catalog loaded", zap.String("path", paths.Catalog()))
	snapshotter.SubscribeEvents(eventBus)

	catalogRepo := memory.NewCatalogRepo(memStore)

	// 3. 平台适配：构造失败不影响其余功能
	runner := shared.ExecRunner{}
	sysProxy, sysProxyErr := sysproxy.New(ctx, runner)
	if sysProxyErr != nil {
		log.Warn("system proxy unavailable", zap.Error(sysProxyErr))
	}

	autoStart, autoStartErr := autostart.New(autostart.Options{
		Executable:     paths.Executable(),
		ExternalConfig: paths.ExternalConfig(),
	})
	if autoStartErr != nil {
		log.Warn("autostart unavailable", zap.Error(autoStartErr))
	}

	// 4. 进程监管器
	supervisor := proxy.NewService(proxy.Options{Paths: paths})
	if !supervisor.ExecutableExists() {
		log.Warn("managed executable not found", zap.String("path", supervisor.ExecutablePath()))
	}

	facade := service.NewFacade(service.Deps{
		Catalog:      catalogRepo,
		Proxy:        supervisor,
		Snapshotter:  snapshotter,
		Checker:      connectivity.NewChecker(),
		SysProxy:     sysProxy,
		SysProxyErr:  sysProxyErr,
		Autostart:    autoStart,
		AutostartErr: autoStartErr,
	})
	facade.SetAppLog(paths.AppLog(), startedAt)

	// 5. 启动时检测上次遗留的守护进程
	if state, err := facade.ProcessState(ctx); err != nil {
		log.Warn("inspect managed process failed", zap.Error(err))
	} else {
		log.Info("managed process state", zap.Stringer("state", state))
	}

	// 6. 后台任务
	tasks.NewScheduler(supervisor, 5*time.Second).Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(facade),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("收到退出信号，正在清理...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		gracefulStop(shutdownCtx, srv, facade, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}
