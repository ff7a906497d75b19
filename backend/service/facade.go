package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"hunter/backend/domain"
	"hunter/backend/persist"
	"hunter/backend/repository"
	"hunter/backend/service/applog"
	"hunter/backend/service/autostart"
	"hunter/backend/service/clientconf"
	"hunter/backend/service/connectivity"
	"hunter/backend/service/proxy"
	"hunter/backend/service/sysproxy"

	"go.uber.org/zap"
)

// ConnectivityChecker 经本地入站探测代理连通性
type ConnectivityChecker interface {
	Check(ctx context.Context, local domain.LocalEndpoint) (connectivity.Result, error)
}

// Deps 门面依赖。SysProxy/Autostart 构造失败时传入对应错误，
// 相关接口调用时返回该错误，其余功能不受影响。
type Deps struct {
	Catalog     repository.CatalogRepository
	Proxy       *proxy.Service
	Snapshotter *persist.Snapshotter
	Checker     ConnectivityChecker

	SysProxy    sysproxy.Adapter
	SysProxyErr error

	Autostart    *autostart.Manager
	AutostartErr error
}

// Facade 服务门面（API 聚合层）。
// 锁顺序固定为：先目录锁（仓储内部），释放后再取监管器锁，两者从不嵌套。
type Facade struct {
	catalog     repository.CatalogRepository
	proxy       *proxy.Service
	snapshotter *persist.Snapshotter
	checker     ConnectivityChecker

	sysproxy    sysproxy.Adapter
	sysproxyErr error

	autostart    *autostart.Manager
	autostartErr error

	appLogPath      string
	appLogStartedAt time.Time

	log *zap.Logger
}

// NewFacade 创建门面服务
func NewFacade(deps Deps) *Facade {
	f := &Facade{
		catalog:      deps.Catalog,
		proxy:        deps.Proxy,
		snapshotter:  deps.Snapshotter,
		checker:      deps.Checker,
		sysproxy:     deps.SysProxy,
		sysproxyErr:  deps.SysProxyErr,
		autostart:    deps.Autostart,
		autostartErr: deps.AutostartErr,
		log:          zap.L().Named("facade"),
	}
	if f.sysproxy == nil && f.sysproxyErr == nil {
		f.sysproxyErr = sysproxy.ErrUnsupportedPlatform
	}
	if f.autostart == nil && f.autostartErr == nil {
		f.autostartErr = errors.New("autostart is not available")
	}
	if f.checker == nil {
		f.checker = connectivity.NewChecker()
	}
	return f
}

func (f *Facade) SetAppLog(path string, startedAt time.Time) {
	f.appLogPath = path
	f.appLogStartedAt = startedAt
}

// ========== 目录操作 ==========

// Catalog 获取目录快照
func (f *Facade) Catalog(ctx context.Context) (domain.Catalog, error) {
	return f.catalog.Get(ctx)
}

// ReplaceCatalog 整体替换目录（重名/重地址节点被丢弃）
func (f *Facade) ReplaceCatalog(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error) {
	return f.catalog.Replace(ctx, catalog)
}

// SaveCatalog 立即写盘
func (f *Facade) SaveCatalog() error {
	if f.snapshotter == nil {
		return nil
	}
	return f.snapshotter.SaveNow()
}

func (f *Facade) SetLocal(ctx context.Context, local domain.LocalEndpoint) error {
	return f.catalog.SetLocal(ctx, local)
}

func (f *Facade) SetLocalAddr(ctx context.Context, addr string) error {
	return f.catalog.SetLocalAddr(ctx, addr)
}

func (f *Facade) SetLocalPort(ctx context.Context, port uint16) error {
	return f.catalog.SetLocalPort(ctx, port)
}

func (f *Facade) SetPAC(ctx context.Context, url string) error {
	return f.catalog.SetPAC(ctx, url)
}

func (f *Facade) SetLogLevel(ctx context.Context, level domain.LogLevel) error {
	return f.catalog.SetLogLevel(ctx, level)
}

// ========== 节点操作 ==========

// AddNode 添加节点，与已有节点重名或重地址时返回 false
func (f *Facade) AddNode(ctx context.Context, node domain.ServerNode) (bool, error) {
	return f.catalog.Add(ctx, node)
}

func (f *Facade) UpdateNode(ctx context.Context, index int, node domain.ServerNode) error {
	return f.catalog.Update(ctx, index, node)
}

func (f *Facade) DeleteNode(ctx context.Context, name string) error {
	return f.catalog.Delete(ctx, name)
}

// ActiveNode 外部配置当前指向的节点；无外部配置或无匹配时为 nil
func (f *Facade) ActiveNode(ctx context.Context) (*domain.ServerNode, error) {
	catalog, err := f.catalog.Get(ctx)
	if err != nil {
		return nil, err
	}
	return clientconf.Resolve(catalog, f.proxy.ExternalConfigPath())
}

// SwitchNode 切换到指定节点。先读目录（目录锁），再进入监管器写锁。
// 节点不存在时不改动任何状态或文件。
func (f *Facade) SwitchNode(ctx context.Context, name string) error {
	catalog, err := f.catalog.Get(ctx)
	if err != nil {
		return err
	}
	node, ok := catalog.FindNode(name)
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrNodeNotFound, name)
	}
	if err := f.proxy.SwitchNode(ctx, node, catalog.Local, catalog.LogLevel); err != nil {
		return err
	}
	f.log.Info("server node switched", zap.String("node", name))
	return nil
}

// WriteNodeConfig 把节点写入外部配置但不重启子进程
func (f *Facade) WriteNodeConfig(ctx context.Context, node domain.ServerNode) error {
	catalog, err := f.catalog.Get(ctx)
	if err != nil {
		return err
	}
	return f.proxy.WriteConfig(node, catalog.Local, catalog.LogLevel)
}

// ========== 进程操作 ==========

// ProcessState 检测已运行的受管进程（可能收养守护进程）
func (f *Facade) ProcessState(ctx context.Context) (domain.ProcessState, error) {
	catalog, err := f.catalog.Get(ctx)
	if err != nil {
		return domain.ProcessState{}, err
	}
	return f.proxy.Inspect(ctx, catalog)
}

func (f *Facade) Launch(ctx context.Context) error {
	return f.proxy.Launch(ctx)
}

// Terminate pid 为空时结束当前子进程
func (f *Facade) Terminate(ctx context.Context, pid *uint32) error {
	return f.proxy.Terminate(ctx, pid)
}

func (f *Facade) ProxyState() proxy.State {
	return f.proxy.State()
}

func (f *Facade) ToggleDaemon() bool {
	return f.proxy.ToggleDaemon()
}

// ExecutableInfo 受管可执行文件信息
type ExecutableInfo struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

func (f *Facade) Executable() ExecutableInfo {
	return ExecutableInfo{Path: f.proxy.ExecutablePath(), Exists: f.proxy.ExecutableExists()}
}

// ChildLogs 读取子进程日志
func (f *Facade) ChildLogs(stream proxy.LogStream, since int64) proxy.ChildLogSnapshot {
	return f.proxy.ChildLogs(stream, since)
}

// ========== 系统代理 ==========

func (f *Facade) SystemProxyEnabled(ctx context.Context) (bool, error) {
	if f.sysproxy == nil {
		return false, f.sysproxyErr
	}
	return f.sysproxy.Enabled(ctx)
}

// EnableSystemProxy 以目录中的 PAC 地址开启系统自动代理
func (f *Facade) EnableSystemProxy(ctx context.Context) error {
	if f.sysproxy == nil {
		return f.sysproxyErr
	}
	catalog, err := f.catalog.Get(ctx)
	if err != nil {
		return err
	}
	if err := f.sysproxy.Enable(ctx, catalog.PAC); err != nil {
		return err
	}
	f.log.Info("system pac enabled", zap.String("pac", catalog.PAC))
	return nil
}

func (f *Facade) DisableSystemProxy(ctx context.Context) error {
	if f.sysproxy == nil {
		return f.sysproxyErr
	}
	if err := f.sysproxy.Disable(ctx); err != nil {
		return err
	}
	f.log.Info("system pac disabled")
	return nil
}

// ========== 开机自启 ==========

func (f *Facade) AutostartEnabled() (bool, error) {
	if f.autostart == nil {
		return false, f.autostartErr
	}
	return f.autostart.IsEnabled(), nil
}

// SetAutostart 设为目标状态；已处于目标状态时直接返回
func (f *Facade) SetAutostart(enabled bool) error {
	if f.autostart == nil {
		return f.autostartErr
	}
	if f.autostart.IsEnabled() == enabled {
		return nil
	}
	if enabled {
		return f.autostart.Enable()
	}
	return f.autostart.Disable()
}

// ========== 连通性 ==========

// CheckConnectivity 经目录中的本地入站探测
func (f *Facade) CheckConnectivity(ctx context.Context) (connectivity.Result, error) {
	catalog, err := f.catalog.Get(ctx)
	if err != nil {
		return connectivity.Result{}, err
	}
	return f.checker.Check(ctx, catalog.Local)
}

// ========== 日志 ==========

// GetAppLogs 读取本程序日志
func (f *Facade) GetAppLogs(since int64) applog.AppLogSnapshot {
	return applog.LogsSince(f.appLogPath, since, os.Getpid(), f.appLogStartedAt)
}

// ========== 退出 ==========

// Shutdown 退出钩子：保存目录；非守护模式下结束子进程并关闭系统 PAC。
// 各步骤互不阻断，错误合并返回。
func (f *Facade) Shutdown(ctx context.Context) error {
	var errs []error

	f.flushSnapshots(ctx)
	if err := f.SaveCatalog(); err != nil {
		f.log.Error("save catalog failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("save catalog: %w", err))
	} else {
		f.log.Info("catalog saved")
	}

	killed, err := f.proxy.Shutdown(ctx)
	if err != nil {
		f.log.Error("stop child failed", zap.Error(err))
		errs = append(errs, err)
	}
	if killed {
		f.log.Info("child stopped")
		if f.sysproxy != nil {
			if err := f.sysproxy.Disable(ctx); err != nil {
				f.log.Error("disable system pac failed", zap.Error(err))
				errs = append(errs, fmt.Errorf("disable system pac: %w", err))
			} else {
				f.log.Info("system pac disabled")
			}
		}
	}

	return errors.Join(errs...)
}

// snapshotFlushTimeout 退出时等待防抖保存完成的上限
const snapshotFlushTimeout = 2 * time.Second

// flushSnapshots 等待挂起的防抖保存结束，避免其在最终保存之后再写一次。
func (f *Facade) flushSnapshots(ctx context.Context) {
	if f.snapshotter == nil {
		return
	}
	wait := snapshotFlushTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < wait {
			wait = left
		}
	}
	if wait <= 0 {
		return
	}
	if err := f.snapshotter.WaitIdle(wait); err != nil {
		f.log.Warn("pending catalog snapshot not finished", zap.Error(err))
	}
}
