// Package sysproxy 在三个平台上统一开启/关闭系统自动代理（PAC）。
package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"hunter/backend/service/shared"

	"go.uber.org/zap"
)

// Adapter 系统自动代理设置。Enable/Disable 均幂等。
type Adapter interface {
	Enable(ctx context.Context, pac string) error
	Disable(ctx context.Context) error
	// Enabled 只判断自动代理是否开启，不关心 URL。
	Enabled(ctx context.Context) (bool, error)
}

// ErrNoActiveService macOS 上找不到带路由器的网络服务
var ErrNoActiveService = errors.New("no active network service")

// ErrUnsupportedPlatform 当前操作系统没有实现
var ErrUnsupportedPlatform = errors.New("system proxy is not supported on this platform")

// UnsupportedDesktopError Linux 桌面环境无法识别
type UnsupportedDesktopError struct {
	Desktop string
}

func (e *UnsupportedDesktopError) Error() string {
	if e.Desktop == "" {
		return "unknown desktop: XDG_SESSION_DESKTOP is not set"
	}
	return fmt.Sprintf("unknown desktop: %s", e.Desktop)
}

func (e *UnsupportedDesktopError) Unwrap() error { return ErrUnsupportedPlatform }

// New 按当前平台选择实现（进程内只选一次）。
func New(ctx context.Context, runner shared.Runner) (Adapter, error) {
	return newForOS(ctx, runtime.GOOS, runner, os.Getenv)
}

func newForOS(ctx context.Context, goos string, runner shared.Runner, getenv func(string) string) (Adapter, error) {
	log := zap.L().Named("sysproxy")
	switch goos {
	case "darwin":
		a, err := NewNetworkSetup(ctx, runner)
		if err != nil {
			return nil, err
		}
		log.Info("using networksetup", zap.String("service", a.Service()))
		return a, nil
	case "linux":
		desktop, err := DetectDesktop(getenv)
		if err != nil {
			return nil, err
		}
		log.Info("using desktop proxy settings", zap.String("desktop", string(desktop)))
		return NewDesktop(desktop, runner), nil
	case "windows":
		store, err := openRegistryStore()
		if err != nil {
			return nil, err
		}
		return NewRegistry(store), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}
