// Package autostart 管理登录时拉起受管进程的平台启动项。
package autostart

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"hunter/backend/service/shared"

	"go.uber.org/zap"
)

// Manager 启动项管理器：一个平台对应一个文件。
type Manager struct {
	path    string
	content string
	log     *zap.Logger
}

// Options 启动项所需路径
type Options struct {
	// Dir 启动项所在目录；为空时按平台默认。
	Dir            string
	Executable     string
	ExternalConfig string
}

// New 按当前平台创建管理器
func New(opts Options) (*Manager, error) {
	return newForOS(runtime.GOOS, opts)
}

func newForOS(goos string, opts Options) (*Manager, error) {
	dir := opts.Dir
	if dir == "" {
		d, err := DefaultDir(goos)
		if err != nil {
			return nil, err
		}
		dir = d
	}

	m := &Manager{log: zap.L().Named("autostart")}
	switch goos {
	case "linux":
		m.path = filepath.Join(dir, "trojan-go.desktop")
		m.content = desktopEntry(opts.Executable, opts.ExternalConfig)
	case "darwin":
		m.path = filepath.Join(dir, "com.thepoy.hunter.plist")
		m.content = launchAgent(opts.Executable, opts.ExternalConfig)
	case "windows":
		m.path = filepath.Join(dir, "trojan-go.vbs")
		m.content = vbsLauncher(opts.Executable, opts.ExternalConfig)
	default:
		return nil, fmt.Errorf("autostart is not supported on %s", goos)
	}
	return m, nil
}

// DefaultDir 平台默认的启动项目录
func DefaultDir(goos string) (string, error) {
	switch goos {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents"), nil
	case "windows":
		base, err := os.UserConfigDir() // %APPDATA%
		if err != nil {
			return "", err
		}
		return filepath.Join(base, "Microsoft", "Windows", "Start Menu", "Programs", "Startup"), nil
	default:
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, "autostart"), nil
	}
}

// Path 启动项文件路径
func (m *Manager) Path() string { return m.path }

// IsEnabled 启动项文件是否存在
func (m *Manager) IsEnabled() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Enable 写入启动项，整体覆盖旧内容。
func (m *Manager) Enable() error {
	if err := shared.WriteFileAtomic(m.path, []byte(m.content), 0o644); err != nil {
		m.log.Error("add autostart entry failed", zap.String("path", m.path), zap.Error(err))
		return fmt.Errorf("write autostart entry: %w", err)
	}
	m.log.Info("autostart entry created", zap.String("path", m.path))
	return nil
}

// Disable 删除启动项。文件不存在时返回包装 os.ErrNotExist 的错误。
func (m *Manager) Disable() error {
	if err := os.Remove(m.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.log.Error("delete autostart entry failed", zap.String("path", m.path), zap.Error(err))
		}
		return fmt.Errorf("remove autostart entry: %w", err)
	}
	m.log.Info("autostart entry deleted", zap.String("path", m.path))
	return nil
}

func desktopEntry(exe, cfg string) string {
	return fmt.Sprintf(`[Desktop Entry]
Exec=%s -config %s
Icon=dialog-scripts
Name=trojan-go
Path=
Type=Application
X-KDE-AutostartScript=true
`, exe, cfg)
}

func launchAgent(exe, cfg string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple Computer//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
   <key>Label</key>
   <string>com.hunter.trojan-go</string>
   <key>ProgramArguments</key>
   <array>
     <string>%s</string>
     <string>-config</string>
     <string>%s</string>
   </array>
   <key>RunAtLoad</key>
   <true/>
</dict>
</plist>
`, xmlEscape(exe), xmlEscape(cfg))
}

func vbsLauncher(exe, cfg string) string {
	return fmt.Sprintf("set ws=WScript.CreateObject(\"WScript.Shell\")\nws.Run \"%s -config %s\",0", exe, cfg)
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
