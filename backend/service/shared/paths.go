package shared

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// AppName 用户目录下的子目录名
	AppName = "hunter"

	// EnvConfigDir 覆盖配置目录（测试与便携模式）
	EnvConfigDir = "HUNTER_CONFIG_DIR"
	// EnvCacheDir 覆盖可执行文件所在目录
	EnvCacheDir = "HUNTER_CACHE_DIR"

	ExternalConfigFile = "config.json"
	CatalogFile        = "hunter.toml"
	ChildOutLogFile    = "hunter-out.log"
	ChildErrLogFile    = "hunter-error.log"
	AppLogFile         = "app.log"
)

// ExecutableName 受管可执行文件名（按平台）
func ExecutableName() string {
	if runtime.GOOS == "windows" {
		return "trojan-go.exe"
	}
	return "trojan-go"
}

// ConfigDir returns the per-user config directory.
//
// Default (no EnvConfigDir):
// - Linux: ~/.config/hunter
// - macOS: ~/Library/Application Support/hunter
// - Windows: %APPDATA%\hunter
func ConfigDir() string {
	return userDir(EnvConfigDir, os.UserConfigDir, ".hunter")
}

// CacheDir 受管可执行文件的解压目录（下载流程负责放置文件）。
func CacheDir() string {
	return userDir(EnvCacheDir, os.UserCacheDir, filepath.Join(".cache", AppName))
}

func userDir(env string, base func() (string, error), homeFallback string) string {
	if configured := strings.TrimSpace(os.Getenv(env)); configured != "" {
		return absPath(configured)
	}

	dir, err := base()
	if err == nil && strings.TrimSpace(dir) != "" {
		return absPath(filepath.Join(dir, AppName))
	}

	home, err := os.UserHomeDir()
	if err == nil && strings.TrimSpace(home) != "" {
		return absPath(filepath.Join(home, homeFallback))
	}

	return absPath(filepath.Join(os.TempDir(), AppName))
}

// Paths 运行期用到的全部路径
type Paths struct {
	ConfigDir string
	CacheDir  string
}

// DefaultPaths 按用户目录解析路径
func DefaultPaths() Paths {
	return Paths{ConfigDir: ConfigDir(), CacheDir: CacheDir()}
}

func (p Paths) ExternalConfig() string { return filepath.Join(p.ConfigDir, ExternalConfigFile) }
func (p Paths) Catalog() string        { return filepath.Join(p.ConfigDir, CatalogFile) }
func (p Paths) AppLog() string         { return filepath.Join(p.ConfigDir, AppLogFile) }
func (p Paths) ChildOutLog() string    { return filepath.Join(p.ConfigDir, ChildOutLogFile) }
func (p Paths) ChildErrLog() string    { return filepath.Join(p.ConfigDir, ChildErrLogFile) }
func (p Paths) Executable() string     { return filepath.Join(p.CacheDir, ExecutableName()) }

// ChildLogFile 外部配置里 log_file 字段写入的路径（trojan 自身日志）
func (p Paths) ChildLogFile() string { return filepath.Join(p.ConfigDir, "trojan.log") }

func absPath(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
