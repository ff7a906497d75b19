package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"hunter/backend/service/shared"

	"gopkg.in/yaml.v3"
)

// Config 应用配置（与节点目录 hunter.toml 无关）
type Config struct {
	Server ServerConfig `yaml:"server"`
	Paths  PathsConfig  `yaml:"paths"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"` // debug, release
}

// PathsConfig 目录覆盖，留空则使用用户目录
type PathsConfig struct {
	ConfigDir string `yaml:"config_dir"`
	CacheDir  string `yaml:"cache_dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	MaxSize    int    `yaml:"max_size"`    // 单个日志文件大小(MB)
	MaxBackups int    `yaml:"max_backups"` // 保留的旧日志文件数量
	RetainDays int    `yaml:"retain_days"` // 启动时归档的旧日志保留天数
}

const (
	ModeDebug   = "debug"
	ModeRelease = "release"
)

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:19080",
			Mode: ModeRelease,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSize:    10,
			MaxBackups: 3,
			RetainDays: 7,
		},
	}
}

// LoadConfig 从文件加载配置，缺失字段取默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault 路径为空或文件不存在时返回默认配置；格式错误仍然报错。
func LoadConfigOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Validate 校验取值
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	switch c.Server.Mode {
	case "", ModeDebug, ModeRelease:
	default:
		return fmt.Errorf("unknown server.mode: %q", c.Server.Mode)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log.format: %q", c.Log.Format)
	}
	return nil
}

// Dev 是否为开发模式
func (c *Config) Dev() bool { return c.Server.Mode == ModeDebug }

// ResolvePaths 合并目录覆盖与用户目录默认值
func (c *Config) ResolvePaths() shared.Paths {
	paths := shared.DefaultPaths()
	if dir := strings.TrimSpace(c.Paths.ConfigDir); dir != "" {
		paths.ConfigDir = dir
	}
	if dir := strings.TrimSpace(c.Paths.CacheDir); dir != "" {
		paths.CacheDir = dir
	}
	return paths
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := shared.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
