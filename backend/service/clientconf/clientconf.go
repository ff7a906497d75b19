// Package clientconf 读写受管进程直接消费的外部配置文件，并据此解析当前选中的节点。
package clientconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hunter/backend/domain"
	"hunter/backend/service/shared"
)

// Read 读取外部配置。文件不存在返回 (nil, nil)；格式错误返回 *domain.DecodeError。
func Read(path string) (*domain.ExternalProxyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read external config: %w", err)
	}

	var cfg domain.ExternalProxyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.DecodeError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Resolve 返回目录中第一个与外部配置远端三元组一致的节点。
// 文件不存在或无匹配返回 (nil, nil)，这是正常结果而非失败。
func Resolve(catalog domain.Catalog, path string) (*domain.ServerNode, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	return Match(catalog.Nodes, *cfg), nil
}

// Match 在 nodes 中按顺序查找与 cfg 一致的节点
func Match(nodes []domain.ServerNode, cfg domain.ExternalProxyConfig) *domain.ServerNode {
	for i := range nodes {
		if cfg.Matches(nodes[i]) {
			node := nodes[i]
			return &node
		}
	}
	return nil
}

// Build 由节点、本地入站与日志等级生成外部配置
func Build(node domain.ServerNode, local domain.LocalEndpoint, level domain.LogLevel, logFile string) domain.ExternalProxyConfig {
	return domain.ExternalProxyConfig{
		RunType:    domain.RunTypeClient,
		LocalAddr:  local.Address,
		LocalPort:  local.Port,
		RemoteAddr: node.Address,
		RemotePort: node.Port,
		Password:   []string{node.Password},
		LogLevel:   level.Wire(),
		LogFile:    filepath.FromSlash(logFile),
	}
}

// Write 原子写入外部配置（整体覆盖）
func Write(path string, cfg domain.ExternalProxyConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode external config: %w", err)
	}
	if err := shared.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write external config %s: %w", path, err)
	}
	return nil
}

// Writer 绑定固定路径的外部配置写入器，供进程监管器在切换节点时调用。
type Writer struct {
	Path    string
	LogFile string
}

// WriteNode 写入由 node 派生的外部配置
func (w Writer) WriteNode(node domain.ServerNode, local domain.LocalEndpoint, level domain.LogLevel) error {
	return Write(w.Path, Build(node, local, level, w.LogFile))
}
