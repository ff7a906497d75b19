package persist

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"hunter/backend/domain"
	"hunter/backend/service/shared"

	"github.com/pelletier/go-toml/v2"
)

// CatalogFile 目录文件名
const CatalogFile = shared.CatalogFile

// catalogFile 磁盘格式：平铺字段，与历史 hunter.toml 保持一致。
type catalogFile struct {
	LocalAddr string              `toml:"local_addr"`
	LocalPort uint16              `toml:"local_port"`
	LogLevel  domain.LogLevel     `toml:"log_level,omitempty"`
	PAC       string              `toml:"pac"`
	Nodes     []domain.ServerNode `toml:"nodes"`
}

func toFile(c domain.Catalog) catalogFile {
	nodes := c.Nodes
	if nodes == nil {
		nodes = []domain.ServerNode{}
	}
	return catalogFile{
		LocalAddr: c.Local.Address,
		LocalPort: c.Local.Port,
		LogLevel:  c.LogLevel,
		PAC:       c.PAC,
		Nodes:     nodes,
	}
}

func (f catalogFile) toCatalog() domain.Catalog {
	def := domain.DefaultCatalog()
	out := domain.Catalog{
		Local:    domain.LocalEndpoint{Address: f.LocalAddr, Port: f.LocalPort},
		PAC:      f.PAC,
		LogLevel: f.LogLevel,
		Nodes:    f.Nodes,
	}
	if out.Local.Address == "" {
		out.Local.Address = def.Local.Address
	}
	if out.Local.Port == 0 {
		out.Local.Port = def.Local.Port
	}
	if out.PAC == "" {
		out.PAC = def.PAC
	}
	if out.LogLevel == "" {
		out.LogLevel = def.LogLevel
	}
	if out.Nodes == nil {
		out.Nodes = []domain.ServerNode{}
	}
	return out
}

// Load 读取目录文件。文件不存在或为空时返回默认目录；格式错误返回 *domain.DecodeError。
func Load(path string) (domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultCatalog(), nil
		}
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.DefaultCatalog(), nil
	}

	var f catalogFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return domain.Catalog{}, &domain.DecodeError{Path: path, Err: err}
	}
	return f.toCatalog(), nil
}

// Save 原子写入目录文件
func Save(path string, catalog domain.Catalog) error {
	data, err := toml.Marshal(toFile(catalog))
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return shared.WriteFileAtomic(path, data, 0o644)
}
