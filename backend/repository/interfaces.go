package repository

import (
	"context"

	"hunter/backend/domain"
)

// CatalogRepository 节点目录仓储接口。
// 实现自带一把独立的读写锁，与进程监管器的锁互不嵌套。
type CatalogRepository interface {
	Get(ctx context.Context) (domain.Catalog, error)

	// Add 与已有节点同名或同地址时静默忽略，返回是否真正插入。
	Add(ctx context.Context, node domain.ServerNode) (bool, error)
	// Update index == len 时退化为 Add；index > len 返回 *domain.IndexOutOfRangeError。
	Update(ctx context.Context, index int, node domain.ServerNode) error
	Delete(ctx context.Context, name string) error
	Replace(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error)

	SetLocal(ctx context.Context, local domain.LocalEndpoint) error
	SetLocalAddr(ctx context.Context, addr string) error
	SetLocalPort(ctx context.Context, port uint16) error
	SetPAC(ctx context.Context, url string) error
	SetLogLevel(ctx context.Context, level domain.LogLevel) error
}

// Snapshottable 可快照的存储（供持久化层使用）
type Snapshottable interface {
	Snapshot() domain.Catalog
	LoadState(catalog domain.Catalog)
}
