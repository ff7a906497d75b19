package memory

import (
	"context"
	"fmt"
	"strings"

	"hunter/backend/domain"
	"hunter/backend/repository"
	"hunter/backend/repository/events"

	"go.uber.org/zap"
)

// CatalogRepo 节点目录仓储实现
type CatalogRepo struct {
	store *Store
	log   *zap.Logger
}

// NewCatalogRepo 创建节点目录仓储
func NewCatalogRepo(store *Store) *CatalogRepo {
	return &CatalogRepo{store: store, log: zap.L().Named("catalog")}
}

// Get 返回目录的深拷贝
func (r *CatalogRepo) Get(ctx context.Context) (domain.Catalog, error) {
	return r.store.Snapshot(), nil
}

// Add 添加节点。与已有节点同名或同地址时不插入，也不报错。
func (r *CatalogRepo) Add(ctx context.Context, node domain.ServerNode) (bool, error) {
	if err := validateNode(node); err != nil {
		return false, err
	}

	r.store.Lock()
	inserted := r.addLocked(node)
	r.store.Unlock()

	if !inserted {
		r.log.Warn("node already exists, skipped",
			zap.String("name", node.Name), zap.String("addr", node.Address))
		return false, nil
	}
	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventNodeAdded, Node: node})
	return true, nil
}

func (r *CatalogRepo) addLocked(node domain.ServerNode) bool {
	if conflictIndex(r.store.catalog.Nodes, node, -1) >= 0 {
		return false
	}
	r.store.catalog.Nodes = append(r.store.catalog.Nodes, node)
	return true
}

// Update 替换 index 处的节点；index == len 时等同于 Add。
// 与其他节点同名或同地址时返回 ErrInvalidData，目录不变。
func (r *CatalogRepo) Update(ctx context.Context, index int, node domain.ServerNode) error {
	if err := validateNode(node); err != nil {
		return err
	}

	r.store.Lock()
	n := len(r.store.catalog.Nodes)
	switch {
	case index < 0 || index > n:
		r.store.Unlock()
		return &domain.IndexOutOfRangeError{Index: index, Len: n}
	case index == n:
		inserted := r.addLocked(node)
		r.store.Unlock()
		if !inserted {
			r.log.Warn("node already exists, skipped",
				zap.String("name", node.Name), zap.String("addr", node.Address))
			return nil
		}
		r.store.PublishEvent(events.CatalogEvent{EventType: events.EventNodeAdded, Node: node})
		return nil
	}
	if i := conflictIndex(r.store.catalog.Nodes, node, index); i >= 0 {
		r.store.Unlock()
		return fmt.Errorf("%w: node %q conflicts with node at index %d", repository.ErrInvalidData, node.Name, i)
	}
	r.store.catalog.Nodes[index] = node
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventNodeUpdated, Node: node})
	return nil
}

// Delete 按名称删除节点
func (r *CatalogRepo) Delete(ctx context.Context, name string) error {
	r.store.Lock()
	nodes := r.store.catalog.Nodes
	idx := -1
	for i, n := range nodes {
		if n.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.store.Unlock()
		return fmt.Errorf("%w: %s", repository.ErrNodeNotFound, name)
	}
	removed := nodes[idx]
	r.store.catalog.Nodes = append(nodes[:idx:idx], nodes[idx+1:]...)
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventNodeDeleted, Node: removed})
	return nil
}

// Replace 整体替换目录，返回规范化后的结果。
func (r *CatalogRepo) Replace(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error) {
	for _, node := range catalog.Nodes {
		if err := validateNode(node); err != nil {
			return domain.Catalog{}, err
		}
	}
	normalized := normalizeCatalog(catalog)
	if dropped := len(catalog.Nodes) - len(normalized.Nodes); dropped > 0 {
		r.log.Warn("duplicate nodes dropped on replace", zap.Int("count", dropped))
	}

	r.store.Lock()
	r.store.catalog = normalized
	out := normalized.Clone()
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventReplaced})
	return out, nil
}

// SetLocal 设置本地监听地址与端口
func (r *CatalogRepo) SetLocal(ctx context.Context, local domain.LocalEndpoint) error {
	if strings.TrimSpace(local.Address) == "" || local.Port == 0 {
		return fmt.Errorf("%w: local endpoint requires addr and port", repository.ErrInvalidData)
	}
	r.store.Lock()
	r.store.catalog.Local = local
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventLocalChanged})
	return nil
}

func (r *CatalogRepo) SetLocalAddr(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("%w: empty local addr", repository.ErrInvalidData)
	}
	r.store.Lock()
	r.store.catalog.Local.Address = addr
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventLocalChanged})
	return nil
}

func (r *CatalogRepo) SetLocalPort(ctx context.Context, port uint16) error {
	if port == 0 {
		return fmt.Errorf("%w: local port must be > 0", repository.ErrInvalidData)
	}
	r.store.Lock()
	r.store.catalog.Local.Port = port
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventLocalChanged})
	return nil
}

// SetPAC 设置 PAC 地址
func (r *CatalogRepo) SetPAC(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: empty pac url", repository.ErrInvalidData)
	}
	r.store.Lock()
	r.store.catalog.PAC = url
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventPACChanged})
	return nil
}

// SetLogLevel 设置受管进程日志等级
func (r *CatalogRepo) SetLogLevel(ctx context.Context, level domain.LogLevel) error {
	parsed, err := domain.ParseLogLevel(string(level))
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidData, err)
	}
	r.store.Lock()
	r.store.catalog.LogLevel = parsed
	r.store.Unlock()

	r.store.PublishEvent(events.CatalogEvent{EventType: events.EventLogLevel})
	return nil
}

func validateNode(node domain.ServerNode) error {
	if strings.TrimSpace(node.Name) == "" {
		return fmt.Errorf("%w: node name is required", repository.ErrInvalidData)
	}
	if strings.TrimSpace(node.Address) == "" {
		return fmt.Errorf("%w: node addr is required", repository.ErrInvalidData)
	}
	if node.Port == 0 {
		return fmt.Errorf("%w: node port must be > 0", repository.ErrInvalidData)
	}
	return nil
}

var _ repository.CatalogRepository = (*CatalogRepo)(nil)
