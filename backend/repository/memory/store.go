package memory

import (
	"sync"

	"hunter/backend/domain"
	"hunter/backend/repository/events"
)

// Store 内存存储引擎：只承载节点目录这一份状态。
type Store struct {
	mu sync.RWMutex

	catalog domain.Catalog

	// 事件总线
	eventBus *events.Bus
}

// NewStore 创建新的内存存储（初始为默认目录）
func NewStore(eventBus *events.Bus) *Store {
	return &Store{
		catalog:  domain.DefaultCatalog(),
		eventBus: eventBus,
	}
}

// ========== 锁操作（供仓储使用）==========

// Lock 获取写锁
func (s *Store) Lock() { s.mu.Lock() }

// Unlock 释放写锁
func (s *Store) Unlock() { s.mu.Unlock() }

// ========== 事件发布 ==========

// PublishEvent 发布事件（异步，应在锁外调用）
func (s *Store) PublishEvent(event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(event)
	}
}

// ========== 快照与恢复 ==========

// Snapshot 生成目录快照（深拷贝）
func (s *Store) Snapshot() domain.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.Clone()
}

// LoadState 加载目录。缺省字段回落到默认值，重复节点按 Add 规则丢弃。
func (s *Store) LoadState(catalog domain.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = normalizeCatalog(catalog)
}

func normalizeCatalog(in domain.Catalog) domain.Catalog {
	def := domain.DefaultCatalog()
	out := domain.Catalog{
		Local:    in.Local,
		PAC:      in.PAC,
		LogLevel: in.LogLevel,
		Nodes:    make([]domain.ServerNode, 0, len(in.Nodes)),
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
	for _, node := range in.Nodes {
		if conflictIndex(out.Nodes, node, -1) >= 0 {
			continue
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out
}

// conflictIndex 返回与 node 同名或同地址的节点下标（忽略 skip），不存在返回 -1。
func conflictIndex(nodes []domain.ServerNode, node domain.ServerNode, skip int) int {
	for i, n := range nodes {
		if i == skip {
			continue
		}
		if n.Name == node.Name || n.Address == node.Address {
			return i
		}
	}
	return -1
}
