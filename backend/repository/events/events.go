package events

import "hunter/backend/domain"

// EventType 事件类型
type EventType string

const (
	EventNodeAdded    EventType = "catalog.node_added"
	EventNodeUpdated  EventType = "catalog.node_updated"
	EventNodeDeleted  EventType = "catalog.node_deleted"
	EventLocalChanged EventType = "catalog.local_changed"
	EventPACChanged   EventType = "catalog.pac_changed"
	EventLogLevel     EventType = "catalog.log_level_changed"
	EventReplaced     EventType = "catalog.replaced"

	// 通配符事件（用于订阅所有事件）
	EventAll EventType = "*"
)

// Event 事件接口
type Event interface {
	Type() EventType
}

// CatalogEvent 目录变更事件。Node 仅在节点类事件中有值。
type CatalogEvent struct {
	EventType EventType
	Node      domain.ServerNode
}

func (e CatalogEvent) Type() EventType { return e.EventType }
