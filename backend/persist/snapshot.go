package persist

import (
	"fmt"
	"sync"
	"time"

	"hunter/backend/repository"
	"hunter/backend/repository/events"

	"go.uber.org/zap"
)

// Snapshotter 目录快照管理器：目录变更后防抖写盘。
type Snapshotter struct {
	path  string
	store repository.Snapshottable
	log   *zap.Logger

	mu       sync.Mutex
	pending  bool
	dirty    bool
	debounce time.Duration
	idle     *sync.Cond

	saveMu sync.Mutex
}

// NewSnapshotter 创建快照管理器
func NewSnapshotter(path string, store repository.Snapshottable) *Snapshotter {
	s := &Snapshotter{
		path:     path,
		store:    store,
		log:      zap.L().Named("snapshot"),
		debounce: 200 * time.Millisecond,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Path 目录文件路径
func (s *Snapshotter) Path() string { return s.path }

// SetDebounce 设置防抖延迟
func (s *Snapshotter) SetDebounce(d time.Duration) {
	s.mu.Lock()
	s.debounce = d
	s.mu.Unlock()
}

// SubscribeEvents 订阅事件总线（所有目录变更触发持久化）
func (s *Snapshotter) SubscribeEvents(bus *events.Bus) {
	bus.SubscribeAll(func(event events.Event) {
		s.Schedule()
	})
}

// Schedule 调度快照（防抖）
func (s *Snapshotter) Schedule() {
	s.mu.Lock()
	if s.pending {
		s.dirty = true
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.dirty = false
	s.mu.Unlock()

	go func() {
		for {
			s.mu.Lock()
			debounce := s.debounce
			s.mu.Unlock()

			time.Sleep(debounce)
			_ = s.save()

			s.mu.Lock()
			if s.dirty {
				s.dirty = false
				s.mu.Unlock()
				continue
			}
			s.pending = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
	}()
}

// WaitIdle 等待挂起的防抖保存完成
func (s *Snapshotter) WaitIdle(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.pending {
			s.idle.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("snapshot still pending after %s", timeout)
	}
}

// SaveNow 立即保存（同步）
func (s *Snapshotter) SaveNow() error {
	return s.save()
}

// Load 读取目录文件并装载进存储
func (s *Snapshotter) Load() error {
	catalog, err := Load(s.path)
	if err != nil {
		return err
	}
	s.store.LoadState(catalog)
	return nil
}

func (s *Snapshotter) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := Save(s.path, s.store.Snapshot()); err != nil {
		s.log.Error("save catalog failed", zap.String("path", s.path), zap.Error(err))
		return err
	}
	return nil
}
