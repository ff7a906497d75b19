package proxy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hunter/backend/domain"
	"hunter/backend/service/clientconf"
	"hunter/backend/service/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigWriter 写入由节点派生的外部配置
type ConfigWriter interface {
	WriteNode(node domain.ServerNode, local domain.LocalEndpoint, level domain.LogLevel) error
}

// Options 进程监管器依赖
type Options struct {
	Paths   shared.Paths
	Table   ProcessTable
	Killer  Killer
	Spawner Spawner
	Writer  ConfigWriter
}

// Service 进程监管器。
// childPID/daemon 由同一把读写锁保护；所有启动、结束、切换都持有写锁。
type Service struct {
	paths   shared.Paths
	table   ProcessTable
	killer  Killer
	spawner Spawner
	writer  ConfigWriter
	log     *zap.Logger

	mu       sync.RWMutex
	childPID uint32
	daemon   bool

	// 最近一次启动的会话信息（仅用于日志展示）
	session   string
	startedAt time.Time
}

// NewService 创建进程监管器。未注入的依赖使用真实实现。
func NewService(opts Options) *Service {
	s := &Service{
		paths:   opts.Paths,
		table:   opts.Table,
		killer:  opts.Killer,
		spawner: opts.Spawner,
		writer:  opts.Writer,
		log:     zap.L().Named("proxy"),
	}
	if s.table == nil {
		s.table = GopsutilTable{}
	}
	if s.killer == nil {
		s.killer = CommandKiller{Runner: shared.ExecRunner{}}
	}
	if s.spawner == nil {
		s.spawner = NewExecSpawner()
	}
	if s.writer == nil {
		s.writer = clientconf.Writer{Path: opts.Paths.ExternalConfig(), LogFile: opts.Paths.ChildLogFile()}
	}
	return s
}

// State 监管器自身的簿记（不查询进程表）
type State struct {
	ChildPID uint32 `json:"childPid"`
	Daemon   bool   `json:"daemon"`
}

// State 返回当前簿记快照
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{ChildPID: s.childPID, Daemon: s.daemon}
}

func (s *Service) ChildPID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childPID
}

func (s *Service) Daemon() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daemon
}

// ToggleDaemon 翻转守护标记，返回新值。
func (s *Service) ToggleDaemon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daemon = !s.daemon
	s.log.Info("daemon flag toggled", zap.Bool("daemon", s.daemon))
	return s.daemon
}

// ExecutablePath 受管可执行文件路径
func (s *Service) ExecutablePath() string { return s.paths.Executable() }

// ExternalConfigPath 外部配置文件路径
func (s *Service) ExternalConfigPath() string { return s.paths.ExternalConfig() }

// ExecutableExists 受管可执行文件是否已就位
func (s *Service) ExecutableExists() bool {
	st, err := os.Stat(s.paths.Executable())
	return err == nil && !st.IsDir()
}

// Inspect 按可执行文件名检测已运行的进程并分类。
// 命中 Daemon 时把该 pid 收养为子进程并置 daemon=true，因此持有写锁。
func (s *Service) Inspect(ctx context.Context, catalog domain.Catalog) (domain.ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	procs, err := s.table.Find(ctx, shared.ExecutableName())
	if err != nil {
		return domain.ProcessState{}, err
	}
	if len(procs) == 0 {
		return domain.NoProcess(), nil
	}
	if len(procs) > 1 {
		s.log.Warn("multiple managed processes found, using lowest pid",
			zap.Int("count", len(procs)), zap.Uint32("pid", procs[0].PID))
	}

	p := procs[0]
	if !s.matchesInvocation(p.Args) {
		return domain.OtherProcess(p.PID), nil
	}

	node, err := clientconf.Resolve(catalog, s.paths.ExternalConfig())
	if err != nil {
		return domain.ProcessState{}, err
	}
	if node == nil {
		return domain.InvalidProcess(p.PID), nil
	}

	s.childPID = p.PID
	s.daemon = true
	return domain.DaemonProcess(p.PID, *node), nil
}

// matchesInvocation 参数必须恰好是 -config <外部配置路径>
func (s *Service) matchesInvocation(args []string) bool {
	if len(args) != 2 || args[0] != "-config" {
		return false
	}
	return filepath.Clean(args[1]) == filepath.Clean(s.paths.ExternalConfig())
}

// Launch 启动受管进程，新进程默认守护（本程序退出时保留）。
func (s *Service) Launch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launchLocked()
}

func (s *Service) launchLocked() error {
	exe := s.paths.Executable()
	if st, err := os.Stat(exe); err != nil || st.IsDir() {
		return &domain.ExecutableNotFoundError{Path: exe}
	}

	session := uuid.NewString()
	header := fmt.Sprintf("----- launch %s session=%s -----\n", time.Now().Format(time.RFC3339Nano), session)

	stdout, err := openTrunc(s.paths.ChildOutLog(), header)
	if err != nil {
		return fmt.Errorf("create child stdout log: %w", err)
	}
	stderr, err := openTrunc(s.paths.ChildErrLog(), header)
	if err != nil {
		_ = stdout.Close()
		return fmt.Errorf("create child stderr log: %w", err)
	}

	pid, err := s.spawner.Spawn(SpawnSpec{
		Path:   exe,
		Args:   []string{"-config", s.paths.ExternalConfig()},
		Dir:    filepath.Dir(exe),
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return err
	}

	s.childPID = pid
	s.daemon = true
	s.session = session
	s.startedAt = time.Now()
	s.log.Info("child launched", zap.Uint32("pid", pid), zap.String("session", session))
	return nil
}

func openTrunc(path, header string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	_, _ = f.WriteString(header)
	return f, nil
}

// Terminate 结束进程。
// pid 非空时强杀指定 pid，不改动守护标记；pid 为空时结束当前子进程并复位 childPID/daemon。
func (s *Service) Terminate(ctx context.Context, pid *uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pid != nil {
		if *pid == 0 {
			return nil
		}
		if err := s.killer.Kill(ctx, *pid); err != nil {
			return fmt.Errorf("kill pid %d: %w", *pid, err)
		}
		if *pid == s.childPID {
			s.childPID = 0
		}
		s.log.Info("process killed", zap.Uint32("pid", *pid))
		return nil
	}

	if err := s.killChildLocked(ctx); err != nil {
		return err
	}
	s.daemon = false
	return nil
}

func (s *Service) killChildLocked(ctx context.Context) error {
	if s.childPID == 0 {
		return nil
	}
	pid := s.childPID
	if err := s.killer.Kill(ctx, pid); err != nil {
		return fmt.Errorf("kill child %d: %w", pid, err)
	}
	s.childPID = 0
	s.log.Info("child killed", zap.Uint32("pid", pid))
	return nil
}

// SwitchNode 结束当前子进程、写入新节点的外部配置并重新启动，全程持有写锁。
// node 由调用方在释放目录锁之后传入；中途失败时 childPID 保持为 0，不回滚。
func (s *Service) SwitchNode(ctx context.Context, node domain.ServerNode, local domain.LocalEndpoint, level domain.LogLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.killChildLocked(ctx); err != nil {
		return err
	}
	s.childPID = 0

	if err := s.writer.WriteNode(node, local, level); err != nil {
		return err
	}
	if err := s.launchLocked(); err != nil {
		return err
	}
	s.log.Info("switched node", zap.String("node", node.Name), zap.Uint32("pid", s.childPID))
	return nil
}

// Reap 子进程自行退出后清除 childPID，避免退出钩子误杀复用的 pid。
// 返回是否清除了记录。
func (s *Service) Reap(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.childPID == 0 {
		return false, nil
	}
	procs, err := s.table.Find(ctx, shared.ExecutableName())
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		if p.PID == s.childPID {
			return false, nil
		}
	}
	s.log.Warn("child exited on its own", zap.Uint32("pid", s.childPID))
	s.childPID = 0
	return true, nil
}

// WriteConfig 只写外部配置、不重启子进程；与切换共用写锁，避免交错写文件。
func (s *Service) WriteConfig(node domain.ServerNode, local domain.LocalEndpoint, level domain.LogLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.WriteNode(node, local, level); err != nil {
		return err
	}
	s.log.Info("external config written", zap.String("node", node.Name))
	return nil
}

// Shutdown 退出钩子：非守护模式下结束子进程。返回是否结束了子进程。
func (s *Service) Shutdown(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daemon || s.childPID == 0 {
		return false, nil
	}
	if err := s.killChildLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}
