package proxy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"

	"hunter/backend/service/shared"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ProcessInfo 进程表中的一项。Args 不含 argv[0]。
type ProcessInfo struct {
	PID  uint32
	Args []string
}

// ProcessTable 按可执行文件名精确查找进程，结果按 pid 升序。
type ProcessTable interface {
	Find(ctx context.Context, name string) ([]ProcessInfo, error)
}

// Killer 强制结束进程
type Killer interface {
	Kill(ctx context.Context, pid uint32) error
}

// SpawnSpec 启动参数
type SpawnSpec struct {
	Path   string
	Args   []string
	Dir    string
	Stdout io.WriteCloser
	Stderr io.WriteCloser
}

// Spawner 启动子进程并返回 pid。子进程退出后负责关闭 Stdout/Stderr。
type Spawner interface {
	Spawn(spec SpawnSpec) (uint32, error)
}

// GopsutilTable 基于 gopsutil 的进程表
type GopsutilTable struct{}

func (GopsutilTable) Find(ctx context.Context, name string) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	candidates := make([]candidate, 0, len(procs))
	for _, p := range procs {
		candidates = append(candidates, candidate{pid: p.Pid, proc: p})
	}
	return matchByName(ctx, name, candidates), nil
}

// processHandle gopsutil 进程上用到的两个方法
type processHandle interface {
	NameWithContext(ctx context.Context) (string, error)
	CmdlineSliceWithContext(ctx context.Context) ([]string, error)
}

type candidate struct {
	pid  int32
	proc processHandle
}

// matchByName 过滤出名称完全一致的进程，按 pid 升序。
// 命令行读不到（其他用户或提权进程）时保留该项且 Args 为 nil，由上层归为 Other。
func matchByName(ctx context.Context, name string, candidates []candidate) []ProcessInfo {
	out := make([]ProcessInfo, 0, 1)
	for _, c := range candidates {
		pname, err := c.proc.NameWithContext(ctx)
		if err != nil || pname != name {
			// 进程可能在枚举期间退出
			continue
		}
		var args []string
		cmdline, err := c.proc.CmdlineSliceWithContext(ctx)
		if err != nil {
			zap.L().Named("proxy").Debug("cmdline unreadable",
				zap.Int32("pid", c.pid), zap.Error(err))
		} else if len(cmdline) > 1 {
			args = append(args, cmdline[1:]...)
		}
		out = append(out, ProcessInfo{PID: uint32(c.pid), Args: args})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// CommandKiller 通过 kill -9 / taskkill /F 结束进程
type CommandKiller struct {
	Runner shared.Runner
}

func (k CommandKiller) Kill(ctx context.Context, pid uint32) error {
	if pid == 0 {
		return nil
	}
	id := strconv.FormatUint(uint64(pid), 10)
	var err error
	if runtime.GOOS == "windows" {
		_, err = k.Runner.Run(ctx, "taskkill", "/F", "/PID", id)
	} else {
		_, err = k.Runner.Run(ctx, "kill", "-9", id)
	}
	return err
}

// ExecSpawner 基于 os/exec 的 Spawner
type ExecSpawner struct {
	log *zap.Logger
}

func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{log: zap.L().Named("proxy")}
}

func (s *ExecSpawner) Spawn(spec SpawnSpec) (uint32, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	}
	cmd.Env = os.Environ()
	detach(cmd)

	if err := cmd.Start(); err != nil {
		closeAll(spec.Stdout, spec.Stderr)
		return 0, fmt.Errorf("spawn %s: %w", spec.Path, err)
	}

	pid := uint32(cmd.Process.Pid)
	// 回收子进程，避免僵尸进程
	go func() {
		err := cmd.Wait()
		closeAll(spec.Stdout, spec.Stderr)
		s.log.Info("child exited", zap.Uint32("pid", pid), zap.Error(err))
	}()
	return pid, nil
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}
}
