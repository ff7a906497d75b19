package shared

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"hunter/backend/domain"
)

// Runner 执行外部命令并返回标准输出。
// 失败（无法启动或非零退出）统一返回 *domain.CommandError。
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner 基于 os/exec 的 Runner
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &domain.CommandError{
			Command: name,
			Args:    args,
			Stderr:  strings.TrimSpace(decodeOutput(stderr.Bytes())),
			Err:     err,
		}
	}
	return decodeOutput(stdout.Bytes()), nil
}
