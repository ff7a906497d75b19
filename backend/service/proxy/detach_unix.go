//go:build !windows

package proxy

import (
	"os/exec"
	"syscall"
)

// detach 让子进程脱离本程序的进程组，守护模式下本程序退出不会带走它。
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
