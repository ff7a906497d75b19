package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExecutableNotFound = errors.New("managed executable not found")
	ErrCommandFailed      = errors.New("command failed")
	ErrOSAPI              = errors.New("os api call failed")
	ErrDecode             = errors.New("malformed structured data")
	ErrIndexOutOfRange    = errors.New("index out of range")
)

// CommandError 外部命令执行失败（非零退出码或无法启动）。
type CommandError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	cmdline := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("%s failed: %v (%s)", cmdline, e.Err, msg)
}

func (e *CommandError) Unwrap() []error { return []error{ErrCommandFailed, e.Err} }

// OSAPIError 注册表等系统 API 调用失败。
type OSAPIError struct {
	Op  string
	Key string
	Err error
}

func (e *OSAPIError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *OSAPIError) Unwrap() []error { return []error{ErrOSAPI, e.Err} }

// DecodeError 持久化文件或外部配置文件格式错误。
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// ExecutableNotFoundError 受管可执行文件尚未下载/解压。
type ExecutableNotFoundError struct {
	Path string
}

func (e *ExecutableNotFoundError) Error() string {
	if e == nil || e.Path == "" {
		return ErrExecutableNotFound.Error()
	}
	return fmt.Sprintf("%s: %s", ErrExecutableNotFound.Error(), e.Path)
}

func (e *ExecutableNotFoundError) Unwrap() error { return ErrExecutableNotFound }

// IndexOutOfRangeError update(index) 越界（index > len）。
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("node index %d out of range [0, %d]", e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }
