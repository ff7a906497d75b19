package proxy

import (
	"fmt"
	"time"

	"hunter/backend/service/applog"
)

// LogStream 子进程日志流
type LogStream string

const (
	StreamStdout LogStream = "stdout"
	StreamStderr LogStream = "stderr"
)

// ChildLogSnapshot 子进程日志的一段增量
type ChildLogSnapshot struct {
	Session   string    `json:"session,omitempty"`
	Stream    LogStream `json:"stream"`
	Pid       uint32    `json:"pid,omitempty"`
	StartedAt string    `json:"startedAt,omitempty"`
	Path      string    `json:"path"`

	applog.Chunk

	Error string `json:"error,omitempty"`
}

// ParseLogStream 解析日志流名称，空值视为 stdout。
func ParseLogStream(raw string) (LogStream, error) {
	switch raw {
	case "", string(StreamStdout):
		return StreamStdout, nil
	case string(StreamStderr):
		return StreamStderr, nil
	default:
		return "", fmt.Errorf("unknown log stream: %q", raw)
	}
}

// ChildLogs 读取子进程 stdout/stderr 日志文件自 since 起的内容
func (s *Service) ChildLogs(stream LogStream, since int64) ChildLogSnapshot {
	s.mu.RLock()
	session := s.session
	startedAt := s.startedAt
	pid := s.childPID
	s.mu.RUnlock()

	path := s.paths.ChildOutLog()
	if stream == StreamStderr {
		path = s.paths.ChildErrLog()
	} else {
		stream = StreamStdout
	}

	snap := ChildLogSnapshot{
		Session: session,
		Stream:  stream,
		Pid:     pid,
		Path:    path,
	}
	if !startedAt.IsZero() {
		snap.StartedAt = startedAt.Format(time.RFC3339Nano)
	}

	chunk, err := applog.ReadChunk(path, since, applog.MaxChunkBytes)
	snap.Chunk = chunk
	if err != nil {
		snap.Error = err.Error()
	}
	return snap
}
