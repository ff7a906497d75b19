package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultLocalAddr = "127.0.0.1"
	DefaultLocalPort = 1086
	DefaultPAC       = "https://mirror.ghproxy.com/https://raw.githubusercontent.com/thep0y/pac/main/blacklist.pac"
)

// ServerNode 服务器节点（名称唯一）。
// 存储后视为不可变值，只能整体替换。
type ServerNode struct {
	Name     string `json:"name" toml:"name"`
	Address  string `json:"addr" toml:"addr"`
	Port     uint16 `json:"port" toml:"port"`
	Password string `json:"password" toml:"password"`
}

// LocalEndpoint 本地 SOCKS 入站监听地址
type LocalEndpoint struct {
	Address string `json:"addr"`
	Port    uint16 `json:"port"`
}

// SocksURL 返回本地代理 URL（socks5h，由代理端解析域名）。
func (e LocalEndpoint) SocksURL() string {
	return fmt.Sprintf("socks5h://%s:%d", e.Address, e.Port)
}

// LogLevel 受管进程的日志等级
type LogLevel string

const (
	LogTrace LogLevel = "Trace"
	LogDebug LogLevel = "Debug"
	LogInfo  LogLevel = "Info"
	LogWarn  LogLevel = "Warn"
	LogError LogLevel = "Error"
)

// ParseLogLevel 解析日志等级（大小写不敏感）。
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LogTrace, nil
	case "debug":
		return LogDebug, nil
	case "", "info":
		return LogInfo, nil
	case "warn", "warning":
		return LogWarn, nil
	case "error":
		return LogError, nil
	default:
		return "", fmt.Errorf("unknown log level: %q", s)
	}
}

// Wire 返回写入外部配置文件的数值等级。
func (l LogLevel) Wire() int8 {
	switch l {
	case LogTrace:
		return -1
	case LogDebug:
		return 0
	case LogWarn:
		return 2
	case LogError:
		return 3
	default:
		return 1
	}
}

func (l LogLevel) MarshalText() ([]byte, error) {
	if l == "" {
		return []byte(LogInfo), nil
	}
	return []byte(l), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseLogLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Catalog 节点目录：本程序自己的簿记，可能与外部配置文件漂移。
type Catalog struct {
	Local    LocalEndpoint `json:"local"`
	PAC      string        `json:"pac"`
	LogLevel LogLevel      `json:"logLevel"`
	Nodes    []ServerNode  `json:"nodes"`
}

// DefaultCatalog 首次启动（无持久化文件）时使用的目录
func DefaultCatalog() Catalog {
	return Catalog{
		Local:    LocalEndpoint{Address: DefaultLocalAddr, Port: DefaultLocalPort},
		PAC:      DefaultPAC,
		LogLevel: LogInfo,
		Nodes:    []ServerNode{},
	}
}

// Clone 深拷贝（Nodes 切片不共享底层数组）
func (c Catalog) Clone() Catalog {
	out := c
	out.Nodes = append([]ServerNode{}, c.Nodes...)
	return out
}

// FindNode 按名称查找节点
func (c Catalog) FindNode(name string) (ServerNode, bool) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return ServerNode{}, false
}

// ExternalProxyConfig 受管可执行文件直接读取的配置文件。
// 这是子进程实际遵循的唯一事实来源。
type ExternalProxyConfig struct {
	RunType    string   `json:"run_type"`
	LocalAddr  string   `json:"local_addr"`
	LocalPort  uint16   `json:"local_port"`
	RemoteAddr string   `json:"remote_addr"`
	RemotePort uint16   `json:"remote_port"`
	Password   []string `json:"password"`
	LogLevel   int8     `json:"log_level"`
	LogFile    string   `json:"log_file"`
}

const RunTypeClient = "client"

// Matches 判断节点是否与该配置的远端三元组一致。
func (c ExternalProxyConfig) Matches(node ServerNode) bool {
	if len(c.Password) == 0 {
		return false
	}
	return node.Address == c.RemoteAddr &&
		node.Port == c.RemotePort &&
		node.Password == c.Password[0]
}

// ProcessKind 进程检测分类
type ProcessKind string

const (
	ProcessNone    ProcessKind = "NONE"
	ProcessDaemon  ProcessKind = "DAEMON"
	ProcessInvalid ProcessKind = "INVALID"
	ProcessOther   ProcessKind = "OTHER"
)

// ProcessState 按需计算的进程分类结果（不存储）。
// 它是一次快照：调用方拿到结果后进程状态仍可能变化。
type ProcessState struct {
	Kind ProcessKind
	PID  uint32
	Node *ServerNode
}

func NoProcess() ProcessState { return ProcessState{Kind: ProcessNone} }

func DaemonProcess(pid uint32, node ServerNode) ProcessState {
	return ProcessState{Kind: ProcessDaemon, PID: pid, Node: &node}
}

func InvalidProcess(pid uint32) ProcessState {
	return ProcessState{Kind: ProcessInvalid, PID: pid}
}

func OtherProcess(pid uint32) ProcessState {
	return ProcessState{Kind: ProcessOther, PID: pid}
}

func (s ProcessState) String() string {
	switch s.Kind {
	case ProcessDaemon:
		if s.Node != nil {
			return fmt.Sprintf("daemon(pid=%d node=%s)", s.PID, s.Node.Name)
		}
		return fmt.Sprintf("daemon(pid=%d)", s.PID)
	case ProcessInvalid:
		return fmt.Sprintf("invalid(pid=%d)", s.PID)
	case ProcessOther:
		return fmt.Sprintf("other(pid=%d)", s.PID)
	default:
		return "none"
	}
}

type processStateJSON struct {
	Type ProcessKind `json:"type"`
	PID  uint32      `json:"pid,omitempty"`
	Node *ServerNode `json:"node,omitempty"`
}

// MarshalJSON Daemon 只携带节点，Invalid/Other 只携带 pid。
func (s ProcessState) MarshalJSON() ([]byte, error) {
	out := processStateJSON{Type: s.Kind}
	switch s.Kind {
	case ProcessDaemon:
		out.Node = s.Node
	case ProcessInvalid, ProcessOther:
		out.PID = s.PID
	case "":
		out.Type = ProcessNone
	}
	return json.Marshal(out)
}
