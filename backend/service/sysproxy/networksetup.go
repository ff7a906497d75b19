package sysproxy

import (
	"context"
	"regexp"
	"strings"

	"hunter/backend/service/shared"
)

var (
	routerRe  = regexp.MustCompile(`(?m)^Router: (.+)$`)
	enabledRe = regexp.MustCompile(`(?m)^Enabled: (.+)$`)
)

// NetworkSetup macOS 实现，绑定构造时解析出的活动网络服务。
type NetworkSetup struct {
	runner  shared.Runner
	service string
}

// NewNetworkSetup 解析活动网络服务：按系统列出的顺序，第一个配置了路由器的服务。
func NewNetworkSetup(ctx context.Context, runner shared.Runner) (*NetworkSetup, error) {
	service, err := activeNetworkService(ctx, runner)
	if err != nil {
		return nil, err
	}
	return &NetworkSetup{runner: runner, service: service}, nil
}

func (n *NetworkSetup) Service() string { return n.service }

func (n *NetworkSetup) Enable(ctx context.Context, pac string) error {
	_, err := n.runner.Run(ctx, "networksetup", "-setautoproxyurl", n.service, pac)
	return err
}

func (n *NetworkSetup) Disable(ctx context.Context) error {
	_, err := n.runner.Run(ctx, "networksetup", "-setautoproxystate", n.service, "off")
	return err
}

func (n *NetworkSetup) Enabled(ctx context.Context) (bool, error) {
	out, err := n.runner.Run(ctx, "networksetup", "-getautoproxyurl", n.service)
	if err != nil {
		return false, err
	}
	m := enabledRe.FindStringSubmatch(normalizeNewlines(out))
	if m == nil {
		return false, nil
	}
	return strings.TrimSpace(m[1]) != "No", nil
}

func activeNetworkService(ctx context.Context, runner shared.Runner) (string, error) {
	out, err := runner.Run(ctx, "networksetup", "-listallnetworkservices")
	if err != nil {
		return "", err
	}

	lines := strings.Split(normalizeNewlines(out), "\n")
	// 第一行是说明文字（An asterisk (*) denotes that a network service is disabled.）
	if len(lines) > 0 {
		lines = lines[1:]
	}
	for _, line := range lines {
		svc := strings.TrimSpace(line)
		if svc == "" || strings.HasPrefix(svc, "*") {
			continue
		}
		info, err := runner.Run(ctx, "networksetup", "-getinfo", svc)
		if err != nil {
			return "", err
		}
		if hasRouter(info) {
			return svc, nil
		}
	}
	return "", ErrNoActiveService
}

func hasRouter(info string) bool {
	for _, m := range routerRe.FindAllStringSubmatch(normalizeNewlines(info), -1) {
		if r := strings.TrimSpace(m[1]); r != "" && r != "none" {
			return true
		}
	}
	return false
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

var _ Adapter = (*NetworkSetup)(nil)
