package sysproxy

import (
	"context"
	"strings"

	"hunter/backend/service/shared"
)

// Desktop Linux 桌面环境
type Desktop string

const (
	DesktopKDE   Desktop = "KDE"
	DesktopGNOME Desktop = "GNOME"
)

const (
	kioslaverc        = "kioslaverc"
	kdeProxyGroup     = "Proxy Settings"
	kdeProxyTypeAuto  = "2"
	kdeProxyTypeNone  = "0"
	gnomeProxySchema  = "org.gnome.system.proxy"
	gnomeProxyModeKey = "mode"
)

// DetectDesktop 依据 XDG_SESSION_DESKTOP（回落 XDG_CURRENT_DESKTOP）判断桌面环境。
func DetectDesktop(getenv func(string) string) (Desktop, error) {
	raw := strings.TrimSpace(getenv("XDG_SESSION_DESKTOP"))
	if raw == "" {
		raw = strings.TrimSpace(getenv("XDG_CURRENT_DESKTOP"))
	}
	if d, ok := parseDesktop(raw); ok {
		return d, nil
	}
	return "", &UnsupportedDesktopError{Desktop: raw}
}

func parseDesktop(raw string) (Desktop, bool) {
	for _, part := range strings.Split(raw, ":") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "kde", "plasma", "plasmawayland":
			return DesktopKDE, true
		case "gnome", "gnome-xorg", "gnome-wayland", "ubuntu", "unity", "cinnamon", "pop":
			return DesktopGNOME, true
		}
	}
	return "", false
}

// NewDesktop 返回对应桌面环境的实现
func NewDesktop(desktop Desktop, runner shared.Runner) Adapter {
	if desktop == DesktopKDE {
		return &KDE{runner: runner}
	}
	return &GNOME{runner: runner}
}

// KDE 通过 kwriteconfig5/kreadconfig5 读写 kioslaverc
type KDE struct {
	runner shared.Runner
}

func (k *KDE) write(ctx context.Context, key, value string) error {
	_, err := k.runner.Run(ctx, "kwriteconfig5",
		"--file", kioslaverc, "--group", kdeProxyGroup, "--key", key, value)
	return err
}

func (k *KDE) Enable(ctx context.Context, pac string) error {
	if err := k.write(ctx, "ProxyType", kdeProxyTypeAuto); err != nil {
		return err
	}
	return k.write(ctx, "Proxy Config Script", pac)
}

func (k *KDE) Disable(ctx context.Context) error {
	return k.write(ctx, "ProxyType", kdeProxyTypeNone)
}

func (k *KDE) Enabled(ctx context.Context) (bool, error) {
	out, err := k.runner.Run(ctx, "kreadconfig5",
		"--file", kioslaverc, "--group", kdeProxyGroup, "--key", "ProxyType")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == kdeProxyTypeAuto, nil
}

// GNOME 通过 gsettings 修改 org.gnome.system.proxy
type GNOME struct {
	runner shared.Runner
}

func (g *GNOME) set(ctx context.Context, key, value string) error {
	_, err := g.runner.Run(ctx, "gsettings", "set", gnomeProxySchema, key, value)
	return err
}

func (g *GNOME) Enable(ctx context.Context, pac string) error {
	if err := g.set(ctx, gnomeProxyModeKey, "auto"); err != nil {
		return err
	}
	return g.set(ctx, "autoconfig-url", pac)
}

func (g *GNOME) Disable(ctx context.Context) error {
	return g.set(ctx, gnomeProxyModeKey, "none")
}

func (g *GNOME) Enabled(ctx context.Context) (bool, error) {
	out, err := g.runner.Run(ctx, "gsettings", "get", gnomeProxySchema, gnomeProxyModeKey)
	if err != nil {
		return false, err
	}
	// gsettings 输出 GVariant 字符串：'auto'
	return strings.Trim(strings.TrimSpace(out), `'"`) == "auto", nil
}

var (
	_ Adapter = (*KDE)(nil)
	_ Adapter = (*GNOME)(nil)
)
