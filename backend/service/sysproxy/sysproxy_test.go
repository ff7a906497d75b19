package sysproxy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"hunter/backend/domain"
)

// fakeRunner 模拟外部命令：按命令行查表返回输出，并记录调用。
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]string
	fail    map[string]error
	onRun   func(cmdline string) (string, bool)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	onRun := f.onRun
	out, ok := f.outputs[cmdline]
	err := f.fail[cmdline]
	f.mu.Unlock()

	if err != nil {
		return "", &domain.CommandError{Command: name, Args: args, Stderr: "boom", Err: err}
	}
	if onRun != nil {
		if v, handled := onRun(cmdline); handled {
			return v, nil
		}
	}
	if ok {
		return out, nil
	}
	return "", nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

const listServices = "An asterisk (*) denotes that a network service is disabled.\n*Bluetooth PAN\nThunderbolt Bridge\nWi-Fi\n"

func TestNewNetworkSetup_PicksFirstServiceWithRouter(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	r.outputs["networksetup -listallnetworkservices"] = listServices
	r.outputs["networksetup -getinfo Thunderbolt Bridge"] = "DHCP Configuration\nIP address: 10.0.0.2\nRouter: none\nIPv6: Automatic\n"
	r.outputs["networksetup -getinfo Wi-Fi"] = "DHCP Configuration\nIP address: 192.168.1.5\nSubnet mask: 255.255.255.0\nRouter: 192.168.1.1\n"

	a, err := NewNetworkSetup(context.Background(), r)
	if err != nil {
		t.Fatalf("NewNetworkSetup() error: %v", err)
	}
	if a.Service() != "Wi-Fi" {
		t.Fatalf("Service() = %q, want Wi-Fi", a.Service())
	}
	for _, c := range r.Calls() {
		if strings.Contains(c, "Bluetooth") {
			t.Fatalf("disabled service must not be probed: %q", c)
		}
	}
}

func TestNewNetworkSetup_NoActiveService(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	r.outputs["networksetup -listallnetworkservices"] = listServices
	_, err := NewNetworkSetup(context.Background(), r)
	if !errors.Is(err, ErrNoActiveService) {
		t.Fatalf("expected ErrNoActiveService, got %v", err)
	}
}

// darwinState 模拟 networksetup 的自动代理状态
func darwinState(r *fakeRunner) {
	enabled := false
	url := ""
	r.onRun = func(cmdline string) (string, bool) {
		switch {
		case strings.HasPrefix(cmdline, "networksetup -setautoproxyurl Wi-Fi "):
			url = strings.TrimPrefix(cmdline, "networksetup -setautoproxyurl Wi-Fi ")
			enabled = true
			return "", true
		case cmdline == "networksetup -setautoproxystate Wi-Fi off":
			enabled = false
			return "", true
		case cmdline == "networksetup -getautoproxyurl Wi-Fi":
			state := "No"
			if enabled {
				state = "Yes"
			}
			return "URL: " + url + "\nEnabled: " + state + "\n", true
		}
		return "", false
	}
}

func TestAdapters_EnableThenQueryTrue_DisableThenQueryFalse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		build func(t *testing.T) Adapter
	}{
		{
			name: "darwin",
			build: func(t *testing.T) Adapter {
				r := newFakeRunner()
				r.outputs["networksetup -listallnetworkservices"] = listServices
				r.outputs["networksetup -getinfo Wi-Fi"] = "Router: 192.168.1.1\n"
				darwinState(r)
				a, err := NewNetworkSetup(context.Background(), r)
				if err != nil {
					t.Fatalf("NewNetworkSetup() error: %v", err)
				}
				return a
			},
		},
		{
			name: "kde",
			build: func(t *testing.T) Adapter {
				r := newFakeRunner()
				proxyType := "0"
				r.onRun = func(cmdline string) (string, bool) {
					const prefix = "kwriteconfig5 --file kioslaverc --group Proxy Settings --key ProxyType "
					if strings.HasPrefix(cmdline, prefix) {
						proxyType = strings.TrimPrefix(cmdline, prefix)
						return "", true
					}
					if cmdline == "kreadconfig5 --file kioslaverc --group Proxy Settings --key ProxyType" {
						return proxyType + "\n", true
					}
					return "", false
				}
				return NewDesktop(DesktopKDE, r)
			},
		},
		{
			name: "gnome",
			build: func(t *testing.T) Adapter {
				r := newFakeRunner()
				mode := "none"
				r.onRun = func(cmdline string) (string, bool) {
					const prefix = "gsettings set org.gnome.system.proxy mode "
					if strings.HasPrefix(cmdline, prefix) {
						mode = strings.TrimPrefix(cmdline, prefix)
						return "", true
					}
					if cmdline == "gsettings get org.gnome.system.proxy mode" {
						return "'" + mode + "'\n", true
					}
					return "", false
				}
				return NewDesktop(DesktopGNOME, r)
			},
		},
		{
			name: "windows",
			build: func(t *testing.T) Adapter {
				return NewRegistry(newFakeStore())
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			a := tc.build(t)

			if on, err := a.Enabled(ctx); err != nil || on {
				t.Fatalf("initial Enabled() = %v, %v; want false", on, err)
			}
			for i := 0; i < 2; i++ {
				if err := a.Enable(ctx, "http://pac.local/a.pac"); err != nil {
					t.Fatalf("Enable() #%d error: %v", i+1, err)
				}
			}
			if on, err := a.Enabled(ctx); err != nil || !on {
				t.Fatalf("Enabled() after Enable = %v, %v; want true", on, err)
			}
			for i := 0; i < 2; i++ {
				if err := a.Disable(ctx); err != nil {
					t.Fatalf("Disable() #%d error: %v", i+1, err)
				}
			}
			if on, err := a.Enabled(ctx); err != nil || on {
				t.Fatalf("Enabled() after Disable = %v, %v; want false", on, err)
			}
		})
	}
}

func TestKDE_EnableWritesConfigScript(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	if err := NewDesktop(DesktopKDE, r).Enable(context.Background(), "http://pac.local/a.pac"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	calls := r.Calls()
	want := "kwriteconfig5 --file kioslaverc --group Proxy Settings --key Proxy Config Script http://pac.local/a.pac"
	if len(calls) != 2 || calls[1] != want {
		t.Fatalf("unexpected calls: %q", calls)
	}
}

func TestNetworkSetup_EnabledMissingLineIsFalse(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	r.outputs["networksetup -listallnetworkservices"] = listServices
	r.outputs["networksetup -getinfo Wi-Fi"] = "Router: 192.168.1.1\n"
	r.outputs["networksetup -getautoproxyurl Wi-Fi"] = "URL: (null)\n"
	a, err := NewNetworkSetup(context.Background(), r)
	if err != nil {
		t.Fatalf("NewNetworkSetup() error: %v", err)
	}
	if on, err := a.Enabled(context.Background()); err != nil || on {
		t.Fatalf("Enabled() = %v, %v; want false", on, err)
	}
}

func TestCommandFailureSurfacesCommandError(t *testing.T) {
	t.Parallel()

	r := newFakeRunner()
	r.fail["gsettings set org.gnome.system.proxy mode auto"] = errors.New("exit status 1")

	err := NewDesktop(DesktopGNOME, r).Enable(context.Background(), "http://pac.local/a.pac")
	var cmdErr *domain.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Command != "gsettings" {
		t.Fatalf("expected gsettings CommandError, got %v", err)
	}
	if !errors.Is(err, domain.ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
}

func TestDetectDesktop(t *testing.T) {
	t.Parallel()

	cases := []struct {
		session, current string
		want             Desktop
		wantErr          bool
	}{
		{session: "KDE", want: DesktopKDE},
		{session: "gnome", want: DesktopGNOME},
		{session: "", current: "ubuntu:GNOME", want: DesktopGNOME},
		{session: "", current: "KDE", want: DesktopKDE},
		{session: "xfce", wantErr: true},
		{wantErr: true},
	}
	for _, tc := range cases {
		env := map[string]string{"XDG_SESSION_DESKTOP": tc.session, "XDG_CURRENT_DESKTOP": tc.current}
		got, err := DetectDesktop(func(k string) string { return env[k] })
		if tc.wantErr {
			var unsupported *UnsupportedDesktopError
			if !errors.As(err, &unsupported) {
				t.Fatalf("DetectDesktop(%q,%q) expected UnsupportedDesktopError, got %v", tc.session, tc.current, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("DetectDesktop(%q,%q) = %q, %v; want %q", tc.session, tc.current, got, err, tc.want)
		}
	}
}

func TestNewForOS_UnknownPlatform(t *testing.T) {
	t.Parallel()

	_, err := newForOS(context.Background(), "plan9", newFakeRunner(), func(string) string { return "" })
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

type fakeStore struct {
	mu        sync.Mutex
	values    map[string]string
	refreshed int
}

func newFakeStore() *fakeStore { return &fakeStore{values: map[string]string{}} }

func (s *fakeStore) GetString(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name], nil
}

func (s *fakeStore) SetString(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

func (s *fakeStore) Refresh() error {
	s.mu.Lock()
	s.refreshed++
	s.mu.Unlock()
	return nil
}

func TestRegistry_WritesAutoConfigURL(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewRegistry(store)
	if err := r.Enable(context.Background(), "http://pac.local/a.pac"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if store.values["AutoConfigURL"] != "http://pac.local/a.pac" {
		t.Fatalf("AutoConfigURL = %q", store.values["AutoConfigURL"])
	}
	if store.refreshed != 1 {
		t.Fatalf("expected WinINet refresh after write, got %d", store.refreshed)
	}
}

func TestRegistry_EnabledOnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":                       false,
		" ":                      true,
		"\t":                     true,
		"http://pac.local/a.pac": true,
	}
	for value, want := range cases {
		store := newFakeStore()
		store.values["AutoConfigURL"] = value
		got, err := NewRegistry(store).Enabled(context.Background())
		if err != nil {
			t.Fatalf("Enabled() error: %v", err)
		}
		if got != want {
			t.Fatalf("Enabled() with %q = %v, want %v", value, got, want)
		}
	}
}
