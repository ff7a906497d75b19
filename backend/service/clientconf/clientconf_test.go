package clientconf

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hunter/backend/domain"
)

var (
	tokyo = domain.ServerNode{Name: "tokyo", Address: "1.2.3.4", Port: 443, Password: "p"}
	paris = domain.ServerNode{Name: "paris", Address: "5.6.7.8", Port: 443, Password: "q"}
	local = domain.LocalEndpoint{Address: "127.0.0.1", Port: 1086}
)

func catalogOf(nodes ...domain.ServerNode) domain.Catalog {
	c := domain.DefaultCatalog()
	c.Nodes = nodes
	return c
}

func TestResolve_MissingFileIsNone(t *testing.T) {
	t.Parallel()

	got, err := Resolve(catalogOf(tokyo), filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestResolve_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	w := Writer{Path: path, LogFile: "/tmp/trojan.log"}
	if err := w.WriteNode(tokyo, local, domain.LogInfo); err != nil {
		t.Fatalf("WriteNode() error: %v", err)
	}

	got, err := Resolve(catalogOf(paris, tokyo), path)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got == nil || *got != tokyo {
		t.Fatalf("expected tokyo, got %+v", got)
	}

	// 节点被删除后不再解析
	got, err = Resolve(catalogOf(paris), path)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after node removal, got %+v", got)
	}
}

func TestResolve_FirstMatchInCatalogOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := Write(path, Build(tokyo, local, domain.LogInfo, "")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	alias := tokyo
	alias.Name = "tokyo-alias"
	got, err := Resolve(catalogOf(alias, tokyo), path)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got == nil || got.Name != "tokyo-alias" {
		t.Fatalf("expected first match, got %+v", got)
	}
}

func TestResolve_MalformedIsDecodeError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Resolve(catalogOf(tokyo), path)
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestResolve_EmptyPasswordListNeverMatches(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Build(tokyo, local, domain.LogInfo, "")
	cfg.Password = nil
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := Resolve(catalogOf(tokyo), path)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestWrite_WireFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := Write(path, Build(tokyo, local, domain.LogTrace, "/var/log/trojan.log")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}

	want := map[string]any{
		"run_type":    "client",
		"local_addr":  "127.0.0.1",
		"local_port":  float64(1086),
		"remote_addr": "1.2.3.4",
		"remote_port": float64(443),
		"log_level":   float64(-1),
		"log_file":    filepath.FromSlash("/var/log/trojan.log"),
	}
	for k, v := range want {
		if raw[k] != v {
			t.Fatalf("%s = %v, want %v", k, raw[k], v)
		}
	}
	pw, ok := raw["password"].([]any)
	if !ok || len(pw) != 1 || pw[0] != "p" {
		t.Fatalf("password = %v, want [p]", raw["password"])
	}
}
