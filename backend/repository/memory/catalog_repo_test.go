package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hunter/backend/domain"
	"hunter/backend/repository"
	"hunter/backend/repository/events"
)

func node(name, addr string) domain.ServerNode {
	return domain.ServerNode{Name: name, Address: addr, Port: 443, Password: "pw-" + name}
}

func TestCatalogRepo_DefaultCatalog(t *testing.T) {
	t.Parallel()

	repo := NewCatalogRepo(NewStore(nil))
	got, err := repo.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Local.Address != "127.0.0.1" || got.Local.Port != 1086 {
		t.Fatalf("unexpected default local endpoint: %+v", got.Local)
	}
	if got.PAC != domain.DefaultPAC {
		t.Fatalf("unexpected default pac: %q", got.PAC)
	}
	if got.LogLevel != domain.LogInfo {
		t.Fatalf("unexpected default log level: %q", got.LogLevel)
	}
	if len(got.Nodes) != 0 {
		t.Fatalf("expected no nodes, got %d", len(got.Nodes))
	}
}

func TestCatalogRepo_Add_DistinctNodesBothPresent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))

	for _, n := range []domain.ServerNode{node("tokyo", "jp.example.com"), node("paris", "fr.example.com")} {
		inserted, err := repo.Add(ctx, n)
		if err != nil {
			t.Fatalf("Add(%s) error: %v", n.Name, err)
		}
		if !inserted {
			t.Fatalf("Add(%s) expected insert", n.Name)
		}
	}

	got, _ := repo.Get(ctx)
	if len(got.Nodes) != 2 || got.Nodes[0].Name != "tokyo" || got.Nodes[1].Name != "paris" {
		t.Fatalf("unexpected nodes: %+v", got.Nodes)
	}
}

func TestCatalogRepo_Add_DuplicateIsNoop(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		dup  domain.ServerNode
	}{
		{name: "same name", dup: domain.ServerNode{Name: "tokyo", Address: "other.example.com", Port: 8443, Password: "x"}},
		{name: "same address", dup: domain.ServerNode{Name: "tokyo-2", Address: "jp.example.com", Port: 8443, Password: "x"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := NewCatalogRepo(NewStore(nil))
			if _, err := repo.Add(ctx, node("tokyo", "jp.example.com")); err != nil {
				t.Fatalf("Add() error: %v", err)
			}

			inserted, err := repo.Add(ctx, tc.dup)
			if err != nil {
				t.Fatalf("Add(dup) error: %v", err)
			}
			if inserted {
				t.Fatalf("expected duplicate to be skipped")
			}

			got, _ := repo.Get(ctx)
			if len(got.Nodes) != 1 || got.Nodes[0] != node("tokyo", "jp.example.com") {
				t.Fatalf("unexpected nodes: %+v", got.Nodes)
			}
		})
	}
}

func TestCatalogRepo_Update_AtLenBehavesLikeAdd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	viaUpdate := NewCatalogRepo(NewStore(nil))
	viaAdd := NewCatalogRepo(NewStore(nil))

	seed := node("tokyo", "jp.example.com")
	_, _ = viaUpdate.Add(ctx, seed)
	_, _ = viaAdd.Add(ctx, seed)

	for _, n := range []domain.ServerNode{node("paris", "fr.example.com"), node("tokyo", "dup.example.com")} {
		before, _ := viaUpdate.Get(ctx)
		if err := viaUpdate.Update(ctx, len(before.Nodes), n); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if _, err := viaAdd.Add(ctx, n); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	a, _ := viaUpdate.Get(ctx)
	b, _ := viaAdd.Get(ctx)
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("update-at-len diverged from add: %+v vs %+v", a.Nodes, b.Nodes)
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			t.Fatalf("node %d differs: %+v vs %+v", i, a.Nodes[i], b.Nodes[i])
		}
	}
}

func TestCatalogRepo_Update_ReplacesInPlace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))
	_, _ = repo.Add(ctx, node("paris", "fr.example.com"))

	replacement := domain.ServerNode{Name: "osaka", Address: "osaka.example.com", Port: 8443, Password: "new"}
	if err := repo.Update(ctx, 0, replacement); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, _ := repo.Get(ctx)
	if got.Nodes[0] != replacement || got.Nodes[1].Name != "paris" {
		t.Fatalf("unexpected nodes: %+v", got.Nodes)
	}
}

func TestCatalogRepo_Update_RejectsConflictWithOtherNode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))
	_, _ = repo.Add(ctx, node("paris", "fr.example.com"))

	cases := []domain.ServerNode{
		node("tokyo", "jp.example.com"),
		node("tokyo", "other.example.com"),
		node("berlin", "jp.example.com"),
	}
	for _, n := range cases {
		err := repo.Update(ctx, 1, n)
		if !errors.Is(err, repository.ErrInvalidData) {
			t.Fatalf("Update(1, %s/%s) expected ErrInvalidData, got %v", n.Name, n.Address, err)
		}
	}

	got, _ := repo.Get(ctx)
	if len(got.Nodes) != 2 || got.Nodes[0].Name != "tokyo" || got.Nodes[1].Name != "paris" {
		t.Fatalf("catalog must be unchanged, got %+v", got.Nodes)
	}

	// 与自身同名同地址（只改端口/密码）仍然允许
	same := node("paris", "fr.example.com")
	same.Port = 8443
	if err := repo.Update(ctx, 1, same); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, _ = repo.Get(ctx)
	if got.Nodes[1] != same {
		t.Fatalf("unexpected node: %+v", got.Nodes[1])
	}
}

func TestCatalogRepo_Update_OutOfRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))

	for _, idx := range []int{2, 10, -1} {
		err := repo.Update(ctx, idx, node("paris", "fr.example.com"))
		if !errors.Is(err, domain.ErrIndexOutOfRange) {
			t.Fatalf("Update(%d) expected ErrIndexOutOfRange, got %v", idx, err)
		}
		var rangeErr *domain.IndexOutOfRangeError
		if !errors.As(err, &rangeErr) || rangeErr.Len != 1 || rangeErr.Index != idx {
			t.Fatalf("Update(%d) expected IndexOutOfRangeError, got %#v", idx, err)
		}
	}

	got, _ := repo.Get(ctx)
	if len(got.Nodes) != 1 {
		t.Fatalf("catalog must be unchanged, got %+v", got.Nodes)
	}
}

func TestCatalogRepo_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))
	_, _ = repo.Add(ctx, node("paris", "fr.example.com"))

	if err := repo.Delete(ctx, "tokyo"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	got, _ := repo.Get(ctx)
	if _, ok := got.FindNode("tokyo"); ok {
		t.Fatalf("tokyo still present after delete: %+v", got.Nodes)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].Name != "paris" {
		t.Fatalf("unexpected nodes: %+v", got.Nodes)
	}
	if err := repo.Delete(ctx, "tokyo"); !errors.Is(err, repository.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound on second delete, got %v", err)
	}
}

func TestCatalogRepo_Get_ReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))

	got, _ := repo.Get(ctx)
	got.Nodes[0].Name = "mutated"

	again, _ := repo.Get(ctx)
	if again.Nodes[0].Name != "tokyo" {
		t.Fatalf("Get() must return a deep copy, got %+v", again.Nodes)
	}
}

func TestCatalogRepo_Setters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))

	if err := repo.SetLocal(ctx, domain.LocalEndpoint{Address: "0.0.0.0", Port: 1080}); err != nil {
		t.Fatalf("SetLocal() error: %v", err)
	}
	if err := repo.SetLocalPort(ctx, 2080); err != nil {
		t.Fatalf("SetLocalPort() error: %v", err)
	}
	if err := repo.SetPAC(ctx, " http://pac.local/proxy.pac "); err != nil {
		t.Fatalf("SetPAC() error: %v", err)
	}
	if err := repo.SetLogLevel(ctx, "debug"); err != nil {
		t.Fatalf("SetLogLevel() error: %v", err)
	}

	got, _ := repo.Get(ctx)
	if got.Local.Address != "0.0.0.0" || got.Local.Port != 2080 {
		t.Fatalf("unexpected local endpoint: %+v", got.Local)
	}
	if got.PAC != "http://pac.local/proxy.pac" {
		t.Fatalf("unexpected pac: %q", got.PAC)
	}
	if got.LogLevel != domain.LogDebug {
		t.Fatalf("unexpected log level: %q", got.LogLevel)
	}

	if err := repo.SetLocalPort(ctx, 0); !errors.Is(err, repository.ErrInvalidData) {
		t.Fatalf("SetLocalPort(0) expected ErrInvalidData, got %v", err)
	}
	if err := repo.SetLogLevel(ctx, "loud"); !errors.Is(err, repository.ErrInvalidData) {
		t.Fatalf("SetLogLevel(loud) expected ErrInvalidData, got %v", err)
	}
}

func TestCatalogRepo_Replace_DropsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(nil))

	out, err := repo.Replace(ctx, domain.Catalog{
		Nodes: []domain.ServerNode{
			node("tokyo", "jp.example.com"),
			node("tokyo", "other.example.com"),
			node("paris", "fr.example.com"),
		},
	})
	if err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if len(out.Nodes) != 2 {
		t.Fatalf("expected duplicates dropped, got %+v", out.Nodes)
	}
	if out.Local.Port != domain.DefaultLocalPort || out.PAC != domain.DefaultPAC {
		t.Fatalf("expected defaults for empty fields, got %+v", out)
	}
}

func TestCatalogRepo_PublishesEvents(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	got := make(chan events.Event, 4)
	bus.SubscribeAll(func(e events.Event) { got <- e })

	ctx := context.Background()
	repo := NewCatalogRepo(NewStore(bus))
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))

	select {
	case e := <-got:
		ce, ok := e.(events.CatalogEvent)
		if !ok || ce.Type() != events.EventNodeAdded || ce.Node.Name != "tokyo" {
			t.Fatalf("unexpected event: %#v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected node_added event")
	}

	// 重复添加不发布事件
	_, _ = repo.Add(ctx, node("tokyo", "jp.example.com"))
	select {
	case e := <-got:
		t.Fatalf("unexpected event for skipped add: %#v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
