package sysproxy

import "context"

const (
	internetSettingsKey = `Software\Microsoft\Windows\CurrentVersion\Internet Settings`
	autoConfigURLValue  = "AutoConfigURL"
)

// ValueStore 当前用户 Internet Settings 下的字符串值读写。
// 值不存在时 GetString 返回 ("", nil)。
type ValueStore interface {
	GetString(name string) (string, error)
	SetString(name, value string) error
	// Refresh 通知 WinINet 设置已变更
	Refresh() error
}

// Registry Windows 实现：AutoConfigURL 非空即视为开启。
type Registry struct {
	store ValueStore
}

func NewRegistry(store ValueStore) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Enable(ctx context.Context, pac string) error {
	if err := r.store.SetString(autoConfigURLValue, pac); err != nil {
		return err
	}
	return r.store.Refresh()
}

func (r *Registry) Disable(ctx context.Context) error {
	if err := r.store.SetString(autoConfigURLValue, ""); err != nil {
		return err
	}
	return r.store.Refresh()
}

func (r *Registry) Enabled(ctx context.Context) (bool, error) {
	v, err := r.store.GetString(autoConfigURLValue)
	if err != nil {
		return false, err
	}
	return v != "", nil
}

var _ Adapter = (*Registry)(nil)
