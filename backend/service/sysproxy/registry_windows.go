//go:build windows

package sysproxy

import (
	"errors"
	"fmt"
	"syscall"

	"hunter/backend/domain"

	"golang.org/x/sys/windows/registry"
)

const (
	winInetOptionSettingsChanged = 39
	winInetOptionRefresh         = 37
)

var (
	wininetDLL            = syscall.NewLazyDLL("wininet.dll")
	procInternetSetOption = wininetDLL.NewProc("InternetSetOptionW")
)

type registryStore struct{}

func openRegistryStore() (ValueStore, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.QUERY_VALUE)
	if err != nil {
		return nil, &domain.OSAPIError{Op: "open registry key", Key: internetSettingsKey, Err: err}
	}
	_ = k.Close()
	return registryStore{}, nil
}

func (registryStore) GetString(name string) (string, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.QUERY_VALUE)
	if err != nil {
		return "", &domain.OSAPIError{Op: "open registry key", Key: internetSettingsKey, Err: err}
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", nil
		}
		return "", &domain.OSAPIError{Op: "read registry value", Key: name, Err: err}
	}
	return v, nil
}

func (registryStore) SetString(name, value string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.SET_VALUE)
	if err != nil {
		return &domain.OSAPIError{Op: "open registry key", Key: internetSettingsKey, Err: err}
	}
	defer k.Close()

	if err := k.SetStringValue(name, value); err != nil {
		return &domain.OSAPIError{Op: "write registry value", Key: name, Err: err}
	}
	return nil
}

// Refresh 触发 WinINet 立刻刷新（让系统/应用尽快生效）。
func (registryStore) Refresh() error {
	if err := internetSetOption(winInetOptionSettingsChanged); err != nil {
		return err
	}
	return internetSetOption(winInetOptionRefresh)
}

func internetSetOption(option uintptr) error {
	ret, _, callErr := procInternetSetOption.Call(0, option, 0, 0)
	if ret == 0 {
		err := callErr
		if callErr == syscall.Errno(0) {
			err = fmt.Errorf("option=%d", option)
		}
		return &domain.OSAPIError{Op: "InternetSetOptionW", Err: err}
	}
	return nil
}
