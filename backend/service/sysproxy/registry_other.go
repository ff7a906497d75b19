//go:build !windows

package sysproxy

import "fmt"

func openRegistryStore() (ValueStore, error) {
	return nil, fmt.Errorf("%w: registry is only available on windows", ErrUnsupportedPlatform)
}
