//go:build !windows

package hotkey

import (
	"context"
	"fmt"
)

// Start недоступен вне Windows.
func (l *Listener) Start(ctx context.Context) error {
	return fmt.Errorf("%w: not supported on this platform", ErrListenerFailed)
}
