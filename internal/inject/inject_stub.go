//go:build !windows

package inject

import "fmt"

// Paste недоступен вне Windows.
func Paste(text string) error {
	return fmt.Errorf("%w: not supported on this platform", ErrInjectionFailed)
}
