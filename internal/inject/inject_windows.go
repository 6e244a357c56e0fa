//go:build windows

package inject

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// Paste кладёт текст в буфер обмена, шлёт Ctrl+V активному окну и
// восстанавливает прежнее содержимое буфера. Восстановление лучших
// усилий: бинарные форматы буфера не сохраняются.
func Paste(text string) error {
	orig, _ := clipboard.ReadAll()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write clipboard: %v", ErrInjectionFailed, err)
	}
	// Целевому приложению нужно время увидеть новый буфер
	time.Sleep(80 * time.Millisecond)

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("%w: send ctrl+v: %v", ErrInjectionFailed, err)
	}

	time.Sleep(120 * time.Millisecond)
	_ = clipboard.WriteAll(orig)
	return nil
}
