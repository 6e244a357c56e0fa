//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
)

// Обёртки для функций, которых нет в lxn/win
var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL  = 13
	wmKeydown     = 0x0100
	wmKeyup       = 0x0101
	wmSyskeydown  = 0x0104
	wmSyskeyup    = 0x0105
	llkhfInjected = 0x10
)

type kbdllHookStruct struct {
	VKCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DWExtraInfo uintptr
}

// Start ставит низкоуровневый хук WH_KEYBOARD_LL на выделенном системном
// потоке. Совпавшие комбинации проглатываются: до приложений они не
// доходят. Синтетический ввод (LLKHF_INJECTED) игнорируется, чтобы не
// перехватить собственный Ctrl+V вставки.
func (l *Listener) Start(ctx context.Context) error {
	if len(l.bindings) == 0 {
		return fmt.Errorf("%w: no bindings", ErrListenerFailed)
	}

	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		// Свёрнутая на keydown клавиша глотается и на keyup,
		// повторы автоповтора вниз не переизлучаются
		held := make(map[uint32]string)

		callback := syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
			if int32(nCode) < 0 {
				ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
				return ret
			}
			k := (*kbdllHookStruct)(unsafe.Pointer(lParam))
			if k.Flags&llkhfInjected != 0 {
				ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
				return ret
			}

			msg := uint32(wParam)
			switch msg {
			case wmKeydown, wmSyskeydown:
				if _, ok := held[k.VKCode]; ok {
					// Автоповтор зажатой клавиши
					return 1
				}
				for _, b := range l.bindings {
					if b.combo.VK == k.VKCode && modsSatisfied(b.combo.Mods) {
						held[k.VKCode] = b.name
						l.emit(Event{Name: b.name, Down: true, At: time.Now()})
						return 1
					}
				}
			case wmKeyup, wmSyskeyup:
				if name, ok := held[k.VKCode]; ok {
					delete(held, k.VKCode)
					l.emit(Event{Name: name, Down: false, At: time.Now()})
					return 1
				}
			}

			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		})

		hook, _, _ := procSetWindowsHookExW.Call(uintptr(whKeyboardLL), callback, 0, 0)
		if hook == 0 {
			errCh <- fmt.Errorf("%w: SetWindowsHookExW", ErrListenerFailed)
			return
		}
		errCh <- nil

		threadID := win.GetCurrentThreadId()
		go func() {
			<-ctx.Done()
			procPostThreadMessageW.Call(uintptr(threadID), win.WM_QUIT, 0, 0)
		}()

		var msg win.MSG
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			win.TranslateMessage(&msg)
			win.DispatchMessage(&msg)
		}
		procUnhookWindowsHookEx.Call(hook)
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		return fmt.Errorf("%w: timeout installing hook", ErrListenerFailed)
	}
}

// modsSatisfied проверяет, что все требуемые модификаторы сейчас зажаты.
func modsSatisfied(required uint32) bool {
	down := func(vk int32) bool {
		return win.GetAsyncKeyState(vk)&0x8000 != 0
	}
	if required&ModCtrl != 0 && !down(win.VK_CONTROL) {
		return false
	}
	if required&ModAlt != 0 && !down(win.VK_MENU) {
		return false
	}
	if required&ModShift != 0 && !down(win.VK_SHIFT) {
		return false
	}
	if required&ModWin != 0 && !down(win.VK_LWIN) && !down(win.VK_RWIN) {
		return false
	}
	return true
}
