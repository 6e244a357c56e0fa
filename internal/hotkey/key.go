package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrListenerFailed перехват клавиатуры не запустился.
var ErrListenerFailed = errors.New("hotkey listener failed")

// Модификаторы в формате RegisterHotKey.
const (
	ModAlt   uint32 = 0x0001
	ModCtrl  uint32 = 0x0002
	ModShift uint32 = 0x0004
	ModWin   uint32 = 0x0008
)

// Combo разобранная комбинация: маска модификаторов плюс виртуальный код
// основной клавиши.
type Combo struct {
	Mods uint32
	VK   uint32
}

// Event нажатие или отпускание зарегистрированной комбинации.
// Name имя, под которым комбинация была зарегистрирована.
type Event struct {
	Name string
	Down bool
	At   time.Time
}

// Parse разбирает спеку вида "ctrl+shift+r", "altgr", "f9".
// Последний токен — основная клавиша, остальные — модификаторы.
func Parse(spec string) (Combo, error) {
	if strings.TrimSpace(spec) == "" {
		return Combo{}, errors.New("empty hotkey")
	}
	parts := strings.Split(spec, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.ToLower(parts[i]))
	}

	var mods uint32
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "alt", "menu":
			mods |= ModAlt
		case "ctrl", "control":
			mods |= ModCtrl
		case "shift":
			mods |= ModShift
		case "win", "meta", "super":
			mods |= ModWin
		default:
			return Combo{}, fmt.Errorf("unknown modifier %q in %q", p, spec)
		}
	}

	vk, err := parseKey(parts[len(parts)-1])
	if err != nil {
		return Combo{}, fmt.Errorf("hotkey %q: %w", spec, err)
	}
	return Combo{Mods: mods, VK: vk}, nil
}

func parseKey(token string) (uint32, error) {
	if len(token) == 1 {
		ch := token[0]
		if ch >= 'a' && ch <= 'z' {
			return uint32(ch - 'a' + 'A'), nil
		}
		if ch >= '0' && ch <= '9' {
			return uint32(ch), nil
		}
	}
	switch token {
	case "altgr", "ralt":
		return 0xA5, nil // VK_RMENU
	case "rctrl":
		return 0xA3, nil // VK_RCONTROL
	case "capslock":
		return 0x14, nil
	case "esc", "escape":
		return 0x1B, nil
	case "space":
		return 0x20, nil
	case "enter", "return":
		return 0x0D, nil
	case "tab":
		return 0x09, nil
	case "pause":
		return 0x13, nil
	case "scrolllock":
		return 0x91, nil
	}
	if strings.HasPrefix(token, "f") {
		if n, err := strconv.Atoi(strings.TrimPrefix(token, "f")); err == nil && n >= 1 && n <= 24 {
			return 0x70 + uint32(n-1), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", token)
}
