// Package keymap builds the compositor's keybinding table and encodes
// unbound key presses into the ANSI byte sequences a focused terminal
// expects. See core spec §4.6.
package keymap

import (
	"strings"

	"charm.land/bubbles/v2/key"

	"github.com/andyrewlee/amux/internal/config"
)

// Action identifies a configurable compositor-level keybinding.
type Action string

const (
	ActionQuit        Action = "quit"
	ActionSpawn       Action = "spawn"
	ActionFocusNext   Action = "focus_next"
	ActionFocusPrev   Action = "focus_prev"
	ActionCopy        Action = "copy"
	ActionPaste       Action = "paste"
	ActionScrollUp    Action = "scroll_up"
	ActionScrollDown  Action = "scroll_down"
	ActionScrollTop   Action = "scroll_top"
	ActionScrollBottom Action = "scroll_bottom"
)

type bindingDef struct {
	action Action
	keys   []string
	desc   string
}

// KeyMap holds every compositor-level binding, built from defaults with
// config overrides applied the way the teacher's keymap.go does.
type KeyMap struct {
	Quit         key.Binding
	Spawn        key.Binding
	FocusNext    key.Binding
	FocusPrev    key.Binding
	Copy         key.Binding
	Paste        key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	ScrollTop    key.Binding
	ScrollBottom key.Binding
}

// New builds the keymap from defaults per core spec §4.6's table,
// applying any user overrides from cfg.
func New(cfg config.KeybindConfig) KeyMap {
	return KeyMap{
		Quit: bindingFromDef(cfg, bindingDef{
			action: ActionQuit,
			keys:   []string{"ctrl+shift+q"},
			desc:   "quit",
		}),
		Spawn: bindingFromDef(cfg, bindingDef{
			action: ActionSpawn,
			keys:   []string{"ctrl+shift+enter", "ctrl+shift+t"},
			desc:   "spawn terminal",
		}),
		FocusNext: bindingFromDef(cfg, bindingDef{
			action: ActionFocusNext,
			keys:   []string{"ctrl+shift+j", "ctrl+shift+down"},
			desc:   "focus next",
		}),
		FocusPrev: bindingFromDef(cfg, bindingDef{
			action: ActionFocusPrev,
			keys:   []string{"ctrl+shift+k", "ctrl+shift+up"},
			desc:   "focus prev",
		}),
		Copy: bindingFromDef(cfg, bindingDef{
			action: ActionCopy,
			keys:   []string{"ctrl+shift+c"},
			desc:   "copy selection",
		}),
		Paste: bindingFromDef(cfg, bindingDef{
			action: ActionPaste,
			keys:   []string{"ctrl+shift+v"},
			desc:   "paste",
		}),
		ScrollUp: bindingFromDef(cfg, bindingDef{
			action: ActionScrollUp,
			keys:   []string{"ctrl+shift+pgup", "pgup"},
			desc:   "scroll up",
		}),
		ScrollDown: bindingFromDef(cfg, bindingDef{
			action: ActionScrollDown,
			keys:   []string{"ctrl+shift+pgdown", "pgdown"},
			desc:   "scroll down",
		}),
		ScrollTop: bindingFromDef(cfg, bindingDef{
			action: ActionScrollTop,
			keys:   []string{"super+home"},
			desc:   "scroll to top",
		}),
		ScrollBottom: bindingFromDef(cfg, bindingDef{
			action: ActionScrollBottom,
			keys:   []string{"super+end"},
			desc:   "scroll to bottom",
		}),
	}
}

func bindingFromDef(cfg config.KeybindConfig, def bindingDef) key.Binding {
	keys, ok := cfg.BindingFor(string(def.action))
	if !ok {
		keys = def.keys
	}
	helpKey := strings.Join(keys, "/")
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(helpKey, def.desc),
	)
}

// allActions lists every action in a stable order, used to build the
// reverse key->action lookup and to enumerate bindings for a help view.
var allActions = []Action{
	ActionQuit, ActionSpawn, ActionFocusNext, ActionFocusPrev,
	ActionCopy, ActionPaste, ActionScrollUp, ActionScrollDown,
	ActionScrollTop, ActionScrollBottom,
}

// Match resolves a raw key symbol (as reported by the input layer) to
// the compositor-level action bound to it, if any. Unbound keys fall
// through to EncodeKey for forwarding to the focused terminal.
func (km KeyMap) Match(keySym string) (Action, bool) {
	for _, action := range allActions {
		for _, k := range km.ForAction(action).Keys() {
			if k == keySym {
				return action, true
			}
		}
	}
	return "", false
}

// ForAction returns the binding for a given action.
func (km KeyMap) ForAction(action Action) key.Binding {
	switch action {
	case ActionQuit:
		return km.Quit
	case ActionSpawn:
		return km.Spawn
	case ActionFocusNext:
		return km.FocusNext
	case ActionFocusPrev:
		return km.FocusPrev
	case ActionCopy:
		return km.Copy
	case ActionPaste:
		return km.Paste
	case ActionScrollUp:
		return km.ScrollUp
	case ActionScrollDown:
		return km.ScrollDown
	case ActionScrollTop:
		return km.ScrollTop
	case ActionScrollBottom:
		return km.ScrollBottom
	default:
		return key.Binding{}
	}
}
