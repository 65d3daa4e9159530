package config

// Config holds the application configuration
type Config struct {
	Paths         *Paths
	PortStart     int
	PortRangeSize int
	Assistants    map[string]AssistantConfig
	Layout        LayoutConfig
	UI            UISettings

	PTY     PTYConfig
	Keybind KeybindConfig
	Bridge  BridgeConfig
}

// PTYConfig controls the terminal instance and sizing FSM defaults (core
// spec §4.1-§4.2).
type PTYConfig struct {
	// PTYRowsLarge is the virtual row count presented to interactive
	// shells in primary-screen mode (core spec §4.1).
	PTYRowsLarge int
	// DefaultCols/DefaultVisibleRows size a freshly spawned terminal
	// before any content-driven growth occurs.
	DefaultCols        int
	DefaultVisibleRows int
	// CloseTimeout bounds how long cleanup waits for a child process to
	// exit after SIGTERM before escalating to SIGKILL.
	CloseTimeoutMs int
}

// KeybindConfig holds per-action key override lists, keyed by
// keymap.Action string, the same override shape the teacher's
// KeyMapConfig used for its own keybinding table.
type KeybindConfig struct {
	Overrides map[string][]string
}

// BindingFor returns a configured override for action, if one was set.
func (k KeybindConfig) BindingFor(action string) ([]string, bool) {
	if k.Overrides == nil {
		return nil, false
	}
	keys, ok := k.Overrides[action]
	return keys, ok
}

// BridgeConfig controls the external X11/XWayland bridge process's
// restart policy (core spec §5, §7 bridge crash policy).
type BridgeConfig struct {
	// RestartBackoffMs is the initial restart delay; it doubles after
	// each rapid crash up to RestartBackoffCapMs.
	RestartBackoffMs    int
	RestartBackoffCapMs int
	// RapidCrashWindowMs bounds how recently a restart must have
	// happened for the next crash to count toward giving up.
	RapidCrashWindowMs int
	// MaxRapidCrashes is how many crashes inside the window trigger
	// giving up and falling back to external-only mode.
	MaxRapidCrashes int
}

// AssistantConfig defines how to launch an AI assistant
type AssistantConfig struct {
	Command          string // Shell command to launch the assistant
	InterruptCount   int    // Number of Ctrl-C signals to send (default 1, claude needs 2)
	InterruptDelayMs int    // Delay between interrupts in milliseconds
}

// LayoutConfig defines the three-pane layout settings
type LayoutConfig struct {
	MinChatWidth      int // Minimum width for the center pane
	MinDashboardWidth int // Minimum width for the left pane
	MinSidebarWidth   int // Minimum width for the right pane
	StartupLeftWidth  int // Initial width for dashboard
	StartupRightWidth int // Initial width for sidebar
}

// DefaultConfig returns the default configuration
func DefaultConfig() (*Config, error) {
	paths, err := DefaultPaths()
	if err != nil {
		return nil, err
	}

	return &Config{
		Paths:         paths,
		PortStart:     6200,
		PortRangeSize: 10,
		Assistants: map[string]AssistantConfig{
			"claude": {
				Command:          "claude",
				InterruptCount:   2,
				InterruptDelayMs: 200,
			},
			"codex": {
				Command:          "codex",
				InterruptCount:   1,
				InterruptDelayMs: 0,
			},
			"gemini": {
				Command:          "gemini",
				InterruptCount:   1,
				InterruptDelayMs: 0,
			},
			"term": {
				Command:          "bash",
				InterruptCount:   1,
				InterruptDelayMs: 0,
			},
		},
		Layout: LayoutConfig{
			MinChatWidth:      60,
			MinDashboardWidth: 20,
			MinSidebarWidth:   20,
			StartupLeftWidth:  24,
			StartupRightWidth: 72,
		},
		PTY: PTYConfig{
			PTYRowsLarge:       1000,
			DefaultCols:        80,
			DefaultVisibleRows: 3,
			CloseTimeoutMs:     5000,
		},
		Keybind: KeybindConfig{
			Overrides: map[string][]string{},
		},
		Bridge: BridgeConfig{
			RestartBackoffMs:    200,
			RestartBackoffCapMs: 10_000,
			RapidCrashWindowMs:  30_000,
			MaxRapidCrashes:     5,
		},
	}, nil
}
