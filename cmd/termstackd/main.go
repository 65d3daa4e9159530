// Command termstackd is the compositor process: one vertically stacked
// column of terminals and external windows driven by a fixed per-frame
// pipeline (core spec §4.7). It owns the IPC control socket children use
// to ask for a new terminal, a resize, or the current window list.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/andyrewlee/amux/internal/bridge"
	"github.com/andyrewlee/amux/internal/clipboard"
	"github.com/andyrewlee/amux/internal/compositor"
	"github.com/andyrewlee/amux/internal/config"
	"github.com/andyrewlee/amux/internal/ipc"
	"github.com/andyrewlee/amux/internal/logging"
)

func main() {
	cfg, err := config.DefaultConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "termstackd: loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "termstackd: preparing directories: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.Paths.LogDir, logging.LevelInfo); err != nil {
		fmt.Fprintf(os.Stderr, "termstackd: warning: could not initialize logging: %v\n", err)
	}
	defer logging.Close()
	logging.Info("termstackd starting")

	ipcServer, err := ipc.Listen(cfg.Paths.SocketPath)
	if err != nil {
		logging.Error("failed to open control socket: %v", err)
		fmt.Fprintf(os.Stderr, "termstackd: %v\n", err)
		os.Exit(1)
	}
	defer ipcServer.Close()

	selfPath, _ := os.Executable()
	os.Setenv(ipc.SocketEnvVar, cfg.Paths.SocketPath)
	os.Setenv(ipc.BinEnvVar, strings.Replace(selfPath, "termstackd", "termstackctl", 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if bridgePath := os.Getenv("TERMSTACK_BRIDGE_PATH"); bridgePath != "" {
		b := bridge.New(bridgePath, nil, cfg.Paths.CacheRoot, cfg.Bridge)
		b.OnGiveUp(func() {
			logging.Warn("external bridge gave up after repeated rapid crashes; continuing in external-only mode")
		})
		b.Start(ctx)
		defer b.Stop()
	}

	clip := clipboard.NewWorker()
	model := compositor.NewModel(cfg, clip, ipcServer)

	p := tea.NewProgram(model, tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		logging.Error("termstackd exited with error: %v", err)
		fmt.Fprintf(os.Stderr, "termstackd: %v\n", err)
		os.Exit(1)
	}
	logging.Info("termstackd shutdown complete")
}
