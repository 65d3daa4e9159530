// Command termstackctl is the sibling CLI for a running termstackd
// compositor: it sends spawn/resize/query-windows requests over the
// control socket (core spec §6).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andyrewlee/amux/internal/config"
	"github.com/andyrewlee/amux/internal/ctlclient"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultSocketPath() string {
	paths, err := config.DefaultPaths()
	if err != nil {
		return ""
	}
	return ctlclient.SocketPath(paths.SocketPath)
}

func buildRootCommand() *cobra.Command {
	var socketPath string

	root := &cobra.Command{
		Use:           "termstackctl",
		Short:         "Control a running termstackd compositor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to the compositor's control socket")

	root.AddCommand(buildSpawnCommand(&socketPath))
	root.AddCommand(buildResizeCommand(&socketPath))
	root.AddCommand(buildWindowsCommand(&socketPath))
	return root
}

func buildSpawnCommand(socketPath *string) *cobra.Command {
	var cwd string
	var foreground bool
	var envPairs []string

	cmd := &cobra.Command{
		Use:   "spawn -- <command> [args...]",
		Short: "Open a new terminal in the compositor's column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			command := strings.Join(args, " ")
			if err := ctlclient.Spawn(*socketPath, command, cwd, env, foreground); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory for the new terminal (default: current directory)")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "hide the currently focused terminal while command runs")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "additional KEY=VALUE environment variable (repeatable)")
	return cmd
}

func buildResizeCommand(socketPath *string) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "resize",
		Short: "Resize the focused terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctlclient.Resize(*socketPath, mode)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("resize failed: %s", resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "content", `resize mode: "full" (fill the viewport) or "content" (fit last output line)`)
	return cmd
}

func buildWindowsCommand(socketPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "windows",
		Short: "List the compositor's current cells",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctlclient.QueryWindows(*socketPath)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("query failed: %s", resp.Error)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp.Windows)
			}
			for _, win := range resp.Windows {
				kind := "terminal"
				if win.IsExternal {
					kind = "external"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %4dx%-4d  %-9s %s\n", win.Index, win.Width, win.Height, kind, win.Command)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print machine-readable JSON")
	return cmd
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", pair)
		}
		env[k] = v
	}
	return env, nil
}
