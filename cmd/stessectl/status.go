package main

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current playback state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.client.State(ctx)
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}

func healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show daemon health and catalog auth status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			health, err := app.client.Health(ctx)
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(health)
			}
			rows := pterm.TableData{
				{"status", health.Status},
				{"configured", onOff(health.Configured)},
				{"authenticated", onOff(health.Authenticated)},
			}
			if health.TokenExpiry != "" {
				rows = append(rows, []string{"token expiry", health.TokenExpiry})
			}
			return pterm.DefaultTable.WithData(rows).Render()
		},
	}
}
