package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func volumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "volume <0-100>",
		Short: "Set playback volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			percent, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			if percent < 0 || percent > 100 {
				return fmt.Errorf("volume must be 0-100, got %s", args[0])
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.client.Volume(ctx, percent/100)
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}

func muteCommand() *cobra.Command {
	return stateCommand("mute", "Toggle mute", (*Client).Mute)
}

func rateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <multiplier>",
		Short: "Set playback rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			rate, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.client.Rate(ctx, rate)
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}
