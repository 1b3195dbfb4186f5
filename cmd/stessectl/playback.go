package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stesse/stesse/pkg/stesse"
)

// stateCommand wraps a client call returning the updated player state.
func stateCommand(use, short string, call func(*Client, context.Context) (stesse.PlayerState, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := call(app.client, ctx)
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}

func playCommand() *cobra.Command {
	return stateCommand("play", "Start or resume playback", (*Client).Play)
}

func pauseCommand() *cobra.Command {
	return stateCommand("pause", "Pause playback", (*Client).Pause)
}

func toggleCommand() *cobra.Command {
	return stateCommand("toggle", "Toggle between play and pause", (*Client).Toggle)
}

func nextCommand() *cobra.Command {
	return stateCommand("next", "Skip to the next track", (*Client).Next)
}

func prevCommand() *cobra.Command {
	return stateCommand("prev", "Return to the previous track", (*Client).Previous)
}

func trackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "track <id>",
		Short: "Play a specific track from the playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.client.PlayTrack(ctx, args[0])
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek to a position in the current track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			seconds, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.client.Seek(ctx, seconds)
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}
