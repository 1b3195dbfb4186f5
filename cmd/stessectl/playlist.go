package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func playlistCommand() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "List the current playlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			tracks, err := app.client.Playlist(ctx, query)
			if err != nil {
				return err
			}
			return printTracks(app, tracks)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter tracks by title, artist or album")

	return cmd
}

func genresCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List available genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			genres, err := app.client.Genres(ctx)
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(genres)
			}
			_, err = fmt.Fprintln(os.Stdout, strings.Join(genres, "\n"))
			return err
		},
	}
}

func genreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genre <id>",
		Short: "Load a genre playlist and start playing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.client.SelectGenre(ctx, args[0])
			if err != nil {
				return err
			}
			return printState(app, state)
		},
	}
}

func shuffleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shuffle",
		Short: "Toggle shuffle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			enabled, err := app.client.Shuffle(ctx)
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(map[string]bool{"shuffle": enabled})
			}
			pterm.Info.Printfln("shuffle %s", onOff(enabled))
			return nil
		},
	}
}

func repeatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repeat",
		Short: "Cycle repeat mode (off, all, one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			mode, err := app.client.Repeat(ctx)
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(map[string]string{"repeat": string(mode)})
			}
			pterm.Info.Printfln("repeat %s", mode)
			return nil
		},
	}
}
