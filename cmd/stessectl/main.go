package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type app struct {
	client  *Client
	json    bool
	timeout time.Duration
}

func main() {
	root := &cobra.Command{
		Use:   "stessectl",
		Short: "Control a running stessed player",
	}

	var (
		apiBase string
		timeout time.Duration
		jsonOut bool
	)

	root.PersistentFlags().StringVarP(&apiBase, "api", "a", defaultAPIBase(), "stessed API base URL")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")

	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			client:  NewClient(apiBase, timeout),
			json:    jsonOut,
			timeout: timeout,
		}))
	}

	root.AddCommand(statusCommand())
	root.AddCommand(healthCommand())
	root.AddCommand(genresCommand())
	root.AddCommand(genreCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(trackCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(muteCommand())
	root.AddCommand(rateCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(repeatCommand())
	root.AddCommand(playlistCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func defaultAPIBase() string {
	if base := os.Getenv("STESSE_API"); base != "" {
		return base
	}
	return "http://127.0.0.1:8080"
}
