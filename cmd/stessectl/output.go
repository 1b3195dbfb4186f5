package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/stesse/stesse/pkg/stesse"
)

func printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(payload))
	return err
}

func printState(app *app, state stesse.PlayerState) error {
	if app.json {
		return printJSON(state)
	}

	title := "(nothing loaded)"
	if state.Current != nil {
		title = fmt.Sprintf("%s — %s", state.Current.Title, state.Current.Artist)
	}

	rows := pterm.TableData{
		{"track", title},
		{"status", string(state.Playback.Status)},
		{"position", fmt.Sprintf("%s / %s", formatSeconds(state.Playback.Position), formatSeconds(state.Playback.Duration))},
		{"volume", formatVolume(state.Playback)},
		{"rate", fmt.Sprintf("%.2fx", state.Playback.Rate)},
		{"queue", fmt.Sprintf("%d/%d", state.Queue.Index+1, state.Queue.Length)},
		{"shuffle", onOff(state.Queue.Shuffled)},
		{"repeat", string(state.Queue.Repeat)},
	}
	if state.Genre != "" {
		rows = append(rows, []string{"genre", state.Genre})
	}
	if state.Playback.LastError != "" {
		rows = append(rows, []string{"error", pterm.Red(state.Playback.LastError)})
	}
	return pterm.DefaultTable.WithData(rows).Render()
}

func printTracks(app *app, tracks []stesse.Track) error {
	if app.json {
		return printJSON(tracks)
	}

	rows := pterm.TableData{{"#", "TITLE", "ARTIST", "LENGTH", "PLAYS"}}
	for i, track := range tracks {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			track.Title,
			track.Artist,
			formatSeconds(float64(track.Duration)),
			fmt.Sprintf("%d", track.PlaybackCount),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func formatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatVolume(playback stesse.PlaybackState) string {
	if playback.Muted {
		return "muted"
	}
	return fmt.Sprintf("%d%%", int(playback.Volume*100+0.5))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
