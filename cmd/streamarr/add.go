package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamarr/streamarr/internal/acquisition"
)

func newAddCommand(configFlag *string) *cobra.Command {
	var title string
	var imdbID string

	cmd := &cobra.Command{
		Use:   "add <magnet-or-url>",
		Short: "Queue a movie acquisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(*configFlag)
			if err != nil {
				return err
			}
			defer app.Close()

			content, err := app.acquisitionService().Start(cmd.Context(), acquisition.Request{
				Source: args[0],
				Title:  title,
				IMDBID: imdbID,
			})
			if err != nil {
				return err
			}

			fmt.Printf("queued content %d (%s)\n", content.ID, content.State)
			fmt.Println("the daemon will pick it up; run 'streamarr status' to follow along")
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Movie title for metadata lookup")
	cmd.Flags().StringVar(&imdbID, "imdb", "", "IMDB id (e.g. tt0137523) for exact metadata match")
	return cmd
}
