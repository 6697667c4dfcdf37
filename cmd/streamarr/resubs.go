package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newResubsCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resubs <content-id>",
		Short: "Drop and re-fetch subtitles for a finished acquisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid content id %q", args[0])
			}

			app, err := openApp(*configFlag)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.acquisitionService().ReacquireSubtitles(cmd.Context(), id, app.deleteOriginals()); err != nil {
				return err
			}
			fmt.Printf("subtitles reacquired for content %d\n", id)
			return nil
		},
	}
}
