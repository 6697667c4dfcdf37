package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCancelCommand(configFlag *string) *cobra.Command {
	var keepFiles bool

	cmd := &cobra.Command{
		Use:   "cancel <content-id>",
		Short: "Cancel an acquisition and remove its records",
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

			if err := app.acquisitionService().Cancel(cmd.Context(), id, !keepFiles); err != nil {
				return err
			}
			fmt.Printf("cancelled content %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Keep downloaded files on disk")
	return cmd
}
