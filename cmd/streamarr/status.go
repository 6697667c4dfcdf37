package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/streamarr/streamarr/internal/ffmpeg"
	"github.com/streamarr/streamarr/internal/library"
)

func newStatusCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [content-id]",
		Short: "Show acquisition status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(*configFlag)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid content id %q", args[0])
				}
				return printSummary(cmd, app, id)
			}
			return printOverview(cmd, app)
		},
	}
}

func printOverview(cmd *cobra.Command, app *appContext) error {
	if err := ffmpeg.CheckTools(ffmpeg.Config{}); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "tools: %v\n", err)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "tools: ffmpeg and ffprobe found")
	}

	contents, total, err := app.library.ListContent(library.ContentFilter{})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "acquisitions: %d\n\n", total)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tQUALITY\tTITLE\tSOURCE")
	for _, c := range contents {
		title := c.TitleHint
		if c.MovieID != nil {
			if m, err := app.library.GetMovie(*c.MovieID); err == nil {
				title = m.Title
			}
		}
		source := c.Source
		if len(source) > 48 {
			source = source[:45] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.State, library.QualityLabel(c.Width), title, source)
	}
	return w.Flush()
}

func printSummary(cmd *cobra.Command, app *appContext, id int64) error {
	summary, err := app.acquisitionService().Describe(id)
	if err != nil {
		return err
	}

	c := summary.Content
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "content %d\n", c.ID)
	fmt.Fprintf(out, "  state:    %s\n", c.State)
	fmt.Fprintf(out, "  source:   %s\n", c.Source)
	if c.FullPath != "" {
		fmt.Fprintf(out, "  video:    %s (%dx%d, %s)\n",
			c.FullPath, c.Width, c.Height, library.QualityLabel(c.Width))
	}
	if summary.Movie != nil {
		fmt.Fprintf(out, "  movie:    %s (%s)\n", summary.Movie.Title, summary.Movie.IMDBID)
	}
	if summary.Job != nil {
		fmt.Fprintf(out, "  job:      %d (%s, complete=%t)\n",
			summary.Job.ID, summary.Job.Name, summary.Job.IsComplete)
	}
	fmt.Fprintf(out, "  subtitles: %d\n", len(summary.Subtitles))
	for _, s := range summary.Subtitles {
		fmt.Fprintf(out, "    %s (%s)\n", s.FileName+s.Suffix, s.LangThree)
	}
	return nil
}
