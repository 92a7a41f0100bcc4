package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"burnin/internal/api"
	"burnin/internal/daemon"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:     "videos",
		Aliases: []string{"video"},
		Short:   "Inspect and manage processed videos",
	}

	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosDeleteCommand(ctx))
	videosCmd.AddCommand(newVideosURLCommand(ctx))
	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var skip, limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(runCtx context.Context, c daemon.Components) error {
				resp, err := api.NewVideoService(c.Repo).List(runCtx, api.ListQuery{Status: status, Skip: skip, Limit: limit})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "No videos found")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Video ID", "Job", "Status", "Original", "Resolution", "Size", "Created"},
					buildVideoRows(resp.Items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show records in this status (processing, saved, failed)")
	cmd.Flags().IntVar(&skip, "skip", 0, "Records to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to show (default 100)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show one job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(runCtx context.Context, c daemon.Components) error {
				video, err := api.NewVideoService(c.Repo).Describe(runCtx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.VideoResponse{Video: *video})
				}
				printVideo(cmd, video)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newVideosDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <video-id>...",
		Short: "Delete stored artifacts and their records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(runCtx context.Context, c daemon.Components) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, id := range args {
					if err := c.Orchestrator.Delete(runCtx, id); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
						failed++
						continue
					}
					fmt.Fprintf(out, "Deleted %s\n", id)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d deletions failed", failed, len(args))
				}
				return nil
			})
		},
	}
}

func newVideosURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "url <video-id>",
		Short: "Print a time-limited download URL for a saved video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(runCtx context.Context, c daemon.Components) error {
				url, _, err := c.Orchestrator.PresignURL(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			})
		},
	}
}

func printVideo(cmd *cobra.Command, v *api.Video) {
	out := cmd.OutOrStdout()
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-20s %s\n", label+":", value)
	}
	line("Video ID", v.ID)
	line("Job ID", v.JobID)
	line("Status", formatStatusLabel(v.Status))
	line("Source video", v.SourceVideoID)
	line("Original file", v.OriginalFilename)
	line("Final file", v.FinalFilename)
	line("Requested", v.RequestedResolution)
	line("Resolution", v.Resolution)
	line("Quality (crf)", strconv.Itoa(v.Quality))
	if v.Duration > 0 {
		line("Duration", formatSeconds(v.Duration))
	}
	if v.FileSize > 0 {
		line("Size", formatBytes(v.FileSize))
	}
	line("Stored at", v.StorageLocation)
	line("Stream URL", v.StreamURL)
	line("Error kind", v.ErrorKind)
	line("Error", v.Error)
	line("Created", formatDisplayTime(v.CreatedAt))
	line("Updated", formatDisplayTime(v.UpdatedAt))
}
