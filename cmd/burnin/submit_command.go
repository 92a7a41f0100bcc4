package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"burnin/internal/api"
	"burnin/internal/config"
	"burnin/internal/daemon"
	"burnin/internal/jobs"
	"burnin/internal/metadata"
	"burnin/internal/subtitles"
)

type submitOptions struct {
	srtPath    string
	srtURL     string
	resolution string
	quality    int
	sourceID   string
	jsonOut    bool
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Burn subtitles into a local video and store the result",
		Long: "Runs one job in this process against the configured metadata database\n" +
			"and artifact store. The job is recorded exactly as if it had been\n" +
			"submitted over HTTP.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			req, closeVideo, err := buildSubmitRequest(cfg, args[0], opts, cmd.Flags().Changed("crf"))
			if err != nil {
				return err
			}
			defer closeVideo()

			return ctx.withComponents(cmd, func(runCtx context.Context, c daemon.Components) error {
				rec, err := c.Orchestrator.Submit(runCtx, req)
				if err != nil {
					return reportFailedSubmit(cmd, rec, err, opts.jsonOut)
				}
				if opts.jsonOut {
					return writeJSON(cmd, api.NewProcessResponse(rec))
				}
				printSavedSubmit(cmd, rec)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.srtPath, "srt", "", "Subtitle file to burn in")
	cmd.Flags().StringVar(&opts.srtURL, "srt-url", "", "URL to download the subtitle file from")
	cmd.Flags().StringVarP(&opts.resolution, "resolution", "r", "", "Output resolution (360p, 480p, 720p, 1080p)")
	cmd.Flags().IntVar(&opts.quality, "crf", 0, "Constant rate factor, 0-51 (lower is better)")
	cmd.Flags().StringVar(&opts.sourceID, "source-id", "", "Upstream video identifier to link the result to")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	return cmd
}

func buildSubmitRequest(cfg *config.Config, videoPath string, opts submitOptions, qualitySet bool) (jobs.Request, func(), error) {
	noop := func() {}
	if strings.TrimSpace(opts.srtPath) == "" && strings.TrimSpace(opts.srtURL) == "" {
		return jobs.Request{}, noop, errors.New("one of --srt or --srt-url is required")
	}

	path, err := config.ExpandPath(videoPath)
	if err != nil {
		return jobs.Request{}, noop, fmt.Errorf("resolve video path: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return jobs.Request{}, noop, fmt.Errorf("open video: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return jobs.Request{}, noop, fmt.Errorf("inspect video: %w", err)
	}

	req := jobs.Request{
		OriginalFilename: filepath.Base(path),
		Video:            file,
		Size:             info.Size(),
		Resolution:       opts.resolution,
		SourceVideoID:    strings.TrimSpace(opts.sourceID),
		Subtitles:        subtitles.Source{URL: strings.TrimSpace(opts.srtURL)},
	}
	if qualitySet {
		q := opts.quality
		req.Quality = &q
	}
	if srt := strings.TrimSpace(opts.srtPath); srt != "" {
		data, err := readSubtitleFile(srt, cfg.Subtitles.MaxBytes)
		if err != nil {
			file.Close()
			return jobs.Request{}, noop, err
		}
		req.Subtitles = subtitles.Source{Inline: data}
	}
	return req, func() { file.Close() }, nil
}

func readSubtitleFile(path string, limit int64) ([]byte, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve subtitle path: %w", err)
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open subtitles: %w", err)
	}
	defer file.Close()
	reader := io.Reader(file)
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	return data, nil
}

func printSavedSubmit(cmd *cobra.Command, rec *metadata.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s saved\n", rec.JobID)
	fmt.Fprintf(out, "  Video ID:   %s\n", rec.ID)
	fmt.Fprintf(out, "  Output:     %s (%s)\n", rec.FinalFilename, rec.Resolution)
	fmt.Fprintf(out, "  Size:       %s\n", formatBytes(rec.FileSize))
	fmt.Fprintf(out, "  Duration:   %s\n", formatSeconds(rec.Duration))
	fmt.Fprintf(out, "  Stored at:  %s\n", rec.StorageLocation)
	fmt.Fprintf(out, "  Stream URL: %s\n", rec.StreamURL)
}

func reportFailedSubmit(cmd *cobra.Command, rec *metadata.Record, err error, jsonOut bool) error {
	if jsonOut {
		env := api.NewErrorEnvelope(err)
		if rec != nil {
			video := api.FromRecord(rec)
			env.Video = &video
		}
		if encodeErr := writeJSON(cmd, env); encodeErr != nil {
			return encodeErr
		}
	} else if rec != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s failed (%s)\n", rec.JobID, rec.ErrorKind)
	}
	return fmt.Errorf("job failed: %w", err)
}
