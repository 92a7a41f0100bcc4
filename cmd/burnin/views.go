package main

import (
	"fmt"
	"strings"
	"time"

	"burnin/internal/api"
)

func buildVideoRows(videos []api.Video) [][]string {
	if len(videos) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		resolution := v.Resolution
		if resolution == "" {
			resolution = v.RequestedResolution
		}
		size := "-"
		if v.FileSize > 0 {
			size = formatBytes(v.FileSize)
		}
		rows = append(rows, []string{
			v.ID,
			v.JobID,
			formatStatusLabel(v.Status),
			truncate(v.OriginalFilename, 32),
			resolution,
			size,
			formatDisplayTime(v.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(10 * time.Millisecond).String()
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
