package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"burnin/internal/config"
	"burnin/internal/logging"
	"burnin/internal/services"
)

const stageName = "subtitles"

// Source names where a job's subtitle track comes from. Inline bytes win
// when both are set.
type Source struct {
	Inline []byte
	URL    string
}

// IsZero reports whether neither an inline payload nor a URL was supplied.
func (s Source) IsZero() bool {
	return len(s.Inline) == 0 && strings.TrimSpace(s.URL) == ""
}

// Fetcher resolves a Source into validated SRT bytes.
type Fetcher struct {
	http      *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	logger    *slog.Logger
}

// NewFetcher builds a Fetcher from configuration. A nil client uses a
// default http.Client; the per-request deadline always comes from cfg.
func NewFetcher(cfg *config.Config, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		http:      client,
		timeout:   cfg.FetchTimeout(),
		maxBytes:  cfg.Subtitles.MaxBytes,
		userAgent: cfg.Subtitles.UserAgent,
		logger:    logging.NewComponentLogger(logger, "subtitle-fetcher"),
	}
}

// Resolve returns normalized UTF-8 SRT bytes for src. Every failure is tagged
// services.ErrSubtitleUnavailable, except cancellation of ctx itself, which
// is tagged services.ErrCancelled.
func (f *Fetcher) Resolve(ctx context.Context, src Source) ([]byte, error) {
	var (
		raw    []byte
		origin string
		err    error
	)
	switch {
	case len(src.Inline) > 0:
		raw, origin = src.Inline, "inline"
	case strings.TrimSpace(src.URL) != "":
		origin = "remote"
		raw, err = f.download(ctx, strings.TrimSpace(src.URL))
		if err != nil {
			return nil, err
		}
	default:
		return nil, services.Wrap(services.ErrSubtitleUnavailable, stageName, "resolve", "no subtitle source supplied", nil)
	}

	if f.maxBytes > 0 && int64(len(raw)) > f.maxBytes {
		return nil, services.Wrap(services.ErrSubtitleUnavailable, stageName, "validate",
			fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(raw), f.maxBytes), nil)
	}
	data, cues, err := Validate(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrSubtitleUnavailable, stageName, "validate", origin+" payload rejected", err)
	}
	logging.WithContext(ctx, f.logger).Debug("subtitles resolved",
		logging.String("origin", origin),
		logging.Int("cues", len(cues)),
		logging.Duration("last_cue_end", LastCueEnd(cues)),
	)
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, services.Wrap(services.ErrSubtitleUnavailable, stageName, "fetch", fmt.Sprintf("invalid subtitle url %q", rawURL), err)
	}

	fetchCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrSubtitleUnavailable, stageName, "fetch", "build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/x-subrip, text/plain;q=0.9, */*;q=0.1")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, f.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrSubtitleUnavailable, stageName, "fetch",
			fmt.Sprintf("subtitle service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet))), nil)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, f.classify(ctx, err)
	}
	return body, nil
}

func (f *Fetcher) classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return services.Wrap(services.ErrCancelled, stageName, "fetch", "request cancelled", parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrSubtitleUnavailable, stageName, "fetch",
			fmt.Sprintf("subtitle service did not respond within %s", f.timeout), err)
	}
	return services.Wrap(services.ErrSubtitleUnavailable, stageName, "fetch", "request failed", err)
}
