package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"burnin/internal/logging"
	"burnin/internal/services"
	"burnin/internal/storage"
)

// DefaultChunkSize is used when the configured chunk size is not positive.
const DefaultChunkSize = 1 << 20

// Responder serves artifacts from a storage.Store.
type Responder struct {
	store     storage.Store
	chunkSize int
	logger    *slog.Logger
}

// NewResponder builds a Responder that copies in chunkSize blocks.
func NewResponder(store storage.Store, chunkSize int, logger *slog.Logger) *Responder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Responder{
		store:     store,
		chunkSize: chunkSize,
		logger:    logging.NewComponentLogger(logger, "stream"),
	}
}

// Serve writes the artifact stored under key, honouring the request's Range
// header. Missing artifacts produce 404 and unsatisfiable ranges 416. The
// returned error is nil once headers have been written successfully and the
// copy either completed or the client went away.
func (r *Responder) Serve(w http.ResponseWriter, req *http.Request, key string) error {
	ctx := req.Context()
	info, err := r.store.Stat(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, services.KindNotFound, "artifact not found")
			return services.Wrap(services.ErrNotFound, "stream", "stat", key, err)
		}
		writeError(w, http.StatusBadGateway, services.KindInternal, "artifact store unavailable")
		return err
	}

	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeMP4
	}
	header.Set("Content-Type", contentType)
	if !info.LastModified.IsZero() {
		header.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}

	rng, partial, err := ParseRange(req.Header.Get("Range"), info.Size)
	if err != nil {
		header.Del("Content-Type")
		header.Set("Content-Range", "bytes */"+strconv.FormatInt(info.Size, 10))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return err
	}

	var (
		status = http.StatusOK
		length = info.Size
		open   *storage.ByteRange
	)
	if partial {
		status = http.StatusPartialContent
		length = rng.Length()
		open = &rng
		header.Set("Content-Range", ContentRange(rng, info.Size))
	}
	header.Set("Content-Length", strconv.FormatInt(length, 10))

	if req.Method == http.MethodHead {
		w.WriteHeader(status)
		return nil
	}

	body, err := r.store.Open(ctx, key, open)
	if err != nil {
		header.Del("Content-Length")
		header.Del("Content-Range")
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, services.KindNotFound, "artifact not found")
			return services.Wrap(services.ErrNotFound, "stream", "open", key, err)
		}
		writeError(w, http.StatusBadGateway, services.KindInternal, "artifact store unavailable")
		return err
	}
	defer body.Close()

	w.WriteHeader(status)
	buf := make([]byte, r.chunkSize)
	// Hiding ReadFrom keeps net/http from copying with its own buffer size.
	written, err := io.CopyBuffer(struct{ io.Writer }{w}, io.LimitReader(body, length), buf)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			r.logger.Debug("client closed stream",
				logging.String("key", key),
				logging.Int64("written", written),
			)
			return nil
		}
		logging.WarnWithContext(r.logger, "stream copy failed", "stream_copy_failed",
			logging.String("key", key),
			logging.Int64("written", written),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check artifact store connectivity"),
			logging.String(logging.FieldImpact, "client received a truncated body"),
		)
		return err
	}
	return nil
}

// writeError sends the service's JSON error envelope.
func writeError(w http.ResponseWriter, status int, kind services.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": kind.String(), "message": message},
	})
}
