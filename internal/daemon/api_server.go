package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"burnin/internal/api"
	"burnin/internal/config"
	"burnin/internal/logging"
	"burnin/internal/services"
	"burnin/internal/storage"
	"burnin/internal/stream"
	"burnin/internal/transform"
)

// Version is reported by the service info route. It is set at build time.
var Version = "dev"

type apiServer struct {
	cfg      *config.Config
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	videos   *api.VideoService
	streamer *stream.Responder
	limiter  *rate.Limiter

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:      cfg,
		bind:     strings.TrimSpace(cfg.Server.Bind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		videos:   api.NewVideoService(d.repo),
		streamer: stream.NewResponder(d.store, cfg.Streaming.ChunkSize, logger),
	}
	if cfg.Server.SubmitRate > 0 {
		burst := cfg.Server.SubmitBurst
		if burst < 1 {
			burst = 1
		}
		srv.limiter = rate.NewLimiter(rate.Limit(cfg.Server.SubmitRate), burst)
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestContext)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, services.KindNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, services.KindInvalidInput, "method not allowed")
	})

	auth := authMiddleware(s.cfg.Server.APIToken)

	r.Get("/", s.handleInfo)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.With(auth, s.rateLimit).Post("/process-video", s.handleProcess)
		r.With(auth, s.rateLimit).Post("/process-video/", s.handleProcess)

		r.Get("/videos", s.handleListVideos)
		r.Get("/videos/", s.handleListVideos)
		r.Get("/videos/by-source/{sourceID}", s.handleVideosBySource)
		r.Get("/videos/by-filename/{filename}", s.handleVideosByFilename)
		r.Get("/videos/{id}", s.handleGetVideo)
		r.Get("/videos/{id}/url", s.handlePresign)
		r.With(auth).Patch("/videos/{id}", s.handlePatchVideo)
		r.With(auth).Delete("/videos/{id}", s.handleDeleteVideo)

		r.Get("/video_storage/{filename}", s.handleStream)
		r.Head("/video_storage/{filename}", s.handleStream)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("server.bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	// Submissions hold the connection for the whole job and streams can run
	// long, so only header reads and idle connections are bounded here.
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestContext stamps the chi request id onto the context for logging.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), s.logger).Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, services.KindInvalidInput, "submission rate exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) handleInfo(w http.ResponseWriter, _ *http.Request) {
	resolutions := make([]string, 0, len(transform.Resolutions()))
	for _, r := range transform.Resolutions() {
		resolutions = append(resolutions, r.String())
	}
	s.writeJSON(w, http.StatusOK, api.ServiceInfo{
		Service:     "burnin",
		Version:     Version,
		Resolutions: resolutions,
		Endpoints: []string{
			"POST /api/process-video/",
			"GET /api/videos/",
			"GET /api/videos/{id}",
			"GET /api/videos/by-source/{sourceID}",
			"GET /api/videos/by-filename/{filename}",
			"PATCH /api/videos/{id}",
			"DELETE /api/videos/{id}",
			"GET /api/videos/{id}/url",
			"GET /api/video_storage/{filename}",
			"GET /api/health",
		},
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.daemon.Health(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *apiServer) handleListVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip, err := optionalInt(query.Get("skip"))
	if err != nil {
		s.writeErr(w, services.Wrap(services.ErrInvalidInput, "videos", "list", "skip must be an integer", err))
		return
	}
	limit, err := optionalInt(query.Get("limit"))
	if err != nil {
		s.writeErr(w, services.Wrap(services.ErrInvalidInput, "videos", "list", "limit must be an integer", err))
		return
	}
	resp, err := s.videos.List(r.Context(), api.ListQuery{Status: query.Get("status"), Skip: skip, Limit: limit})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.videos.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoResponse{Video: *video})
}

func (s *apiServer) handleVideosBySource(w http.ResponseWriter, r *http.Request) {
	videos, err := s.videos.BySource(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{Count: len(videos), Items: videos, Limit: len(videos)})
}

func (s *apiServer) handleVideosByFilename(w http.ResponseWriter, r *http.Request) {
	videos, err := s.videos.ByFilename(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{Count: len(videos), Items: videos, Limit: len(videos)})
}

func (s *apiServer) handlePatchVideo(w http.ResponseWriter, r *http.Request) {
	var patch api.VideoPatch
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&patch); err != nil {
		s.writeErr(w, services.Wrap(services.ErrInvalidInput, "videos", "edit", "body must be a JSON object of editable fields", err))
		return
	}
	video, err := s.videos.Edit(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoResponse{Video: *video})
}

func (s *apiServer) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.daemon.orch.Delete(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Video %s deleted successfully", id),
	})
}

func (s *apiServer) handlePresign(w http.ResponseWriter, r *http.Request) {
	url, rec, err := s.daemon.orch.PresignURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PresignResponse{
		VideoID:   rec.ID,
		URL:       url,
		ExpiresIn: s.cfg.Storage.PresignTTLSeconds,
	})
}

func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !storage.ValidFilename(filename) {
		s.writeError(w, http.StatusNotFound, services.KindNotFound, "artifact not found")
		return
	}
	key := storage.Key(s.cfg.Storage.Prefix, filename)
	if err := s.streamer.Serve(w, r, key); err != nil {
		kind := services.KindOf(err)
		if kind == services.KindNotFound || kind == services.KindRangeNotSatisfiable {
			return
		}
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "stream failed", "stream_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check artifact store connectivity"),
		)
	}
}

func optionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeErr maps a classified failure to its status and envelope.
func (s *apiServer) writeErr(w http.ResponseWriter, err error) {
	s.writeJSON(w, api.HTTPStatus(err), api.NewErrorEnvelope(err))
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, kind services.Kind, message string) {
	s.writeJSON(w, status, api.ErrorEnvelope{Error: api.ErrorBody{Code: kind.String(), Message: message}})
}
