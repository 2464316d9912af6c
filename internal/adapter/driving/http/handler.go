package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/zihaowei/bilipanel/internal/application"
	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
	"github.com/zihaowei/bilipanel/internal/metrics"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	settings     *application.SettingsService
	qrLogin      *application.QRLoginService
	crawl        *application.CrawlService
	runtime      *application.RuntimeConfig
	client       driven.CommentClient
	videoStore   driven.VideoStore
	commentStore driven.CommentStore
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	settings *application.SettingsService,
	qrLogin *application.QRLoginService,
	crawl *application.CrawlService,
	runtime *application.RuntimeConfig,
	client driven.CommentClient,
	videoStore driven.VideoStore,
	commentStore driven.CommentStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		settings:     settings,
		qrLogin:      qrLogin,
		crawl:        crawl,
		runtime:      runtime,
		client:       client,
		videoStore:   videoStore,
		commentStore: commentStore,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with rate limiting, logging, and recovery middleware. collector receives a
// status-code count per served response; metricsHandler serves the Prometheus
// exposition endpoint.
func NewServeMux(h *Handler, collector *metrics.Collector, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/cookie", h.GetCookieStatus)
	mux.HandleFunc("PUT /api/v1/cookie", h.SaveCookie)
	mux.HandleFunc("DELETE /api/v1/cookie", h.ClearCookie)
	mux.HandleFunc("POST /api/v1/cookie/validate", h.ValidateCookie)
	mux.HandleFunc("GET /api/v1/cookie/probe", h.ProbeCookie)
	mux.HandleFunc("POST /api/v1/cookie/qr", h.BeginQRLogin)
	mux.HandleFunc("GET /api/v1/cookie/qr/{id}", h.GetQRSession)
	mux.HandleFunc("GET /api/v1/params", h.GetParams)
	mux.HandleFunc("PUT /api/v1/params", h.UpdateParams)
	mux.HandleFunc("GET /api/v1/videos", h.ListVideos)
	mux.HandleFunc("POST /api/v1/videos", h.AddVideo)
	mux.HandleFunc("DELETE /api/v1/videos/{bvid}", h.RemoveVideo)
	mux.HandleFunc("POST /api/v1/videos/{bvid}/crawl", h.CrawlVideo)
	mux.HandleFunc("GET /api/v1/videos/{bvid}/comments", h.ListComments)
	mux.HandleFunc("GET /api/v1/database/stats", h.DatabaseStats)
	mux.HandleFunc("POST /api/v1/database/clear", h.ClearDatabase)
	mux.HandleFunc("POST /api/v1/database/backup", h.BackupDatabase)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", metricsHandler)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, collector, wrapped)
	wrapped = rateLimitMiddleware(rate.NewLimiter(rate.Limit(50), 100), wrapped)

	return wrapped
}

// writeServiceError maps application-layer errors to HTTP responses. Rejected
// input becomes a 400 warning, a missing confirmation a 428, an unbuilt
// operation a 501; everything else is a logged 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case model.IsValidation(err):
		writeWarning(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrConfirmationRequired):
		writeError(w, http.StatusPreconditionRequired, "confirmation required")
	case errors.Is(err, model.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, "not implemented")
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// confirmed reports whether the request carries the confirm=true query flag
// that destructive endpoints require.
func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

// GetCookieStatus returns the derived cookie state and stored cookie text.
func (h *Handler) GetCookieStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.settings.CookieStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to load cookie status")
		return
	}

	writeJSON(w, http.StatusOK, toCookieStatusResponse(result))
}

// SaveCookie validates, installs, and persists a new cookie.
func (h *Handler) SaveCookie(w http.ResponseWriter, r *http.Request) {
	var req SaveCookieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.settings.SaveCookie(r.Context(), req.Cookie)
	if err != nil {
		h.writeServiceError(w, err, "failed to save cookie")
		return
	}

	writeJSON(w, http.StatusOK, toCookieStatusResponse(result))
}

// ValidateCookie checks cookie text structurally without persisting anything.
func (h *Handler) ValidateCookie(w http.ResponseWriter, r *http.Request) {
	var req SaveCookieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.settings.ValidateCookie(req.Cookie); err != nil {
		h.writeServiceError(w, err, "failed to validate cookie")
		return
	}

	writeJSON(w, http.StatusOK, ValidateCookieResponse{Valid: true})
}

// ClearCookie removes the stored cookie. Requires the confirm=true flag.
func (h *Handler) ClearCookie(w http.ResponseWriter, r *http.Request) {
	result, err := h.settings.ClearCookie(r.Context(), confirmed(r))
	if err != nil {
		h.writeServiceError(w, err, "failed to clear cookie")
		return
	}

	writeJSON(w, http.StatusOK, toCookieStatusResponse(result))
}

// ProbeCookie asks the bilibili API whether the active cookie belongs to a
// live login session.
func (h *Handler) ProbeCookie(w http.ResponseWriter, r *http.Request) {
	cookie := h.runtime.Cookie()
	if cookie == nil {
		writeWarning(w, http.StatusBadRequest, "no cookie configured")
		return
	}

	loggedIn, err := h.client.CheckLogin(r.Context(), cookie)
	if err != nil {
		h.writeServiceError(w, err, "failed to probe cookie")
		return
	}

	writeJSON(w, http.StatusOK, ProbeCookieResponse{LoggedIn: loggedIn})
}

// BeginQRLogin starts a QR login session and returns its initial snapshot.
func (h *Handler) BeginQRLogin(w http.ResponseWriter, r *http.Request) {
	info, err := h.qrLogin.Begin(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to start qr login")
		return
	}

	writeJSON(w, http.StatusCreated, toQRSessionResponse(info))
}

// GetQRSession returns the current state of a QR login session.
func (h *Handler) GetQRSession(w http.ResponseWriter, r *http.Request) {
	info, ok := h.qrLogin.Session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, toQRSessionResponse(info))
}

// GetParams returns the live crawler pacing parameters.
func (h *Handler) GetParams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toParamsResponse(h.settings.Params()))
}

// UpdateParams applies and persists new crawler pacing parameters. Values
// outside their bounds are clamped, not rejected.
func (h *Handler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	var req ParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	applied, err := h.settings.ApplyParams(r.Context(), model.CrawlerParams{
		DelayMin:   req.DelayMin,
		DelayMax:   req.DelayMax,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to apply crawler params")
		return
	}

	writeJSON(w, http.StatusOK, toParamsResponse(applied))
}

// ListVideos returns all watched videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videoStore.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list videos")
		return
	}

	resp := make([]VideoResponse, 0, len(videos))
	for _, video := range videos {
		resp = append(resp, toVideoResponse(video))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddVideo resolves a BVID against the bilibili API, adds the video to the
// watch list, and triggers an async crawl.
func (h *Handler) AddVideo(w http.ResponseWriter, r *http.Request) {
	var req AddVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidBVID(req.BVID) {
		writeWarning(w, http.StatusBadRequest, "invalid bvid: expected BV-prefixed video id")
		return
	}

	resolved, err := h.client.ResolveVideo(r.Context(), req.BVID)
	if err != nil {
		h.logger.Error("failed to resolve video", "bvid", req.BVID, "error", err)
		writeError(w, http.StatusBadGateway, "video lookup failed")
		return
	}

	video := *resolved
	video.AddedAt = time.Now().UTC()

	if err := h.videoStore.Add(r.Context(), video); err != nil {
		h.writeServiceError(w, err, "failed to add video")
		return
	}

	// Fire-and-forget async crawl with background context since the HTTP
	// request context will be cancelled after the response is sent.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := h.crawl.CrawlVideo(ctx, video.BVID); err != nil {
			h.logger.Error("async video crawl failed", "bvid", video.BVID, "error", err)
		}
	}()

	writeJSON(w, http.StatusCreated, toVideoResponse(video))
}

// RemoveVideo removes a video from the watch list.
func (h *Handler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.videoStore.Remove(r.Context(), r.PathValue("bvid")); err != nil {
		h.writeServiceError(w, err, "failed to remove video")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CrawlVideo triggers a synchronous crawl pass for one video.
func (h *Handler) CrawlVideo(w http.ResponseWriter, r *http.Request) {
	bvid := r.PathValue("bvid")
	if err := h.crawl.CrawlVideo(r.Context(), bvid); err != nil {
		h.writeServiceError(w, err, "manual crawl failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListComments returns the newest stored comments for a video. The limit
// query parameter caps the page size at 1000, defaulting to 100.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, 1000)
	}

	comments, err := h.commentStore.ListByVideo(r.Context(), r.PathValue("bvid"), limit)
	if err != nil {
		h.writeServiceError(w, err, "failed to list comments")
		return
	}

	resp := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, toCommentResponse(comment))
	}

	writeJSON(w, http.StatusOK, resp)
}

// DatabaseStats reports how much crawled data the database currently holds.
func (h *Handler) DatabaseStats(w http.ResponseWriter, r *http.Request) {
	commentCount, err := h.commentStore.Count(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to count comments")
		return
	}

	videos, err := h.videoStore.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list videos")
		return
	}

	writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		CommentCount: commentCount,
		VideoCount:   len(videos),
	})
}

// ClearDatabase wipes all crawled data. Requires the confirm=true flag.
func (h *Handler) ClearDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.ClearDatabase(r.Context(), confirmed(r)); err != nil {
		h.writeServiceError(w, err, "failed to clear database")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BackupDatabase requests a database snapshot.
func (h *Handler) BackupDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.BackupDatabase(r.Context()); err != nil {
		h.writeServiceError(w, err, "failed to back up database")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// isValidBVID validates the BV-prefixed video id format: "BV" followed by ten
// alphanumeric characters.
func isValidBVID(bvid string) bool {
	if len(bvid) != 12 || bvid[0] != 'B' || bvid[1] != 'V' {
		return false
	}

	for _, ch := range bvid[2:] {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			return false
		}
	}

	return true
}
