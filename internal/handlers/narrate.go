package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"narration-gateway/internal/broadcast"
	"narration-gateway/internal/narration"
	"narration-gateway/internal/objectstore"
	"narration-gateway/internal/pipeline"
	"narration-gateway/internal/speech"
	"narration-gateway/pkg/logging/logging"
)

// Narrator is the pipeline behind the narration endpoints.
type Narrator interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
	Resynthesize(ctx context.Context, req speech.ResynthesizeRequest) (narration.Result, error)
}

// NarrationHandler holds dependencies for the /v1/presentation and /v1/audio
// endpoints. Live and Audio may be nil when the backing store is not
// configured.
type NarrationHandler struct {
	Narrator Narrator
	Live     broadcast.Reader
	Audio    objectstore.Reader
}

func NewNarrationHandler(n Narrator, live broadcast.Reader, audio objectstore.Reader) *NarrationHandler {
	return &NarrationHandler{Narrator: n, Live: live, Audio: audio}
}

type resynthesizeRequest struct {
	Language string `json:"language"`
	Context  string `json:"context"`
	Text     string `json:"text"`
	CourseID string `json:"courseId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Narrate handles POST /v1/presentation/narrate.
func (h *NarrationHandler) Narrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req pipeline.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Narrator.Process(ctx, req)
	if err != nil {
		if errors.Is(err, narration.ErrInvalidRequest) {
			logger.Warn("invalid narration request", zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("narration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "narration failed")
		return
	}

	logger.Info("narration_served",
		zap.String("course_id", req.CourseID),
		zap.Int("requested_languages", len(req.Languages)),
		zap.Int("returned_languages", len(resp.Languages)),
		zap.Duration("total_latency_ms", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// Resynthesize handles POST /v1/presentation/narration/resynthesize.
func (h *NarrationHandler) Resynthesize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req resynthesizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Narrator.Resynthesize(ctx, speech.ResynthesizeRequest{
		Language: req.Language,
		Context:  req.Context,
		Text:     req.Text,
		CourseID: req.CourseID,
	})
	switch {
	case err == nil:
	case errors.Is(err, narration.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, narration.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "audio synthesis is not configured")
		return
	default:
		logger.Error("resynthesis failed", zap.String("language", req.Language), zap.Error(err))
		writeError(w, http.StatusBadGateway, "synthesis failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// LivePointer handles GET /v1/presentation/live/{scope}.
func (h *NarrationHandler) LivePointer(w http.ResponseWriter, r *http.Request) {
	if h.Live == nil {
		writeError(w, http.StatusServiceUnavailable, "broadcast is not configured")
		return
	}

	scope := strings.TrimSpace(chi.URLParam(r, "scope"))
	if scope == "" {
		scope = broadcast.DefaultScope
	}

	lp, ok, err := h.Live.Live(r.Context(), scope)
	if err != nil {
		logging.L(r.Context()).Error("live pointer read failed", zap.String("scope", scope), zap.Error(err))
		writeError(w, http.StatusBadGateway, "broadcast store unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no live narration for "+scope)
		return
	}
	writeJSON(w, http.StatusOK, lp)
}

// AudioObject handles GET /v1/audio/{name} for stores that are not publicly
// reachable.
func (h *NarrationHandler) AudioObject(w http.ResponseWriter, r *http.Request) {
	if h.Audio == nil {
		writeError(w, http.StatusNotFound, "audio is not served by this gateway")
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid object name")
		return
	}

	data, contentType, err := h.Audio.Download(r.Context(), name)
	if errors.Is(err, objectstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("audio download failed", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusBadGateway, "audio store unavailable")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decodeJSON reads the body into v and writes the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
