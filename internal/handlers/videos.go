package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/logging"
	"github.com/vidgallery/backend/internal/models"
)

const defaultKeepAlive = 25 * time.Second

// VideoHandler provides the owner's gallery endpoints.
type VideoHandler struct {
	Gallery Gallery
	Live    Subscriber
	// KeepAlive is the interval between comment frames on idle streams.
	KeepAlive time.Duration
}

// Collection handles GET (list) and POST (add) on /api/v1/videos.
func (h VideoHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Item handles PATCH (edit) and DELETE on /api/v1/videos/{id}.
func (h VideoHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPatch:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h VideoHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	videos, err := h.Gallery.List(ctx, principal.UserID, r.URL.Query().Get("q"))
	if err != nil {
		respondError(ctx, w, err, "failed to load videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, videoListResponse{Videos: videos})
}

func (h VideoHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	video, err := h.Gallery.Add(ctx, principal.UserID, req.URL, req.Title, req.Tags)
	if err != nil {
		respondError(ctx, w, err, "failed to add video")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, video)
}

func (h VideoHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	video, err := h.Gallery.Update(ctx, principal.UserID, r.PathValue("id"), req.Title, req.Tags)
	if err != nil {
		respondError(ctx, w, err, "failed to update video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, video)
}

func (h VideoHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.Gallery.Delete(ctx, principal.UserID, r.PathValue("id"), confirmed); err != nil {
		respondError(ctx, w, err, "failed to delete video")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /api/v1/videos/stream. It sends the caller's gallery as
// a server-sent `snapshot` event on connect and after every change, until the
// client disconnects or the session ends.
func (h VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return
	}
	if h.Live == nil {
		logger.Error("live updates unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "live updates unavailable"})
		return
	}

	sub, err := h.Live.Subscribe(ctx, principal.UserID, principal.SessionID)
	if err != nil {
		logger.Error("subscribe to gallery", "error", err)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "live updates unavailable"})
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Error("streaming unsupported", "error", err)
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	logger.Debug("gallery stream opened")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case videos, ok := <-sub.C:
			if !ok {
				// session ended; tell the client not to reconnect with it
				_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			payload, err := json.Marshal(videoListResponse{Videos: videos})
			if err != nil {
				logger.Error("encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h VideoHandler) caller(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	ctx := r.Context()
	if h.Gallery == nil {
		logging.FromContext(ctx).Error("gallery dependencies unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "gallery unavailable"})
		return auth.Principal{}, false
	}
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return auth.Principal{}, false
	}
	return principal, true
}

type createVideoRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Tags  string `json:"tags"`
}

type updateVideoRequest struct {
	Title string `json:"title"`
	Tags  string `json:"tags"`
}

type videoListResponse struct {
	Videos []models.Video `json:"videos"`
}
