package handlers

import (
	"net/http"
	"strconv"

	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/logging"
)

// ShareHandler serves share links and the public shared gallery view.
type ShareHandler struct {
	Galleries SharedGalleries
	QR        QRRenderer
}

// Link handles GET /api/v1/share, returning the caller's share link.
func (h ShareHandler) Link(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	principal, ok := h.caller(w, r)
	if !ok {
		return
	}

	link, err := h.Galleries.LinkFor(ctx, principal.UserID)
	if err != nil {
		respondError(ctx, w, err, "failed to load share link")
		return
	}

	respondJSON(ctx, w, http.StatusOK, link)
}

// QRCode handles GET /api/v1/share/qr, rendering the caller's share link as
// a PNG. The optional size parameter sets the edge length in pixels.
func (h ShareHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	principal, ok := h.caller(w, r)
	if !ok {
		return
	}
	if h.QR == nil {
		logging.FromContext(ctx).Error("qr renderer unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "qr codes unavailable"})
		return
	}

	link, err := h.Galleries.LinkFor(ctx, principal.UserID)
	if err != nil {
		respondError(ctx, w, err, "failed to load share link")
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := h.QR.QRCode(link.Token, size)
	if err != nil {
		logging.FromContext(ctx).Error("render share qr", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to render qr code"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Shared handles GET /api/v1/shared/{token}?q=. No authentication is
// required; possession of the token grants read access.
func (h ShareHandler) Shared(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Galleries == nil {
		logging.FromContext(ctx).Error("sharing dependencies unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "sharing unavailable"})
		return
	}

	shared, err := h.Galleries.Open(ctx, r.PathValue("token"), r.URL.Query().Get("q"))
	if err != nil {
		respondError(ctx, w, err, "failed to load shared gallery")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shared)
}

func (h ShareHandler) caller(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	ctx := r.Context()
	if h.Galleries == nil {
		logging.FromContext(ctx).Error("sharing dependencies unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "sharing unavailable"})
		return auth.Principal{}, false
	}
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return auth.Principal{}, false
	}
	return principal, true
}
